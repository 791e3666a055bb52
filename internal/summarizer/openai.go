package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	openAIInstructions = `You summarize text pasted by a user.

Rules:
- Respect the requested approximate word count.
- Keep core ideas and critical context (dates, numbers, names).
- Neutral tone, same language as the input.
- Start the answer with "Summary:" followed by the summary only.`
)

// OpenAITool sends prompts to OpenAI's Responses API. It is an alternative
// backend for hosts without a summarization CLI.
type OpenAITool struct {
	client     openai.Client
	configured bool
}

func NewOpenAITool(apiKey string) *OpenAITool {
	apiKey = strings.TrimSpace(apiKey)

	return &OpenAITool{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		configured: apiKey != "",
	}
}

func (s *OpenAITool) Name() string {
	return "openai"
}

// Probe only checks that an API key is configured; it does not spend a request.
func (s *OpenAITool) Probe(_ context.Context) bool {
	return s.configured
}

func (s *OpenAITool) Generate(ctx context.Context, prompt string) (string, error) {
	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(openAIInstructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		return resp.OutputText(), nil
	}
}
