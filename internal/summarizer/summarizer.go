package summarizer

import (
	"context"
)

const (
	// NothingToSummarize is returned by the fallback when the input has no sentences.
	NothingToSummarize = "No content to summarize."
	// FailedToGenerate replaces an empty tool answer.
	FailedToGenerate = "Failed to generate summary."

	DefaultTargetWords = 150
)

// Tool is an external summarization backend.
type Tool interface {
	// Name identifies the backend in logs, metrics and the UI.
	Name() string
	// Probe reports whether the backend is reachable. It must not block past
	// its own timeout and never fails loudly.
	Probe(ctx context.Context) bool
	// Generate sends the prompt to the backend and returns its raw output.
	Generate(ctx context.Context, prompt string) (string, error)
}
