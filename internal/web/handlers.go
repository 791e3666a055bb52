package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"textsum/internal/domain"
	"textsum/internal/markdown"
	"textsum/internal/textproc"
	"unicode/utf8"
)

const (
	indexTemplate = "index.html"

	formFieldText        = "text"
	formFieldTargetWords = "target_words"
)

var (
	errEmptyText   = errors.New("please enter some text to summarize")
	errTextTooLong = errors.New("text is too long")
)

//nolint:gochecknoglobals // Template helpers.
var templateFuncs = template.FuncMap{
	"percent": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 1, 64) + "%"
	},
}

type pageData struct {
	Title           string
	ToolName        string
	ToolAvailable   bool
	InstallHint     string
	Text            string
	TargetWords     int
	MinTargetWords  int
	MaxTargetWords  int
	TargetWordsStep int
	MaxInputLength  int
	Warning         string
	Error           string
	Result          *resultView
}

type resultView struct {
	SummaryHTML template.HTML
	Stats       domain.Stats
}

type apiRequest struct {
	Text        string `json:"text"`
	TargetWords int    `json:"targetWords"`
}

type apiResponse struct {
	Summary          string  `json:"summary"`
	OriginalWords    int     `json:"originalWords"`
	SummaryWords     int     `json:"summaryWords"`
	ReductionPercent float64 `json:"reductionPercent"`
	Source           string  `json:"source"`
	Tool             string  `json:"tool"`
	ToolAvailable    bool    `json:"toolAvailable"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Tool          string `json:"tool"`
	ToolAvailable bool   `json:"toolAvailable"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.newPageData("", s.cfg.DefaultTargetWords))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBytes())

	if err := r.ParseForm(); err != nil {
		s.log.WarnContext(r.Context(), "Failed to parse form",
			"error", err,
			"requestID", RequestIDFromContext(r.Context()))

		data := s.newPageData("", s.cfg.DefaultTargetWords)
		data.Error = "The form could not be read. Please try again."
		s.render(w, r, http.StatusBadRequest, data)

		return
	}

	text := r.PostForm.Get(formFieldText)
	targetWords := s.parseTargetWords(r.PostForm.Get(formFieldTargetWords))
	data := s.newPageData(text, targetWords)

	summary, stats, err := s.summarize(r.Context(), domain.SummaryRequest{Text: text, TargetWords: targetWords})
	if err != nil {
		data.Warning = warningMessage(err)
		s.render(w, r, http.StatusUnprocessableEntity, data)

		return
	}

	data.Result = &resultView{SummaryHTML: s.summaryHTML(r.Context(), summary), Stats: stats}
	s.render(w, r, http.StatusOK, data)
}

// summaryHTML renders tool output as markdown. Fallback text is plain
// sentences and is only escaped.
func (s *Server) summaryHTML(ctx context.Context, summary domain.SummaryResult) template.HTML {
	if summary.Source != domain.SourceTool {
		return plainHTML(summary.Text)
	}

	rendered, err := markdown.ToHTML(summary.Text)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to render summary",
			"error", err,
			"requestID", RequestIDFromContext(ctx))

		return plainHTML(summary.Text)
	}

	return rendered
}

func plainHTML(text string) template.HTML {
	return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>") //nolint:gosec // Escaped
}

func (s *Server) handleAPISummaries(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBytes())

	var req apiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})

		return
	}

	targetWords := req.TargetWords
	if targetWords == 0 {
		targetWords = s.cfg.DefaultTargetWords
	}

	summary, stats, err := s.summarize(r.Context(), domain.SummaryRequest{
		Text:        req.Text,
		TargetWords: s.clampTargetWords(targetWords),
	})
	if err != nil {
		s.writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{"error": warningMessage(err)})

		return
	}

	s.writeJSON(w, r, http.StatusOK, apiResponse{
		Summary:          summary.Text,
		OriginalWords:    stats.OriginalWords,
		SummaryWords:     stats.SummaryWords,
		ReductionPercent: stats.ReductionPercent,
		Source:           string(summary.Source),
		Tool:             s.summarizer.ToolName(),
		ToolAvailable:    s.summarizer.Available(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:        "ok",
		Tool:          s.summarizer.ToolName(),
		ToolAvailable: s.summarizer.Available(),
	})
}

// summarize validates the request, cleans the text and runs the adapter.
// Statistics compare the text as submitted with the summary.
func (s *Server) summarize(
	ctx context.Context,
	req domain.SummaryRequest,
) (domain.SummaryResult, domain.Stats, error) {
	if strings.TrimSpace(req.Text) == "" {
		return domain.SummaryResult{}, domain.Stats{}, errEmptyText
	}

	if length := utf8.RuneCountInString(req.Text); length > s.cfg.MaxInputLength {
		return domain.SummaryResult{}, domain.Stats{}, fmt.Errorf(
			"%w (%d characters, limit %d)", errTextTooLong, length, s.cfg.MaxInputLength)
	}

	processed := textproc.Preprocess(req.Text)
	summary := s.summarizer.SummarizeResult(ctx, processed, req.TargetWords)

	s.log.InfoContext(ctx, "Summary is generated",
		"requestID", RequestIDFromContext(ctx),
		"tool", s.summarizer.ToolName(),
		"toolAvailable", s.summarizer.Available(),
		"source", summary.Source,
		"targetWords", req.TargetWords,
		"inputChars", utf8.RuneCountInString(req.Text),
		"processedChars", utf8.RuneCountInString(processed))

	return summary, textproc.ComputeStats(req.Text, summary.Text), nil
}

func (s *Server) newPageData(text string, targetWords int) pageData {
	return pageData{
		Title:           s.cfg.Title,
		ToolName:        s.summarizer.ToolName(),
		ToolAvailable:   s.summarizer.Available(),
		InstallHint:     s.cfg.InstallHint,
		Text:            text,
		TargetWords:     targetWords,
		MinTargetWords:  s.cfg.MinTargetWords,
		MaxTargetWords:  s.cfg.MaxTargetWords,
		TargetWordsStep: s.cfg.TargetWordsStep,
		MaxInputLength:  s.cfg.MaxInputLength,
	}
}

func (s *Server) parseTargetWords(raw string) int {
	targetWords, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return s.cfg.DefaultTargetWords
	}

	return s.clampTargetWords(targetWords)
}

func (s *Server) clampTargetWords(targetWords int) int {
	return min(max(targetWords, s.cfg.MinTargetWords), s.cfg.MaxTargetWords)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, indexTemplate, data); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to render template",
			"error", err,
			"template", indexTemplate,
			"requestID", RequestIDFromContext(r.Context()))

		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		s.log.WarnContext(r.Context(), "Failed to write response",
			"error", err,
			"requestID", RequestIDFromContext(r.Context()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WarnContext(r.Context(), "Failed to encode JSON response",
			"error", err,
			"status", status,
			"requestID", RequestIDFromContext(r.Context()))
	}
}

func warningMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}

	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
