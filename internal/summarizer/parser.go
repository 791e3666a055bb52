package summarizer

import "strings"

// ParseOutput extracts the answer from raw tool output. Everything after the
// first SummaryMarker is kept; without a marker the whole output is used.
func ParseOutput(raw string) string {
	summary := raw
	if _, after, found := strings.Cut(raw, SummaryMarker); found {
		summary = after
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return FailedToGenerate
	}

	return summary
}
