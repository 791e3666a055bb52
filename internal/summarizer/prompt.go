package summarizer

import (
	"fmt"
	"strings"
)

// SummaryMarker separates the instruction from the answer in tool output.
const SummaryMarker = "Summary:"

func buildPrompt(text string, targetWords int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Please summarize the following text in approximately %d words:\n\n", targetWords)
	b.WriteString(text)
	b.WriteString("\n\n")
	b.WriteString(SummaryMarker)

	return b.String()
}
