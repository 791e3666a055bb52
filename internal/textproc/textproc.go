// Package textproc cleans pasted text before summarization and derives the
// word statistics shown next to a summary.
package textproc

import (
	"regexp"
	"strings"
	"textsum/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"mvdan.cc/xurls/v2"
)

const (
	sentenceTerminators = ".!?"

	htmlNoiseTags = "script, style, noscript, template"
	htmlBlockTags = "p, div, li, tr, h1, h2, h3, h4, h5, h6, article, section, blockquote"
)

var (
	htmlTagRe      = regexp.MustCompile(`(?i)<\s*(html|body|p|div|br|span|h[1-6]|li|ul|ol|article|section|table|a)\b[^>]*>`)
	specialCharsRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?\-']`)
	urlRe          = xurls.Strict()
)

// Preprocess turns raw pasted input into plain prose: markup is reduced to
// its text, URLs and special characters are dropped, whitespace is collapsed
// and the result ends with sentence punctuation.
func Preprocess(text string) string {
	if LooksLikeHTML(text) {
		if extracted, ok := extractHTMLText(text); ok {
			text = extracted
		}
	}

	text = urlRe.ReplaceAllString(text, " ")
	text = specialCharsRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	if text != "" && !strings.ContainsRune(sentenceTerminators, rune(text[len(text)-1])) {
		text += "."
	}

	return text
}

func LooksLikeHTML(text string) bool {
	return htmlTagRe.MatchString(text)
}

func extractHTMLText(text string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", false
	}

	doc.Find(htmlNoiseTags).Remove()
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find(htmlBlockTags).Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml("\n")
	})

	return doc.Find("body").Text(), true
}

func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Reduction is the percentage of words removed from original, never negative.
func Reduction(original string, summary string) float64 {
	originalWords := CountWords(original)
	if originalWords == 0 {
		return 0
	}

	reduction := (1 - float64(CountWords(summary))/float64(originalWords)) * 100

	return max(0, reduction)
}

func ComputeStats(original string, summary string) domain.Stats {
	return domain.Stats{
		OriginalWords:    CountWords(original),
		SummaryWords:     CountWords(summary),
		ReductionPercent: Reduction(original, summary),
	}
}
