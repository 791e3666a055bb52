package summarizer

import (
	"math"
	"strings"
)

const (
	sentenceDelimiter             = "."
	sentenceJoiner                = ". "
	defaultAverageWordsInSentence = 20.0
)

// Extract is the local lead-bias fallback. It keeps as many leading sentences
// as targetWords covers at the text's average sentence length. Sentences are
// split on "." only, so abbreviations and decimals split too.
func Extract(text string, targetWords int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return NothingToSummarize
	}

	count := targetSentenceCount(len(strings.Fields(text)), len(sentences), targetWords)

	return strings.Join(sentences[:count], sentenceJoiner) + sentenceDelimiter
}

func splitSentences(text string) []string {
	var sentences []string

	for fragment := range strings.SplitSeq(text, sentenceDelimiter) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}

		sentences = append(sentences, fragment)
	}

	return sentences
}

// targetSentenceCount is always within [1, sentenceCount] for sentenceCount >= 1.
func targetSentenceCount(totalWords, sentenceCount, targetWords int) int {
	avg := float64(totalWords) / float64(sentenceCount)
	if avg <= 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		avg = defaultAverageWordsInSentence
	}

	count := math.Round(float64(targetWords) / avg)
	if count >= float64(sentenceCount) {
		return sentenceCount
	}

	return max(int(count), 1)
}
