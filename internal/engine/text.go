package engine

import (
	"regexp"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

const summaryMaxLen = 160

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+|\n`)

func cleanLower(header string) string {
	return strings.ToLower(model.CleanHeader(header))
}

// padRowCopy returns a copy of row aligned to headers, so callers never
// mutate a slice a suspended session still references.
func padRowCopy(headers, row []string) []string {
	out := make([]string, len(headers))
	copy(out, row)
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, part := range sentenceSplitRe.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// extractSentence returns the first sentence of text containing any of the
// keywords, or the whole text when none matches.
func extractSentence(text string, keywords []string) string {
	for _, sentence := range splitSentences(text) {
		if containsAny(strings.ToLower(sentence), keywords) {
			return sentence
		}
	}
	return strings.TrimSpace(text)
}

// makeSummary derives a summary cell from the transcript: spoken filler
// phrases are stripped from both ends and the result is capped at
// summaryMaxLen runes.
func (e *Engine) makeSummary(text string) string {
	summary := strings.TrimSpace(text)
	if summary == "" {
		return summary
	}

	for changed := true; changed; {
		changed = false
		summary = strings.TrimLeft(summary, " ")
		lowered := strings.ToLower(summary)
		for _, prefix := range e.lex.FillerPrefixes {
			if strings.HasPrefix(lowered, prefix) {
				summary = strings.TrimLeft(summary[len(prefix):], " ,.-")
				changed = true
				break
			}
		}
	}

	lowered := strings.ToLower(summary)
	for _, suffix := range e.lex.FillerSuffixes {
		if strings.HasSuffix(lowered, suffix) {
			summary = strings.TrimRight(summary[:len(summary)-len(suffix)], " ,.-")
			break
		}
	}

	summary = strings.Join(strings.Fields(summary), " ")
	if runes := []rune(summary); len(runes) > summaryMaxLen {
		summary = strings.TrimRight(string(runes[:summaryMaxLen-3]), " ") + "..."
	}
	if summary == "" {
		return text
	}
	return summary
}
