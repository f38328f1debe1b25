package model

import (
	"fmt"
	"strings"
)

// DeleteCandidate is one row proposed for deletion. RowIndex is the row's
// 1-based position in the store, counting the header row as 1. Candidates
// are derived per query and go stale if the store mutates underneath them.
type DeleteCandidate struct {
	Sheet    string   `json:"sheet"`
	Preview  string   `json:"preview"`
	Headers  []string `json:"headers"`
	Row      []string `json:"row"`
	RowIndex int      `json:"row_index"`
}

// BuildPreview renders a candidate's row as "[sheet] header: value; ..."
// capped at maxLen characters.
func BuildPreview(sheet string, headers []string, row []string, maxLen int) string {
	var pairs []string
	for idx, header := range headers {
		value := ""
		if idx < len(row) {
			value = row[idx]
		}
		if strings.TrimSpace(value) != "" {
			pairs = append(pairs, fmt.Sprintf("%s: %s", CleanHeader(header), value))
		}
	}
	preview := strings.Join(pairs, "; ")
	if runes := []rune(preview); len(runes) > maxLen {
		preview = string(runes[:maxLen-3]) + "..."
	}
	return fmt.Sprintf("[%s] %s", sheet, preview)
}

// Shorten trims value to limit runes, appending an ellipsis when cut.
func Shorten(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimRight(string(runes[:limit-3]), " ") + "..."
}
