package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

const (
	deleteCandidateLimit = 7
	deletePreviewLimit   = 400
	maxLastDays          = 365
)

var (
	tokenRe    = regexp.MustCompile(`[a-zа-яё0-9]+`)
	lastDaysRe = regexp.MustCompile(`(?:за\s+последн[а-яё]*|последн[а-яё]*|за\s+прошл[а-яё]*|last)\s+(\d+)\s*(?:дн[а-яё]*|days)`)
)

// deleteFilters are the constraints inferred from a delete query before
// token scoring: which sheets qualify and which date window applies.
type deleteFilters struct {
	sheetKeywords []string
	start, end    time.Time
	dated         bool
}

// findDeleteCandidates ranks rows across all non-reserved sheets against
// the query. Family keywords restrict sheets, date phrases restrict rows,
// and the remaining tokens score each row by overlap with its rendered
// "header: value" text. A dateless, tokenless query with no sheet filter
// matches nothing.
func (e *Engine) findDeleteCandidates(ctx context.Context, query string, limit int) ([]model.DeleteCandidate, error) {
	sheetNames, err := e.store.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}

	filters := e.inferFilters(query, e.today())
	tokens := e.queryTokens(query)

	type scored struct {
		score     int
		candidate model.DeleteCandidate
	}
	var candidates []scored

	for _, name := range sheetNames {
		if e.isReservedSheet(name) {
			continue
		}
		if len(filters.sheetKeywords) > 0 &&
			!containsAny(strings.ToLower(strings.TrimSpace(name)), filters.sheetKeywords) {
			continue
		}
		rows, err := e.store.AllRows(ctx, name)
		if err != nil {
			common.LogError(err, "failed to read sheet for delete scan", common.Fields{"sheet": name})
			continue
		}
		if len(rows) < 2 {
			continue
		}
		headers := rows[0]
		dateIdx := -1
		if filters.dated {
			dateIdx = e.findDateIndex(headers)
		}
		for i, row := range rows[1:] {
			rowIndex := i + 2
			if emptyRow(row) {
				continue
			}
			if filters.dated {
				rowDate, ok := rowDateAt(row, dateIdx)
				if !ok || rowDate.Before(filters.start) || rowDate.After(filters.end) {
					continue
				}
			}
			score := scoreTokens(tokens, rowText(headers, row))
			if len(tokens) > 0 {
				if score <= 0 {
					continue
				}
			} else {
				if !filters.dated && len(filters.sheetKeywords) == 0 {
					continue
				}
				score = 1
			}
			candidates = append(candidates, scored{
				score: score,
				candidate: model.DeleteCandidate{
					Sheet:    name,
					RowIndex: rowIndex,
					Headers:  headers,
					Row:      row,
					Preview:  model.BuildPreview(name, headers, row, deletePreviewLimit),
				},
			})
		}
	}

	// Stable keeps scan order within equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit <= 0 {
		limit = deleteCandidateLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.DeleteCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.candidate
	}
	return out, nil
}

// deleteCandidate removes the candidate's row and then best-effort removes
// the matching audit entry. The audit outcome never fails the primary
// delete.
func (e *Engine) deleteCandidate(ctx context.Context, candidate model.DeleteCandidate) (auditDeleted bool, err error) {
	if err := e.store.DeleteRow(ctx, candidate.Sheet, candidate.RowIndex); err != nil {
		return false, fmt.Errorf("deleting row %d from %s: %w", candidate.RowIndex, candidate.Sheet, err)
	}
	return e.deleteFromAudit(ctx, candidate), nil
}

// deleteFromAudit finds the audit entry for a deleted row: same category,
// same or empty date, highest token overlap with the row's cells.
func (e *Engine) deleteFromAudit(ctx context.Context, candidate model.DeleteCandidate) bool {
	rows, err := e.store.AllRows(ctx, e.cfg.AuditSheet)
	if err != nil || len(rows) < 2 {
		return false
	}

	targetDate := model.ValueByHeader(candidate.Headers, candidate.Row, e.lex.DateColumns)
	candidateTokens := tokenize(strings.Join(candidate.Row, " "))

	bestScore := 0
	bestIndex := 0
	for i, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		dateVal := strings.TrimSpace(row[0])
		categoryVal := strings.TrimSpace(row[1])
		transcript := strings.TrimSpace(row[2])
		if categoryVal != candidate.Sheet {
			continue
		}
		if targetDate != "" && dateVal != "" && dateVal != targetDate {
			continue
		}
		if score := scoreTokens(candidateTokens, transcript); score > bestScore {
			bestScore = score
			bestIndex = i + 2
		}
	}
	if bestIndex == 0 {
		return false
	}
	if err := e.store.DeleteRow(ctx, e.cfg.AuditSheet, bestIndex); err != nil {
		common.LogError(err, "failed to delete audit entry", common.Fields{"row_index": bestIndex})
		return false
	}
	return true
}

// inferFilters pulls sheet and date constraints out of the query text.
func (e *Engine) inferFilters(query string, today time.Time) deleteFilters {
	lowered := strings.ToLower(query)
	var filters deleteFilters

	for i := range e.lex.Families {
		f := &e.lex.Families[i]
		if containsAny(lowered, f.NameHints) {
			filters.sheetKeywords = append(filters.sheetKeywords, f.SheetFilter...)
		}
	}

	switch {
	case strings.Contains(lowered, "позавчера"):
		filters.start, filters.end = today.AddDate(0, 0, -2), today.AddDate(0, 0, -2)
		filters.dated = true
	case strings.Contains(lowered, "вчера") || strings.Contains(lowered, "yesterday"):
		filters.start, filters.end = today.AddDate(0, 0, -1), today.AddDate(0, 0, -1)
		filters.dated = true
	default:
		if m := lastDaysRe.FindStringSubmatch(lowered); m != nil {
			days, _ := strconv.Atoi(m[1])
			if days < 1 {
				days = 1
			}
			if days > maxLastDays {
				days = maxLastDays
			}
			filters.start, filters.end = today.AddDate(0, 0, -(days-1)), today
			filters.dated = true
		} else if strings.Contains(lowered, "сегодня") || strings.Contains(lowered, "today") {
			filters.start, filters.end = today, today
			filters.dated = true
		}
	}
	return filters
}

func (e *Engine) queryTokens(query string) []string {
	var out []string
	for _, token := range tokenize(query) {
		if !e.lex.StopWords[token] {
			out = append(out, token)
		}
	}
	return out
}

// tokenize lowercases and keeps alphanumeric runs longer than two runes.
func tokenize(text string) []string {
	var out []string
	for _, token := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(token)) > 2 {
			out = append(out, token)
		}
	}
	return out
}

func scoreTokens(tokens []string, text string) int {
	if len(tokens) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	score := 0
	for _, token := range tokens {
		if strings.Contains(lowered, token) {
			score++
		}
	}
	return score
}

func rowText(headers, row []string) string {
	parts := make([]string, len(headers))
	for idx, header := range headers {
		value := ""
		if idx < len(row) {
			value = row[idx]
		}
		parts[idx] = header + ": " + value
	}
	return strings.Join(parts, " ")
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// findDateIndex prefers the most specific date column when filtering by a
// date window.
func (e *Engine) findDateIndex(headers []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, key := range []string{"дата выполнения", "дата", "дата добавления", "date", "due date"} {
		for idx, h := range normalized {
			if h == key {
				return idx
			}
		}
	}
	return -1
}

func rowDateAt(row []string, idx int) (time.Time, bool) {
	if idx < 0 || idx >= len(row) {
		return time.Time{}, false
	}
	return parseDate(row[idx])
}
