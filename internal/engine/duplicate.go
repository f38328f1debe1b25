package engine

import (
	"context"
	"strings"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

const (
	duplicateScanLimit   = 50
	previewFieldLimit    = 80
	previewRawFieldLimit = 120
)

// findDuplicate scans the category's most recent rows, newest first, for a
// near-duplicate of the new row. Two rows collide when their summary or raw
// cells match after normalization and their dates are equal or either is
// empty. Returns a rendered preview of the colliding row, or "".
//
// A store read failure is swallowed: duplicate detection is advisory and
// must never block an intake.
func (e *Engine) findDuplicate(ctx context.Context, category string, headers, row []string) string {
	rows, err := e.store.AllRows(ctx, category)
	if err != nil {
		common.LogError(err, "failed to read sheet for duplicate check", common.Fields{"category": category})
		return ""
	}
	if len(rows) < 2 {
		return ""
	}

	headerRow := rows[0]
	summaryNew := model.ValueByHeader(headers, row, e.lex.SummaryColumns)
	rawNew := model.ValueByHeader(headers, row, e.lex.RawColumns)
	dateNew := model.ValueByHeader(headers, row, e.lex.DateColumns)

	recent := rows[1:]
	if len(recent) > duplicateScanLimit {
		recent = recent[len(recent)-duplicateScanLimit:]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		old := recent[i]
		summaryOld := model.ValueByHeader(headerRow, old, e.lex.SummaryColumns)
		rawOld := model.ValueByHeader(headerRow, old, e.lex.RawColumns)
		dateOld := model.ValueByHeader(headerRow, old, e.lex.DateColumns)

		if isDuplicate(summaryNew, rawNew, dateNew, summaryOld, rawOld, dateOld) {
			return e.duplicatePreview(headerRow, old)
		}
	}
	return ""
}

func isDuplicate(summaryNew, rawNew, dateNew, summaryOld, rawOld, dateOld string) bool {
	if summaryNew != "" && summaryOld != "" &&
		model.NormalizeText(summaryNew) == model.NormalizeText(summaryOld) {
		return sameOrEmpty(dateNew, dateOld)
	}
	if rawNew != "" && rawOld != "" &&
		model.NormalizeText(rawNew) == model.NormalizeText(rawOld) {
		return sameOrEmpty(dateNew, dateOld)
	}
	return false
}

// sameOrEmpty treats a missing date as matching any date.
func sameOrEmpty(left, right string) bool {
	if left == "" || right == "" {
		return true
	}
	return model.NormalizeText(left) == model.NormalizeText(right)
}

func (e *Engine) duplicatePreview(headers, row []string) string {
	dateValue := model.ValueByHeader(headers, row, e.lex.DateColumns)
	summaryValue := model.ValueByHeader(headers, row, e.lex.PreviewColumns)
	rawValue := model.ValueByHeader(headers, row, e.lex.RawColumns)

	var lines []string
	if dateValue != "" {
		lines = append(lines, "Дата: "+model.Shorten(dateValue, previewFieldLimit))
	}
	if summaryValue != "" {
		lines = append(lines, "Суть: "+model.Shorten(summaryValue, previewFieldLimit))
	}
	if rawValue != "" && model.NormalizeText(rawValue) != model.NormalizeText(summaryValue) {
		lines = append(lines, "Сырой текст: "+model.Shorten(rawValue, previewRawFieldLimit))
	}
	if len(lines) == 0 {
		return "Похожая запись найдена."
	}
	return strings.Join(lines, "\n")
}
