package engine

import (
	"regexp"
	"strings"
	"time"
)

// DateFormat is the primary cell format for dates; DateFormatISO is also
// accepted on input.
const (
	DateFormat    = "02.01.2006"
	DateFormatISO = "2006-01-02"
)

var (
	explicitDateRe = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
	isoDateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// parseDate accepts both supported cell formats.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, format := range []string{DateFormat, DateFormatISO} {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractExplicitDate finds the first absolute date mention in the text.
func extractExplicitDate(text string) (time.Time, bool) {
	if match := explicitDateRe.FindString(text); match != "" {
		return parseDate(match)
	}
	if match := isoDateRe.FindString(text); match != "" {
		return parseDate(match)
	}
	return time.Time{}, false
}

// extractRelativeDate resolves today/tomorrow style phrases and weekday
// names. A bare weekday means the next occurrence including today;
// "next <weekday>" anchors to the following ISO week's Monday.
func (e *Engine) extractRelativeDate(text string, today time.Time) (time.Time, bool) {
	lowered := strings.ToLower(text)
	for _, rel := range e.lex.RelativeDays {
		if strings.Contains(lowered, rel.Phrase) {
			return today.AddDate(0, 0, rel.Offset), true
		}
	}

	weekday, ok := e.findWeekday(lowered)
	if !ok {
		return time.Time{}, false
	}

	// time.Weekday counts from Sunday; the lexicon counts from Monday.
	todayIdx := (int(today.Weekday()) + 6) % 7

	if strings.Contains(lowered, e.lex.NextWeekMarker) {
		nextMonday := today.AddDate(0, 0, 7-todayIdx)
		return nextMonday.AddDate(0, 0, weekday), true
	}

	delta := (weekday - todayIdx + 7) % 7
	return today.AddDate(0, 0, delta), true
}

func (e *Engine) findWeekday(lowered string) (int, bool) {
	for stem, idx := range e.lex.Weekdays {
		if strings.Contains(lowered, stem) {
			return idx, true
		}
	}
	return 0, false
}

// applyDateFields resolves date columns from the transcript. The added-on
// column is always forced to today; due-type columns take the resolved
// target date, with explicit mentions winning over relative phrases.
func (e *Engine) applyDateFields(headers, row []string, transcript string, today time.Time) []string {
	row = padRowCopy(headers, row)

	todayStr := today.Format(DateFormat)
	for idx, header := range headers {
		if cleanLower(header) == e.lex.AddedColumn {
			row[idx] = todayStr
		}
	}

	target, ok := extractExplicitDate(transcript)
	if !ok {
		target, ok = e.extractRelativeDate(transcript, today)
	}
	if !ok {
		return row
	}

	targetStr := target.Format(DateFormat)
	for idx, header := range headers {
		if e.lex.DueColumns[cleanLower(header)] {
			row[idx] = targetStr
		}
	}
	return row
}
