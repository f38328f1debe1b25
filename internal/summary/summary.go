// Package summary builds periodic digests over the audit log: what was
// recorded today or over the last week, grouped by category.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
	srv "github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
)

// Period selects the digest window.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

const (
	dateFormat = "02.01.2006"
	// entryLimit caps the bullet lines per category.
	entryLimit = 10
	// entryLen caps one bullet line in runes.
	entryLen = 120
)

// Builder renders digests from the audit sheet.
type Builder struct {
	store      srv.TabularStore
	auditSheet string
}

// NewBuilder builds digests over the given audit sheet, "Inbox" by default.
func NewBuilder(store srv.TabularStore, auditSheet string) *Builder {
	if auditSheet == "" {
		auditSheet = "Inbox"
	}
	return &Builder{store: store, auditSheet: auditSheet}
}

// Build renders the digest for the period ending at now. An empty digest
// (no records in the window) returns ok=false.
func (b *Builder) Build(ctx context.Context, period Period, now time.Time) (string, bool, error) {
	rows, err := b.store.AllRows(ctx, b.auditSheet)
	if err != nil {
		return "", false, fmt.Errorf("reading audit sheet: %w", err)
	}

	end := midnight(now)
	start := end
	title := "Итоги дня " + end.Format(dateFormat)
	if period == PeriodWeekly {
		start = end.AddDate(0, 0, -6)
		title = "Итоги недели " + start.Format(dateFormat) + " – " + end.Format(dateFormat)
	}

	grouped := map[string][]string{}
	var order []string
	total := 0
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		day, ok := parseDay(row[0])
		if !ok || day.Before(start) || day.After(end) {
			continue
		}
		category := strings.TrimSpace(row[1])
		if category == "" {
			category = "Без категории"
		}
		if _, seen := grouped[category]; !seen {
			order = append(order, category)
		}
		grouped[category] = append(grouped[category], model.Shorten(strings.TrimSpace(row[2]), entryLen))
		total++
	}
	if total == 0 {
		return "", false, nil
	}
	sort.Strings(order)

	var sb strings.Builder
	sb.WriteString(title)
	fmt.Fprintf(&sb, "\nВсего записей: %d\n", total)
	for _, category := range order {
		entries := grouped[category]
		fmt.Fprintf(&sb, "\n%s (%d):\n", category, len(entries))
		shown := entries
		if len(shown) > entryLimit {
			shown = shown[len(shown)-entryLimit:]
		}
		for _, entry := range shown {
			sb.WriteString("• " + entry + "\n")
		}
		if len(entries) > entryLimit {
			fmt.Fprintf(&sb, "… и еще %d\n", len(entries)-entryLimit)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), true, nil
}

// midnight normalizes to a UTC date value so comparisons against parsed
// cell dates (also UTC date values) ignore the wall-clock timezone.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDay(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, format := range []string{dateFormat, "2006-01-02"} {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
