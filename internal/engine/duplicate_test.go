package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		// new row
		summaryNew, rawNew, dateNew string
		// existing row
		summaryOld, rawOld, dateOld string
		want bool
	}{
		{
			name:       "summary match with equal dates",
			summaryNew: "купить кофе", dateNew: "11.02.2026",
			summaryOld: "купить кофе", dateOld: "11.02.2026",
			want: true,
		},
		{
			name:       "summary match is case and whitespace insensitive",
			summaryNew: "Купить  кофе", dateNew: "11.02.2026",
			summaryOld: "купить кофе", dateOld: "11.02.2026",
			want: true,
		},
		{
			name:       "summary match with one empty date",
			summaryNew: "купить кофе", dateNew: "",
			summaryOld: "купить кофе", dateOld: "11.02.2026",
			want: true,
		},
		{
			name:       "summary match with different dates",
			summaryNew: "купить кофе", dateNew: "11.02.2026",
			summaryOld: "купить кофе", dateOld: "12.02.2026",
			want: false,
		},
		{
			name:   "raw match with equal dates",
			rawNew: "потратил 200 на кофе", dateNew: "11.02.2026",
			rawOld: "Потратил 200 на кофе", dateOld: "11.02.2026",
			want: true,
		},
		{
			name:       "different texts",
			summaryNew: "купить кофе", rawNew: "купить кофе",
			summaryOld: "купить чай", rawOld: "купить чай",
			want: false,
		},
		{
			name:       "empty cells never match each other",
			summaryNew: "", rawNew: "",
			summaryOld: "", rawOld: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isDuplicate(tt.summaryNew, tt.rawNew, tt.dateNew, tt.summaryOld, tt.rawOld, tt.dateOld)
			assert.Equal(t, tt.want, got)

			// Collision is symmetric: swapping old and new must agree.
			swapped := isDuplicate(tt.summaryOld, tt.rawOld, tt.dateOld, tt.summaryNew, tt.rawNew, tt.dateNew)
			assert.Equal(t, got, swapped)
		})
	}
}

func TestFindDuplicate(t *testing.T) {
	headers := []string{"Дата", "Суть", "Сырой текст"}

	t.Run("recent colliding row is previewed", func(t *testing.T) {
		store := NewMockStore()
		store.AddSheet("Траты", headers,
			[]string{"11.02.2026", "Купить кофе", "надо купить кофе"})
		e := newTestEngine(t, store, &MockChat{})

		preview := e.findDuplicate(context.Background(), "Траты", headers,
			[]string{"11.02.2026", "купить кофе", "другой текст"})

		assert.Contains(t, preview, "Дата: 11.02.2026")
		assert.Contains(t, preview, "Суть: Купить кофе")
		assert.Contains(t, preview, "Сырой текст: надо купить кофе")
	})

	t.Run("no collision returns empty", func(t *testing.T) {
		store := NewMockStore()
		store.AddSheet("Траты", headers,
			[]string{"11.02.2026", "Купить чай", "надо купить чай"})
		e := newTestEngine(t, store, &MockChat{})

		preview := e.findDuplicate(context.Background(), "Траты", headers,
			[]string{"11.02.2026", "купить кофе", ""})
		assert.Empty(t, preview)
	})

	t.Run("only the last rows are scanned", func(t *testing.T) {
		store := NewMockStore()
		store.AddSheet("Траты", headers)
		// The colliding row is pushed out of the scan window by newer rows.
		store.Sheets["Траты"] = append(store.Sheets["Траты"],
			[]string{"01.01.2026", "Купить кофе", ""})
		for i := 0; i < duplicateScanLimit; i++ {
			store.Sheets["Траты"] = append(store.Sheets["Траты"],
				[]string{"02.01.2026", fmt.Sprintf("запись %d", i), ""})
		}
		e := newTestEngine(t, store, &MockChat{})

		preview := e.findDuplicate(context.Background(), "Траты", headers,
			[]string{"01.01.2026", "купить кофе", ""})
		assert.Empty(t, preview)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		e := newTestEngine(t, NewMockStore(), &MockChat{})
		preview := e.findDuplicate(context.Background(), "Нет такого", headers,
			[]string{"11.02.2026", "купить кофе", ""})
		assert.Empty(t, preview)
	})
}
