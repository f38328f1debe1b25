package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixed test day: Wednesday.
var testToday = time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{name: "primary format", input: "11.02.2026", want: testToday, ok: true},
		{name: "iso format", input: "2026-02-11", want: testToday, ok: true},
		{name: "padded", input: "  11.02.2026  ", want: testToday, ok: true},
		{name: "empty", input: "", ok: false},
		{name: "garbage", input: "скоро", ok: false},
		{name: "us format rejected", input: "02/11/2026", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractExplicitDate(t *testing.T) {
	got, ok := extractExplicitDate("перенеси на 25.03.2026 пожалуйста")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC), got)

	got, ok = extractExplicitDate("дедлайн 2026-03-25")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC), got)

	_, ok = extractExplicitDate("без даты")
	assert.False(t, ok)
}

func TestExtractRelativeDate(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{name: "today", text: "сделать сегодня", want: testToday, ok: true},
		{name: "tomorrow", text: "позвонить завтра", want: testToday.AddDate(0, 0, 1), ok: true},
		{name: "day after tomorrow wins over its suffix", text: "встреча послезавтра", want: testToday.AddDate(0, 0, 2), ok: true},
		{name: "weekday later this week", text: "сдать в пятницу", want: time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "weekday already passed rolls forward", text: "в понедельник", want: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "next weekday anchors to following week", text: "в следующую пятницу", want: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "next monday", text: "в следующий понедельник", want: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "no phrase", text: "просто запись", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.extractRelativeDate(tt.text, testToday)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestApplyDateFields(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})
	headers := []string{"Задача*", "Дата добавления", "Дата выполнения"}

	t.Run("added-on forced, due from relative date", func(t *testing.T) {
		row := e.applyDateFields(headers, []string{"позвонить", "01.01.2020", ""}, "позвонить завтра", testToday)
		assert.Equal(t, "11.02.2026", row[1])
		assert.Equal(t, "12.02.2026", row[2])
	})

	t.Run("explicit date wins over relative", func(t *testing.T) {
		row := e.applyDateFields(headers, []string{"сдать", "", ""}, "сдать завтра, крайний срок 25.03.2026", testToday)
		assert.Equal(t, "11.02.2026", row[1])
		assert.Equal(t, "25.03.2026", row[2])
	})

	t.Run("no date mention leaves due column alone", func(t *testing.T) {
		row := e.applyDateFields(headers, []string{"сдать", "", ""}, "сдать отчет", testToday)
		assert.Equal(t, "11.02.2026", row[1])
		assert.Equal(t, "", row[2])
	})

	t.Run("short row is padded", func(t *testing.T) {
		row := e.applyDateFields(headers, []string{"сдать"}, "сдать", testToday)
		require.Len(t, row, 3)
		assert.Equal(t, "11.02.2026", row[1])
	})
}
