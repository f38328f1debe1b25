package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deleteStore() *MockStore {
	store := NewMockStore()
	store.AddSheet("Задачи", []string{"Дата добавления", "Задача*", "Сырой текст"},
		[]string{"10.02.2026", "Купить кофе", "надо купить кофе"},
		[]string{"11.02.2026", "Сдать отчет", "надо сдать отчет"},
	)
	store.AddSheet("Траты", []string{"Дата", "Сумма*", "На что потрачено"},
		[]string{"10.02.2026", "200", "кофе"},
		[]string{"05.02.2026", "1500", "продукты"},
	)
	store.AddSheet("Inbox", []string{"Дата", "Категория", "Текст"},
		[]string{"10.02.2026", "Задачи", "надо купить кофе"},
		[]string{"11.02.2026", "Задачи", "надо сдать отчет"},
	)
	return store
}

func TestInferFilters(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	tests := []struct {
		name      string
		query     string
		wantSheet []string
		wantDated bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "yesterday",
			query:     "удали вчерашнюю запись",
			wantDated: true,
			wantStart: testToday.AddDate(0, 0, -1),
			wantEnd:   testToday.AddDate(0, 0, -1),
		},
		{
			name:      "day before yesterday wins over its suffix",
			query:     "удали запись за позавчера",
			wantDated: true,
			wantStart: testToday.AddDate(0, 0, -2),
			wantEnd:   testToday.AddDate(0, 0, -2),
		},
		{
			name:      "today",
			query:     "удали сегодняшнюю трату",
			wantSheet: []string{"трат", "расход", "expense", "spend"},
			wantDated: true,
			wantStart: testToday,
			wantEnd:   testToday,
		},
		{
			name:      "last N days window",
			query:     "удали записи за последние 3 дня",
			wantDated: true,
			wantStart: testToday.AddDate(0, 0, -2),
			wantEnd:   testToday,
		},
		{
			name:      "task keyword restricts sheets",
			query:     "удали задачу про кофе",
			wantSheet: []string{"задач", "task"},
		},
		{
			name:  "plain text has no filters",
			query: "удали запись про кофе",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := e.inferFilters(tt.query, testToday)
			assert.Equal(t, tt.wantSheet, filters.sheetKeywords)
			assert.Equal(t, tt.wantDated, filters.dated)
			if tt.wantDated {
				assert.Equal(t, tt.wantStart, filters.start)
				assert.Equal(t, tt.wantEnd, filters.end)
			}
		})
	}
}

func TestInferFilters_LastDaysClamped(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	filters := e.inferFilters("удали за последние 9000 дней", testToday)
	require.True(t, filters.dated)
	assert.Equal(t, testToday.AddDate(0, 0, -(maxLastDays-1)), filters.start)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"купить", "кофе", "200"}, tokenize("Купить кофе за 200!"))
	assert.Empty(t, tokenize("за и в"))
}

func TestQueryTokens_DropStopWords(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	tokens := e.queryTokens("удали задачу про кофе за последние 3 дня")
	assert.NotContains(t, tokens, "удали")
	assert.NotContains(t, tokens, "последние")
	assert.NotContains(t, tokens, "дня")
	assert.Contains(t, tokens, "кофе")
}

func TestFindDeleteCandidates(t *testing.T) {
	t.Run("yesterday task about coffee", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали вчерашнюю задачу про кофе", 7)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Задачи", candidates[0].Sheet)
		assert.Equal(t, 2, candidates[0].RowIndex)
		assert.Contains(t, candidates[0].Preview, "[Задачи]")
		assert.Contains(t, candidates[0].Preview, "Купить кофе")
	})

	t.Run("token scoring ranks the best match first", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали отчет", 7)
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "Задачи", candidates[0].Sheet)
		assert.Equal(t, 3, candidates[0].RowIndex)
	})

	t.Run("date window alone matches every row in it", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали за последние 2 дня", 7)
		require.NoError(t, err)
		// 10.02 and 11.02 rows across both sheets.
		assert.Len(t, candidates, 3)
	})

	t.Run("reserved sheets are never scanned", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали кофе", 7)
		require.NoError(t, err)
		for _, c := range candidates {
			assert.NotEqual(t, "Inbox", c.Sheet)
		}
	})

	t.Run("tokenless filterless query matches nothing", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали", 7)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("limit truncates the list", func(t *testing.T) {
		e := newTestEngine(t, deleteStore(), &MockChat{})

		candidates, err := e.findDeleteCandidates(context.Background(), "удали за последние 2 дня", 2)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})
}

func TestDeleteCandidate_RemovesAuditEntry(t *testing.T) {
	store := deleteStore()
	e := newTestEngine(t, store, &MockChat{})

	candidates, err := e.findDeleteCandidates(context.Background(), "удали вчерашнюю задачу про кофе", 7)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	auditDeleted, err := e.deleteCandidate(context.Background(), candidates[0])
	require.NoError(t, err)
	assert.True(t, auditDeleted)

	deletes := store.Deletes()
	require.Len(t, deletes, 2)
	assert.Equal(t, DeleteCall{Sheet: "Задачи", RowIndex: 2}, deletes[0])
	assert.Equal(t, DeleteCall{Sheet: "Inbox", RowIndex: 2}, deletes[1])

	// Only the matching audit entry is gone.
	require.Len(t, store.Sheets["Inbox"], 2)
	assert.Equal(t, "надо сдать отчет", store.Sheets["Inbox"][1][2])
}

func TestDeleteCandidate_NoAuditMatch(t *testing.T) {
	store := deleteStore()
	store.Sheets["Inbox"] = store.Sheets["Inbox"][:1]
	e := newTestEngine(t, store, &MockChat{})

	candidates, err := e.findDeleteCandidates(context.Background(), "удали вчерашнюю задачу про кофе", 7)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	auditDeleted, err := e.deleteCandidate(context.Background(), candidates[0])
	require.NoError(t, err)
	assert.False(t, auditDeleted)
	assert.Len(t, store.Deletes(), 1)
}
