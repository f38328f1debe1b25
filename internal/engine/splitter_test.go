package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

var splitCatalogue = model.Catalogue{
	{Name: "Задачи", Description: "дела"},
	{Name: "Идеи", Description: "замыслы"},
	{Name: "Траты", Description: "расходы"},
}

func TestSplitItems_RuleTierWins(t *testing.T) {
	chat := &MockChat{}
	e := newTestEngine(t, NewMockStore(), chat)

	items := e.splitItems(context.Background(), "нужно позвонить клиенту, а еще купил кофе за 200 рублей", splitCatalogue, "gpt-4o")

	require.Len(t, items, 2)
	assert.Equal(t, "Задачи", items[0].Category)
	assert.Equal(t, "нужно позвонить клиенту", items[0].Text)
	assert.Equal(t, model.SourceRule, items[0].Source)
	assert.Equal(t, "Траты", items[1].Category)
	assert.Equal(t, "купил кофе за 200 рублей", items[1].Text)
	assert.Empty(t, chat.Calls(), "explicit signals must be handled without the model")
}

func TestSplitItems_TaskListSplit(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	items := e.splitItems(context.Background(), "надо сделать на неделе: собрать отчет и позвонить маме и оплатить интернет", splitCatalogue, "gpt-4o")

	require.Len(t, items, 3)
	assert.Equal(t, "собрать отчет", items[0].Text)
	assert.Equal(t, "позвонить маме", items[1].Text)
	assert.Equal(t, "оплатить интернет", items[2].Text)
	for _, it := range items {
		assert.Equal(t, "Задачи", it.Category)
	}
}

func TestSplitItems_MixedClauseSplitsOnConjunction(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	items := e.splitItems(context.Background(), "надо записаться к врачу и потратил 300 рублей на обед", splitCatalogue, "gpt-4o")

	require.Len(t, items, 2)
	assert.Equal(t, "Задачи", items[0].Category)
	assert.Equal(t, "Траты", items[1].Category)
}

func TestSplitItems_ModelTier(t *testing.T) {
	t.Run("model split normalizes categories", func(t *testing.T) {
		chat := &MockChat{JSONQueue: []json.RawMessage{json.RawMessage(
			`{"items": [{"category": "идеи", "text": "сделать курс про гитару"}]}`,
		)}}
		e := newTestEngine(t, NewMockStore(), chat)

		items := e.splitItems(context.Background(), "думаю про курс про гитару", splitCatalogue, "gpt-4o")

		require.Len(t, items, 1)
		assert.Equal(t, "Идеи", items[0].Category)
		assert.Equal(t, model.SourceLLM, items[0].Source)
	})

	t.Run("model failure degrades to one item", func(t *testing.T) {
		chat := &MockChat{JSONErr: errors.New("timeout")}
		e := newTestEngine(t, NewMockStore(), chat)

		items := e.splitItems(context.Background(), "запиши пару мыслей", splitCatalogue, "gpt-4o")

		require.Len(t, items, 1)
		assert.Equal(t, "запиши пару мыслей", items[0].Text)
		assert.Empty(t, items[0].Category)
	})

	t.Run("garbage response degrades to one item", func(t *testing.T) {
		chat := &MockChat{JSONQueue: []json.RawMessage{json.RawMessage(`{"items": []}`)}}
		e := newTestEngine(t, NewMockStore(), chat)

		items := e.splitItems(context.Background(), "запиши пару мыслей", splitCatalogue, "gpt-4o")
		require.Len(t, items, 1)
	})

	t.Run("backstop re-adds a family the model dropped", func(t *testing.T) {
		chat := &MockChat{JSONQueue: []json.RawMessage{json.RawMessage(
			`{"items": [{"category": "Идеи", "text": "клуб по интересам"}]}`,
		)}}
		e := newTestEngine(t, NewMockStore(), chat)
		transcript := "думаю про клуб по интересам. Завтра встретиться с партнером"

		items := e.splitItems(context.Background(), transcript, splitCatalogue, "gpt-4o")

		require.Len(t, items, 2)
		assert.Equal(t, "Идеи", items[0].Category)
		assert.Equal(t, "Задачи", items[1].Category)
		assert.Equal(t, model.SourceHeuristic, items[1].Source)
		assert.Contains(t, items[1].Text, "встретиться")
	})
}

func TestSplitItems_AlwaysAtLeastOne(t *testing.T) {
	chat := &MockChat{JSONErr: errors.New("down")}
	e := newTestEngine(t, NewMockStore(), chat)

	for _, transcript := range []string{
		"нужно сделать отчет",
		"что-то невнятное",
		"а",
	} {
		items := e.splitItems(context.Background(), transcript, splitCatalogue, "gpt-4o")
		assert.NotEmpty(t, items, transcript)
	}
}

func TestExpandItemText(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})
	transcript := "Сегодня был длинный день. Нужно обязательно позвонить клиенту по поводу договора. Устал."

	t.Run("short fragment expands to the source sentence", func(t *testing.T) {
		got := e.expandItemText("позвонить клиенту", transcript, "Задачи")
		assert.Equal(t, "Нужно обязательно позвонить клиенту по поводу договора", got)
	})

	t.Run("longer fragment is kept", func(t *testing.T) {
		text := "нужно обязательно позвонить клиенту по поводу договора и уточнить сроки оплаты"
		got := e.expandItemText(text, transcript, "Задачи")
		assert.Equal(t, text, got)
	})

	t.Run("empty fragment falls back to the transcript", func(t *testing.T) {
		got := e.expandItemText("", "нужно сделать отчет", "Задачи")
		assert.Equal(t, "нужно сделать отчет", got)
	})
}

func TestSplitItems_RuleTierIdempotent(t *testing.T) {
	e := newTestEngine(t, NewMockStore(), &MockChat{})

	items := e.splitItems(context.Background(), "нужно позвонить клиенту, а еще купил кофе за 200 рублей", splitCatalogue, "gpt-4o")
	require.Len(t, items, 2)

	// Re-splitting an already-split item must not split it further.
	for _, it := range items {
		again := e.splitItems(context.Background(), it.Text, splitCatalogue, "gpt-4o")
		require.Len(t, again, 1, it.Text)
		assert.Equal(t, it.Category, again[0].Category)
	}
}
