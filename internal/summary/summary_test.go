package summary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/engine"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/settings"
)

var digestNow = time.Date(2026, 2, 11, 21, 5, 0, 0, time.UTC) // Wednesday evening

func auditStore() *engine.MockStore {
	store := engine.NewMockStore()
	store.AddSheet("Inbox", []string{"Дата", "Категория", "Текст"},
		[]string{"11.02.2026", "Задачи", "надо сдать отчет"},
		[]string{"11.02.2026", "Траты", "купил кофе за 200"},
		[]string{"10.02.2026", "Задачи", "позвонить маме"},
		[]string{"01.02.2026", "Идеи", "старая запись вне окна"},
	)
	return store
}

func TestBuild_Daily(t *testing.T) {
	b := NewBuilder(auditStore(), "")

	text, ok, err := b.Build(context.Background(), PeriodDaily, digestNow)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Contains(t, text, "Итоги дня 11.02.2026")
	assert.Contains(t, text, "Всего записей: 2")
	assert.Contains(t, text, "Задачи (1):")
	assert.Contains(t, text, "• надо сдать отчет")
	assert.Contains(t, text, "Траты (1):")
	assert.NotContains(t, text, "позвонить маме")
	assert.NotContains(t, text, "Идеи")
}

func TestBuild_Weekly(t *testing.T) {
	b := NewBuilder(auditStore(), "")

	text, ok, err := b.Build(context.Background(), PeriodWeekly, digestNow)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Contains(t, text, "Итоги недели 05.02.2026 – 11.02.2026")
	assert.Contains(t, text, "Всего записей: 3")
	assert.Contains(t, text, "позвонить маме")
	assert.NotContains(t, text, "старая запись")
}

func TestBuild_EmptyWindow(t *testing.T) {
	store := engine.NewMockStore()
	store.AddSheet("Inbox", []string{"Дата", "Категория", "Текст"},
		[]string{"01.01.2026", "Задачи", "давно"})
	b := NewBuilder(store, "")

	_, ok, err := b.Build(context.Background(), PeriodDaily, digestNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_EntryLimitPerCategory(t *testing.T) {
	store := engine.NewMockStore()
	store.AddSheet("Inbox", []string{"Дата", "Категория", "Текст"})
	for i := 0; i < entryLimit+5; i++ {
		store.Sheets["Inbox"] = append(store.Sheets["Inbox"],
			[]string{"11.02.2026", "Задачи", fmt.Sprintf("задача %d", i)})
	}
	b := NewBuilder(store, "")

	text, ok, err := b.Build(context.Background(), PeriodDaily, digestNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, fmt.Sprintf("Задачи (%d):", entryLimit+5))
	assert.Contains(t, text, "… и еще 5")
	// The oldest entries are the ones dropped.
	assert.NotContains(t, text, "• задача 0\n")
	assert.Contains(t, text, fmt.Sprintf("задача %d", entryLimit+4))
}

type mockSender struct {
	sent []string
	err  error
}

func (m *mockSender) SendMessage(_ context.Context, _ int64, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, text)
	return nil
}

type staticSource struct {
	opts settings.Settings
}

func (s *staticSource) Current() settings.Settings { return s.opts }
func (s *staticSource) Location() *time.Location   { return time.UTC }

func newTestScheduler(store *engine.MockStore, sender *mockSender, opts settings.Settings, now time.Time) *Scheduler {
	s := NewScheduler(NewBuilder(store, ""), sender, &staticSource{opts: opts}, time.Minute)
	s.clock = func() time.Time { return now }
	return s
}

func TestScheduler_SendsOncePerDay(t *testing.T) {
	sender := &mockSender{}
	s := newTestScheduler(auditStore(), sender, settings.Settings{
		DigestMode:   settings.DigestDaily,
		DigestHour:   21,
		DigestChatID: 42,
	}, digestNow)

	s.Tick(context.Background())
	s.Tick(context.Background())

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Итоги дня")
}

func TestScheduler_WaitsForDigestHour(t *testing.T) {
	sender := &mockSender{}
	s := newTestScheduler(auditStore(), sender, settings.Settings{
		DigestMode:   settings.DigestDaily,
		DigestHour:   21,
		DigestChatID: 42,
	}, time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC))

	s.Tick(context.Background())
	assert.Empty(t, sender.sent)
}

func TestScheduler_OffOrUnconfigured(t *testing.T) {
	sender := &mockSender{}
	s := newTestScheduler(auditStore(), sender, settings.Settings{
		DigestMode: settings.DigestOff,
	}, digestNow)
	s.Tick(context.Background())

	s = newTestScheduler(auditStore(), sender, settings.Settings{
		DigestMode: settings.DigestDaily, DigestHour: 21,
	}, digestNow)
	s.Tick(context.Background())

	assert.Empty(t, sender.sent)
}

func TestScheduler_WeeklyOnlyOnSunday(t *testing.T) {
	opts := settings.Settings{
		DigestMode:   settings.DigestWeekly,
		DigestHour:   21,
		DigestChatID: 42,
	}

	sender := &mockSender{}
	s := newTestScheduler(auditStore(), sender, opts, digestNow) // Wednesday
	s.Tick(context.Background())
	assert.Empty(t, sender.sent)

	sunday := time.Date(2026, 2, 15, 21, 5, 0, 0, time.UTC)
	s = newTestScheduler(auditStore(), sender, opts, sunday)
	s.Tick(context.Background())
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Итоги недели")
}

func TestScheduler_SendFailureRetriesNextTick(t *testing.T) {
	sender := &mockSender{err: context.DeadlineExceeded}
	s := newTestScheduler(auditStore(), sender, settings.Settings{
		DigestMode:   settings.DigestDaily,
		DigestHour:   21,
		DigestChatID: 42,
	}, digestNow)

	s.Tick(context.Background())
	assert.Empty(t, sender.sent)

	sender.err = nil
	s.Tick(context.Background())
	require.Len(t, sender.sent, 1)
}
