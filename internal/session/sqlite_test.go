package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_LoadMissingCreatesIdle(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Load(context.Background(), "100500")
	require.NoError(t, err)
	assert.Equal(t, "100500", sess.ID)
	assert.Equal(t, StateIdle, sess.State)
	assert.Nil(t, sess.Active)
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New("42")
	sess.State = StateWaitingRequired
	sess.Active = &Intake{
		Category:       "Задачи",
		Transcript:     "сделать презентацию",
		Today:          "11.02.2026",
		Headers:        []string{"Дата добавления", "Задача*", "Приоритет*"},
		Row:            []string{"11.02.2026", "сделать презентацию", ""},
		MissingIndices: []int{2},
	}
	sess.Queue = []Intake{{Category: "Траты", Transcript: "кофе 200"}}
	sess.Results = []string{"✅ Идеи: клуб по интересам"}
	sess.Candidates = []model.DeleteCandidate{
		{Sheet: "Задачи", Preview: "[Задачи] Задача: старое", RowIndex: 2},
	}
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, StateWaitingRequired, loaded.State)
	require.NotNil(t, loaded.Active)
	assert.Equal(t, "Задачи", loaded.Active.Category)
	assert.Equal(t, []int{2}, loaded.Active.MissingIndices)
	require.Len(t, loaded.Queue, 1)
	assert.Equal(t, "кофе 200", loaded.Queue[0].Transcript)
	assert.Equal(t, sess.Results, loaded.Results)
	require.Len(t, loaded.Candidates, 1)
	assert.Equal(t, 2, loaded.Candidates[0].RowIndex)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New("7")
	sess.State = StateWaitingDeletePick
	require.NoError(t, store.Save(ctx, sess))

	sess.Reset()
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, loaded.State)
}

func TestSQLiteStore_CorruptPayloadYieldsIdle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, payload, updated_at) VALUES ('9', 'idle', '{broken', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)

	sess, err := store.Load(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, sess.State)
	assert.Equal(t, "9", sess.ID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New("11")
	sess.Note = "длинная заметка"
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, "11"))

	loaded, err := store.Load(ctx, "11")
	require.NoError(t, err)
	assert.Empty(t, loaded.Note)
}

func TestSQLiteStore_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.Error(t, err)
	assert.Error(t, store.Save(ctx, nil))
	assert.Error(t, store.Save(ctx, &Session{}))
	assert.Error(t, store.Delete(ctx, ""))

	_, err = NewSQLiteStore("")
	assert.Error(t, err)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sessions.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	sess := New("77")
	sess.State = StateWaitingNoteConfirm
	sess.Note = "план на месяц"
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.Load(ctx, "77")
	require.NoError(t, err)
	assert.Equal(t, StateWaitingNoteConfirm, loaded.State)
	assert.Equal(t, "план на месяц", loaded.Note)
}

func TestSession_PopQueue(t *testing.T) {
	sess := New("1")
	assert.Nil(t, sess.PopQueue())

	sess.Queue = []Intake{{Transcript: "первый"}, {Transcript: "второй"}}
	first := sess.PopQueue()
	require.NotNil(t, first)
	assert.Equal(t, "первый", first.Transcript)
	second := sess.PopQueue()
	require.NotNil(t, second)
	assert.Equal(t, "второй", second.Transcript)
	assert.Nil(t, sess.PopQueue())
}

func TestSession_Reset(t *testing.T) {
	sess := New("2")
	sess.State = StateWaitingDuplicateConfirm
	sess.Active = &Intake{Category: "Траты"}
	sess.Queue = []Intake{{}}
	sess.Results = []string{"✅"}
	sess.Categories = []string{"Задачи"}
	sess.Candidates = []model.DeleteCandidate{{Sheet: "Задачи"}}
	sess.Note = "текст"
	sess.NoteDate = "11.02.2026"

	sess.Reset()

	assert.Equal(t, StateIdle, sess.State)
	assert.Nil(t, sess.Active)
	assert.Empty(t, sess.Queue)
	assert.Empty(t, sess.Results)
	assert.Empty(t, sess.Categories)
	assert.Empty(t, sess.Candidates)
	assert.Empty(t, sess.Note)
	assert.Empty(t, sess.NoteDate)
}
