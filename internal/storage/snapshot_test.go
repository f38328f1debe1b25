package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/engine"
)

func openTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Open(filepath.Join(t.TempDir(), "backup", "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = snap.Close() })
	return snap
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	snap := openTestSnapshot(t)
	ctx := context.Background()

	headers := []string{"Дата", "Сумма*", "На что потрачено"}
	rows := [][]string{
		{"10.02.2026", "200", "кофе"},
		{"11.02.2026", "1500", "продукты"},
	}
	require.NoError(t, snap.WriteSheet(ctx, "Траты", headers, rows))

	gotHeaders, gotRows, err := snap.ReadSheet(ctx, "Траты")
	require.NoError(t, err)
	assert.Equal(t, headers, gotHeaders)
	assert.Equal(t, rows, gotRows)
}

func TestSnapshot_RewriteReplacesRows(t *testing.T) {
	snap := openTestSnapshot(t)
	ctx := context.Background()

	headers := []string{"Задача"}
	require.NoError(t, snap.WriteSheet(ctx, "Задачи", headers, [][]string{
		{"позвонить клиенту"}, {"сдать отчет"}, {"купить билеты"},
	}))
	require.NoError(t, snap.WriteSheet(ctx, "Задачи", headers, [][]string{
		{"новая задача"},
	}))

	_, rows, err := snap.ReadSheet(ctx, "Задачи")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"новая задача"}}, rows)

	infos, err := snap.Sheets(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Задачи", infos[0].Name)
	assert.Equal(t, 1, infos[0].RowCount)
}

func TestSnapshot_EmptySheetKeepsHeaders(t *testing.T) {
	snap := openTestSnapshot(t)
	ctx := context.Background()

	require.NoError(t, snap.WriteSheet(ctx, "Идеи", []string{"Дата", "Идея"}, nil))

	headers, rows, err := snap.ReadSheet(ctx, "Идеи")
	require.NoError(t, err)
	assert.Equal(t, []string{"Дата", "Идея"}, headers)
	assert.Empty(t, rows)
}

func TestSnapshot_ReadMissingSheet(t *testing.T) {
	snap := openTestSnapshot(t)

	_, _, err := snap.ReadSheet(context.Background(), "Нет такого")
	assert.ErrorContains(t, err, "not in the snapshot")
}

func TestExporter_Run(t *testing.T) {
	snap := openTestSnapshot(t)
	store := engine.NewMockStore()
	store.AddSheet("Задачи", []string{"Задача*"}, []string{"позвонить"}, []string{"сдать отчет"})
	store.AddSheet("Траты", []string{"Сумма*", "На что"}, []string{"200", "кофе"})
	store.AddSheet("Settings", []string{"key", "value"}, []string{"model", "gpt-4o"})

	var seen []string
	exporter := NewExporter(store, snap)
	result, err := exporter.Run(context.Background(), func(sheet string, rows int) {
		seen = append(seen, sheet)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Sheets)
	assert.Equal(t, 4, result.Rows)
	assert.ElementsMatch(t, []string{"Задачи", "Траты", "Settings"}, seen)

	_, rows, err := snap.ReadSheet(context.Background(), "Задачи")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"позвонить"}, {"сдать отчет"}}, rows)
}
