package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewStore(path, Settings{})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", store.ModelName())
	assert.Equal(t, time.UTC, store.Location())
	assert.Equal(t, DigestOff, store.Current().DigestMode)
	assert.Equal(t, 21, store.Current().DigestHour)

	// Nothing is written until the first update.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewStore_LoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"model": "gpt-4o-mini",
		"timezone": "Europe/Moscow",
		"digest_mode": "daily",
		"digest_hour": 9
	}`), 0o644))

	store, err := NewStore(path, Settings{})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", store.ModelName())
	assert.Equal(t, "Europe/Moscow", store.Location().String())
	assert.Equal(t, DigestDaily, store.Current().DigestMode)
	assert.Equal(t, 9, store.Current().DigestHour)
}

func TestNewStore_PartialFileFilledFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model": "gpt-4o-mini"}`), 0o644))

	store, err := NewStore(path, Settings{DigestMode: DigestWeekly, DigestHour: 10})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", store.ModelName())
	assert.Equal(t, DigestWeekly, store.Current().DigestMode)
	assert.Equal(t, 10, store.Current().DigestHour)
}

func TestNewStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewStore(path, Settings{})
	assert.Error(t, err)
}

func TestNewStore_BadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timezone": "Nowhere/Invalid"}`), 0o644))

	_, err := NewStore(path, Settings{})
	assert.Error(t, err)
}

func TestUpdate_PersistsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	store, err := NewStore(path, Settings{})
	require.NoError(t, err)

	err = store.Update(func(s *Settings) {
		s.Model = "gpt-4o-mini"
		s.DigestMode = DigestDaily
		s.DigestChatID = 42
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", store.ModelName())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Settings
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "gpt-4o-mini", onDisk.Model)
	assert.Equal(t, int64(42), onDisk.DigestChatID)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdate_InvalidTimezoneRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path, Settings{Timezone: "Europe/Moscow"})
	require.NoError(t, err)

	err = store.Update(func(s *Settings) { s.Timezone = "Nowhere/Invalid" })
	require.Error(t, err)

	assert.Equal(t, "Europe/Moscow", store.Current().Timezone)
	assert.Equal(t, "Europe/Moscow", store.Location().String())
}

func TestUpdate_ReloadedByNewStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path, Settings{})
	require.NoError(t, err)
	require.NoError(t, store.Update(func(s *Settings) { s.Model = "gpt-4.1" }))

	reloaded, err := NewStore(path, Settings{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", reloaded.ModelName())
}
