// Package settings holds the mutable runtime options of the bot: model
// name, timezone and digest schedule. They are persisted as a JSON file so
// changes survive restarts without touching the static config.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
)

// Digest schedule modes.
const (
	DigestOff    = "off"
	DigestDaily  = "daily"
	DigestWeekly = "weekly"
)

// Settings is the persisted shape. Zero values fall back to defaults at
// read time, so an older file stays loadable after new fields appear.
type Settings struct {
	Model        string `json:"model,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	DigestMode   string `json:"digest_mode,omitempty"`
	DigestHour   int    `json:"digest_hour,omitempty"`
	DigestChatID int64  `json:"digest_chat_id,omitempty"`
}

// Store reads and writes settings behind a mutex. Location results are
// cached because time.LoadLocation hits the filesystem.
type Store struct {
	mu       sync.RWMutex
	path     string
	defaults Settings
	current  Settings
	loc      *time.Location
}

// NewStore loads the settings file at path, falling back to defaults when
// it does not exist yet. A corrupt file is an error, not a silent reset.
func NewStore(path string, defaults Settings) (*Store, error) {
	if defaults.Model == "" {
		defaults.Model = "gpt-4o"
	}
	if defaults.DigestMode == "" {
		defaults.DigestMode = DigestOff
	}
	if defaults.DigestHour <= 0 {
		defaults.DigestHour = 21
	}

	s := &Store{path: path, defaults: defaults, current: defaults}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading settings file: %w", err)
	default:
		var loaded Settings
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
		s.current = s.merged(loaded)
	}

	if err := s.reloadLocation(); err != nil {
		return nil, err
	}
	return s, nil
}

// merged fills unset fields of loaded from the defaults.
func (s *Store) merged(loaded Settings) Settings {
	out := loaded
	if out.Model == "" {
		out.Model = s.defaults.Model
	}
	if out.Timezone == "" {
		out.Timezone = s.defaults.Timezone
	}
	if out.DigestMode == "" {
		out.DigestMode = s.defaults.DigestMode
	}
	if out.DigestHour <= 0 {
		out.DigestHour = s.defaults.DigestHour
	}
	return out
}

func (s *Store) reloadLocation() error {
	name := s.current.Timezone
	if name == "" {
		s.loc = time.UTC
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", name, err)
	}
	s.loc = loc
	return nil
}

// Current returns a copy of the live settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ModelName returns the active chat model name.
func (s *Store) ModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Model
}

// Location returns the active timezone, UTC when none is configured.
func (s *Store) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

// Update applies fn to a copy of the current settings and persists the
// result. The write is atomic: a temp file in the same directory is
// renamed over the target.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	fn(&next)
	next = s.merged(next)

	prevLoc := s.loc
	prev := s.current
	s.current = next
	if err := s.reloadLocation(); err != nil {
		s.current = prev
		s.loc = prevLoc
		return err
	}

	if err := s.persist(); err != nil {
		s.current = prev
		s.loc = prevLoc
		return err
	}
	common.LogInfo("settings updated", common.Fields{
		"model":       next.Model,
		"timezone":    next.Timezone,
		"digest_mode": next.DigestMode,
	})
	return nil
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
