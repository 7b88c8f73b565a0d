// Package settings persists project preferences as settings.json.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/storage"
)

// FileName is the settings document at the project root.
const FileName = "settings.json"

// DefaultCursorDelay debounces writes of the UI-cursor fields.
const DefaultCursorDelay = 1500 * time.Millisecond

// Store keeps the merged settings in memory. Regular updates are written
// synchronously; cursor updates are coalesced on a timer.
type Store struct {
	mu     sync.Mutex
	fs     storage.Provider
	logger *slog.Logger
	delay  time.Duration

	current     models.ProjectSettings
	cursorDirty bool
	timer       *time.Timer
}

// New creates a Store. delay <= 0 selects DefaultCursorDelay.
func New(fs storage.Provider, logger *slog.Logger, delay time.Duration) *Store {
	if delay <= 0 {
		delay = DefaultCursorDelay
	}
	return &Store{
		fs:      fs,
		logger:  logger,
		delay:   delay,
		current: models.DefaultSettings(),
	}
}

// Load reads settings.json over the defaults. Unreadable settings fall back
// to the defaults, which are written back immediately.
func (s *Store) Load() (models.ProjectSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := models.DefaultSettings()
	data, err := s.fs.ReadFile(FileName)
	if err == nil {
		if err = json.Unmarshal(data, &loaded); err == nil {
			s.current = loaded
			return s.current, nil
		}
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("settings: unreadable settings, using defaults", slog.String("error", err.Error()))
	}

	s.current = models.DefaultSettings()
	if err := s.persist(s.current); err != nil {
		s.logger.Error("settings: persist defaults failed", slog.String("error", err.Error()))
	}
	return s.current, nil
}

// Get returns the current settings.
func (s *Store) Get() models.ProjectSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AIAvailable reports whether AI features are configured.
func (s *Store) AIAvailable() bool {
	return s.Get().AIAvailable()
}

// Update merges patch and persists the full object before committing it.
// Pending cursor changes are written along with it.
func (s *Store) Update(patch models.SettingsPatch) (models.ProjectSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := patch.Apply(s.current)
	if err := s.persist(next); err != nil {
		return s.current, err
	}
	s.current = next
	s.cursorDirty = false
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.current, nil
}

// UpdateCursor merges the cursor fields of patch in memory and schedules a
// debounced write. Non-cursor fields of patch are ignored.
func (s *Store) UpdateCursor(patch models.SettingsPatch) models.ProjectSettings {
	cursor := models.SettingsPatch{
		LastViewMode:    patch.LastViewMode,
		LastChapterID:   patch.LastChapterID,
		LastComponentID: patch.LastComponentID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = cursor.Apply(s.current)
	s.cursorDirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.flushFromTimer)
	} else {
		s.timer.Reset(s.delay)
	}
	return s.current
}

func (s *Store) flushFromTimer() {
	if err := s.Flush(); err != nil {
		s.logger.Error("settings: debounced write failed", slog.String("error", err.Error()))
	}
}

// Flush writes pending cursor changes now.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cursorDirty {
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	if err := s.persist(s.current); err != nil {
		return err
	}
	s.cursorDirty = false
	return nil
}

// Close flushes pending cursor changes.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) persist(v models.ProjectSettings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.fs.WriteFile(FileName, data); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}
