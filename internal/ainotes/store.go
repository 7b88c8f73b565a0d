// Package ainotes caches per-chapter AI analyses in ainotes.json and decides
// when a cached analysis has gone stale.
package ainotes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/storage"
)

// FileName is the AI notes document at the project root.
const FileName = "ainotes.json"

// Store holds the AINotesRegistry. Entries are only ever replaced whole.
type Store struct {
	mu     sync.Mutex
	fs     storage.Provider
	logger *slog.Logger
	notes  models.AINotesRegistry
}

// New creates a Store. Call Load before use.
func New(fs storage.Provider, logger *slog.Logger) *Store {
	return &Store{fs: fs, logger: logger, notes: models.AINotesRegistry{}}
}

// Load reads ainotes.json. Entries stored in the legacy bare-array shape are
// upgraded; entries that fit neither shape are dropped.
func (s *Store) Load() (models.AINotesRegistry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fs.ReadFile(FileName)
	if err == nil {
		var reg models.AINotesRegistry
		if reg, err = decode(data, s.logger); err == nil {
			s.notes = reg
			return clone(s.notes), nil
		}
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("ainotes: unreadable notes, starting empty", slog.String("error", err.Error()))
	}

	s.notes = models.AINotesRegistry{}
	if err := s.persist(s.notes); err != nil {
		s.logger.Error("ainotes: persist empty registry failed", slog.String("error", err.Error()))
	}
	return clone(s.notes), nil
}

// decode normalizes both on-disk shapes into AINoteData.
func decode(data []byte, logger *slog.Logger) (models.AINotesRegistry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ainotes: decode: %w", err)
	}
	out := make(models.AINotesRegistry, len(raw))
	for id, msg := range raw {
		entry, err := decodeEntry(msg)
		if err != nil {
			logger.Warn("ainotes: dropping malformed entry", slog.String("chapter", id), slog.String("error", err.Error()))
			continue
		}
		out[id] = entry
	}
	return out, nil
}

func decodeEntry(msg json.RawMessage) (models.AINoteData, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var legacy []models.AINote
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return models.AINoteData{}, err
		}
		return models.AINoteData{Notes: nonNil(legacy)}, nil
	}
	var entry models.AINoteData
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return models.AINoteData{}, err
	}
	entry.Notes = nonNil(entry.Notes)
	return entry, nil
}

// Get returns the cached analysis of a chapter.
func (s *Store) Get(chapterID string) (models.AINoteData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.notes[chapterID]
	return d, ok
}

// All returns a copy of every cached analysis.
func (s *Store) All() models.AINotesRegistry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.notes)
}

// Put replaces the analysis of a chapter.
func (s *Store) Put(chapterID string, data models.AINoteData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.notes)
	data.Notes = copyNotes(data.Notes)
	next[chapterID] = data
	if err := s.persist(next); err != nil {
		return err
	}
	s.notes = next
	return nil
}

// Rename moves the entry of oldID to newID. Missing entries are a no-op.
func (s *Store) Rename(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.notes[oldID]
	if !ok || oldID == newID {
		return nil
	}
	next := clone(s.notes)
	delete(next, oldID)
	next[newID] = entry
	if err := s.persist(next); err != nil {
		return err
	}
	s.notes = next
	return nil
}

func (s *Store) persist(reg models.AINotesRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("ainotes: encode: %w", err)
	}
	if err := s.fs.WriteFile(FileName, data); err != nil {
		return fmt.Errorf("ainotes: write: %w", err)
	}
	return nil
}

func clone(in models.AINotesRegistry) models.AINotesRegistry {
	out := make(models.AINotesRegistry, len(in))
	for k, v := range in {
		v.Notes = copyNotes(v.Notes)
		out[k] = v
	}
	return out
}

func copyNotes(in []models.AINote) []models.AINote {
	out := make([]models.AINote, len(in))
	copy(out, in)
	return out
}

func nonNil(n []models.AINote) []models.AINote {
	if n == nil {
		return []models.AINote{}
	}
	return n
}
