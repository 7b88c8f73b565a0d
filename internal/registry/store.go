// Package registry owns the ordered index of chapters, characters and lore
// entries and its persistence as lorekeeper.json.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/slug"
	"github.com/starford/lorekeeper/internal/storage"
)

// FileName is the registry document at the project root.
const FileName = "lorekeeper.json"

// Store holds the in-memory registry. Every mutation works on a copy and
// commits it only after the copy was written successfully.
type Store struct {
	mu     sync.Mutex
	fs     storage.Provider
	logger *slog.Logger
	now    func() time.Time
	reg    models.Registry
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to mint ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over fs. Call Load before use.
func New(fs storage.Provider, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		fs:     fs,
		logger: logger,
		now:    time.Now,
		reg:    models.Registry{}.Clone(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Renamed describes the outcome of RenameItem.
type Renamed struct {
	Old     models.RegistryItem
	New     models.RegistryItem
	Changed bool
}

// Load reads lorekeeper.json. When it is missing or unreadable the registry
// is rebuilt from the content directories and the rebuild is persisted.
func (s *Store) Load() (models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fs.ReadFile(FileName)
	if err == nil {
		var reg models.Registry
		if err = json.Unmarshal(data, &reg); err == nil {
			s.reg = reg.Clone()
			return s.reg.Clone(), nil
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("registry: no registry file, scanning content directories")
	} else {
		s.logger.Warn("registry: unreadable registry, rebuilding from disk", slog.String("error", err.Error()))
	}

	reg := s.scan()
	if err := s.persist(reg); err != nil {
		s.logger.Error("registry: persist rebuilt registry failed", slog.String("error", err.Error()))
	}
	s.reg = reg
	return s.reg.Clone(), nil
}

// scan synthesizes one item per content file with the category's extension.
func (s *Store) scan() models.Registry {
	reg := models.Registry{}.Clone()
	for _, c := range models.Categories {
		names, err := s.fs.ListFiles(c.Dir())
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("registry: scan failed", slog.String("dir", c.Dir()), slog.String("error", err.Error()))
			}
			continue
		}
		items := make([]models.RegistryItem, 0, len(names))
		for _, name := range names {
			if !strings.HasSuffix(name, c.Ext()) {
				continue
			}
			id := strings.TrimSuffix(name, c.Ext())
			items = append(items, models.RegistryItem{ID: id, Title: id})
		}
		reg.SetItems(c, items)
	}
	return reg
}

// Save persists reg and, on success, makes it the in-memory registry.
func (s *Store) Save(reg models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := reg.Clone()
	if err := s.persist(next); err != nil {
		return err
	}
	s.reg = next
	return nil
}

// Snapshot returns a copy of the current registry.
func (s *Store) Snapshot() models.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Clone()
}

// Get looks up one item.
func (s *Store) Get(c models.Category, id string) (models.RegistryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.reg.IndexOf(c, id)
	if idx < 0 {
		return models.RegistryItem{}, false
	}
	return s.reg.Items(c)[idx], true
}

// CreateItem writes the initial content file for a new item, appends it to
// its category and persists the registry.
func (s *Store) CreateItem(title string, c models.Category) (models.RegistryItem, error) {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title, validation.Required); err != nil {
		return models.RegistryItem{}, fmt.Errorf("%w: title %v", apperr.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := models.RegistryItem{ID: s.mintID(c, title), Title: title}
	content, err := initialContent(c, item)
	if err != nil {
		return models.RegistryItem{}, err
	}
	if err := s.fs.WriteFile(c.Path(item.ID), content); err != nil {
		return models.RegistryItem{}, fmt.Errorf("registry: write initial content: %w", err)
	}

	next := s.reg.Clone()
	next.SetItems(c, append(next.Items(c), item))
	if err := s.persist(next); err != nil {
		return models.RegistryItem{}, err
	}
	s.reg = next
	return item, nil
}

// RenameItem gives an item a new title and a freshly minted id, renaming
// its backing file. Missing items and unchanged titles are no-ops. A failed
// file rename leaves the registry untouched.
func (s *Store) RenameItem(oldID, newTitle string, c models.Category) (Renamed, error) {
	newTitle = strings.TrimSpace(newTitle)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.reg.IndexOf(c, oldID)
	if idx < 0 {
		return Renamed{}, nil
	}
	old := s.reg.Items(c)[idx]
	if old.Title == newTitle {
		return Renamed{Old: old, New: old}, nil
	}
	if err := validation.Validate(newTitle, validation.Required); err != nil {
		return Renamed{}, fmt.Errorf("%w: title %v", apperr.ErrValidation, err)
	}

	renamed := models.RegistryItem{
		ID:           s.mintID(c, newTitle),
		Title:        newTitle,
		LastModified: old.LastModified,
	}
	if err := s.fs.RenameFile(c.Path(old.ID), c.Path(renamed.ID)); err != nil {
		return Renamed{}, fmt.Errorf("registry: rename file: %w", err)
	}
	original, err := s.retagDocument(c, renamed.ID)
	if err != nil {
		s.rollbackRename(c, old.ID, renamed.ID, nil)
		return Renamed{}, err
	}

	next := s.reg.Clone()
	next.Items(c)[idx] = renamed
	if err := s.persist(next); err != nil {
		s.rollbackRename(c, old.ID, renamed.ID, original)
		return Renamed{}, err
	}
	s.reg = next
	return Renamed{Old: old, New: renamed, Changed: true}, nil
}

// ReorderItem moves the element at from to position to.
func (s *Store) ReorderItem(from, to int, c models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.reg.Items(c))
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d out of range for %d %s", apperr.ErrValidation, from, to, n, c)
	}
	if from == to {
		return nil
	}

	next := s.reg.Clone()
	items := next.Items(c)
	moved := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]models.RegistryItem{moved}, items[to:]...)...)
	next.SetItems(c, items)

	if err := s.persist(next); err != nil {
		return err
	}
	s.reg = next
	return nil
}

// UpdateItemModified records the last content write of an item.
func (s *Store) UpdateItemModified(c models.Category, id string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.reg.IndexOf(c, id)
	if idx < 0 {
		return fmt.Errorf("registry: %s/%s: %w", c, id, apperr.ErrNotFound)
	}
	next := s.reg.Clone()
	next.Items(c)[idx].LastModified = ts
	if err := s.persist(next); err != nil {
		return err
	}
	s.reg = next
	return nil
}

// mintID returns "{millis}_{slug}", bumping the millisecond while the id is
// already taken in the category. Caller holds mu.
func (s *Store) mintID(c models.Category, title string) string {
	at := s.now()
	for {
		id := slug.NewID(at, title)
		if s.reg.IndexOf(c, id) < 0 {
			return id
		}
		at = at.Add(time.Millisecond)
	}
}

// retagDocument rewrites the embedded "id" of a character or lore sheet
// after its file moved to id. It returns the previous content, or nil when
// nothing was written. Sheets that are not JSON objects are left alone.
func (s *Store) retagDocument(c models.Category, id string) ([]byte, error) {
	if c == models.Chapters {
		return nil, nil
	}
	path := c.Path(id)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	patched, err := SetDocumentID(data, id)
	if err != nil {
		s.logger.Warn("registry: sheet id not updated",
			slog.String("path", path), slog.String("error", err.Error()))
		return nil, nil
	}
	if err := s.fs.WriteFile(path, patched); err != nil {
		return nil, fmt.Errorf("registry: write %s: %w", path, err)
	}
	return data, nil
}

// rollbackRename restores the file of a failed rename. original, when
// non-nil, is the content to put back before moving the file.
func (s *Store) rollbackRename(c models.Category, oldID, newID string, original []byte) {
	if original != nil {
		if err := s.fs.WriteFile(c.Path(newID), original); err != nil {
			s.logger.Error("registry: rollback content failed",
				slog.String("id", newID), slog.String("error", err.Error()))
		}
	}
	if err := s.fs.RenameFile(c.Path(newID), c.Path(oldID)); err != nil {
		s.logger.Error("registry: rollback rename failed",
			slog.String("id", newID), slog.String("error", err.Error()))
	}
}

// SetDocumentID returns the JSON object data with its "id" field set to id.
// Other fields are kept.
func SetDocumentID(data []byte, id string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: sheet is not a JSON object: %v", apperr.ErrValidation, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: sheet is null", apperr.ErrValidation)
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	doc["id"] = raw
	return json.MarshalIndent(doc, "", "  ")
}

func (s *Store) persist(reg models.Registry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := s.fs.WriteFile(FileName, data); err != nil {
		return fmt.Errorf("registry: write: %w", err)
	}
	return nil
}

func initialContent(c models.Category, item models.RegistryItem) ([]byte, error) {
	var doc any
	switch c {
	case models.Chapters:
		return []byte{}, nil
	case models.Characters:
		doc = models.Character{ID: item.ID, Name: item.Title}
	case models.Lore:
		doc = models.LoreEntry{ID: item.ID, Title: item.Title}
	default:
		return nil, fmt.Errorf("%w: unknown category %q", apperr.ErrValidation, c)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("registry: encode initial content: %w", err)
	}
	return data, nil
}
