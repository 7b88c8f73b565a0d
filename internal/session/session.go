// Package session is the single owner of an open project's in-memory state.
// Every mutation made by the UI goes through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/starford/lorekeeper/internal/ai"
	"github.com/starford/lorekeeper/internal/ainotes"
	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/autosave"
	"github.com/starford/lorekeeper/internal/index"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/registry"
	"github.com/starford/lorekeeper/internal/settings"
	"github.com/starford/lorekeeper/internal/stats"
	"github.com/starford/lorekeeper/internal/storage"
)

// Event types emitted through the Publisher.
const (
	EventRegistryUpdated = "registry.updated"
	EventEditorStatus    = "editor.status"
	EventStatsUpdated    = "stats.updated"
	EventSettingsUpdated = "settings.updated"
	EventAINotesUpdated  = "ainotes.updated"
)

// Publisher receives change notifications. The SSE broker implements it.
type Publisher interface {
	Emit(eventType string, data any)
}

// Searcher is the part of the search index a session uses.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
	MentionedIn(name string) ([]string, error)
}

// Generator is the AI provider.
type Generator interface {
	Generate(ctx context.Context, r ai.Request) (string, error)
	Ping(ctx context.Context, apiKey string) error
}

// Deps wires a Session. FS is required; everything else has a default or
// may be nil.
type Deps struct {
	FS            storage.Provider
	Logger        *slog.Logger
	AI            Generator
	Index         Searcher
	Publisher     Publisher
	Clock         func() time.Time
	AutosaveDelay time.Duration
	CursorDelay   time.Duration
}

// Selection is what the UI currently shows.
type Selection struct {
	View     string          `json:"view"`
	Category models.Category `json:"category,omitempty"`
	ID       string          `json:"id,omitempty"`
}

// Session composes the stores of one project.
type Session struct {
	fs        storage.Provider
	logger    *slog.Logger
	ai        Generator
	search    Searcher
	pub       Publisher
	now       func() time.Time
	editDelay time.Duration

	registry *registry.Store
	settings *settings.Store
	stats    *stats.Store
	notes    *ainotes.Store

	// mu serializes selection changes and registry mutations.
	mu     sync.Mutex
	sel    Selection
	editor *autosave.Controller
	closed bool
}

// OpenDir initializes the project directory at root and opens it.
func OpenDir(ctx context.Context, root string, deps Deps) (*Session, error) {
	if err := storage.InitProject(root); err != nil {
		return nil, err
	}
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	deps.FS = fs
	return Open(ctx, deps)
}

// Open loads every store eagerly and restores the last cursor.
func Open(ctx context.Context, deps Deps) (*Session, error) {
	if deps.FS == nil {
		return nil, errors.New("session: nil storage provider")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.AutosaveDelay <= 0 {
		deps.AutosaveDelay = autosave.DefaultDelay
	}
	if deps.CursorDelay <= 0 {
		deps.CursorDelay = settings.DefaultCursorDelay
	}

	s := &Session{
		fs:        deps.FS,
		logger:    deps.Logger,
		ai:        deps.AI,
		search:    deps.Index,
		pub:       deps.Publisher,
		now:       deps.Clock,
		editDelay: deps.AutosaveDelay,
		registry:  registry.New(deps.FS, deps.Logger, registry.WithClock(deps.Clock)),
		settings:  settings.New(deps.FS, deps.Logger, deps.CursorDelay),
		stats:     stats.New(deps.FS, deps.Logger, stats.WithClock(deps.Clock)),
		notes:     ainotes.New(deps.FS, deps.Logger),
		sel:       Selection{View: models.ViewChapters},
	}

	if _, err := s.registry.Load(); err != nil {
		return nil, err
	}
	if _, err := s.settings.Load(); err != nil {
		return nil, err
	}
	if _, err := s.stats.Load(); err != nil {
		return nil, err
	}
	if _, err := s.notes.Load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.restoreCursor()
	s.logger.Info("session: project opened",
		slog.Int("items", s.registry.Snapshot().Len()),
		slog.String("view", s.sel.View),
	)
	return s, nil
}

func (s *Session) restoreCursor() {
	st := s.settings.Get()
	view := st.LastViewMode
	if _, ok := viewCategory(view); !ok && !isPlainView(view) {
		view = models.ViewChapters
	}

	var id string
	if c, ok := viewCategory(view); ok {
		ptr := st.LastComponentID
		if c == models.Chapters {
			ptr = st.LastChapterID
		}
		if ptr != nil {
			if _, found := s.registry.Get(c, *ptr); found {
				id = *ptr
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectLocked(view, id, false); err != nil {
		s.logger.Warn("session: restore cursor failed", slog.String("error", err.Error()))
		s.sel = Selection{View: view}
	}
}

// Registry returns a copy of the registry.
func (s *Session) Registry() models.Registry { return s.registry.Snapshot() }

// Selection returns the current selection.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Settings returns the current settings.
func (s *Session) Settings() models.ProjectSettings { return s.settings.Get() }

// AIAvailable reports whether AI features may be offered.
func (s *Session) AIAvailable() bool { return s.ai != nil && s.settings.AIAvailable() }

// Stats returns the raw statistics.
func (s *Session) Stats() models.ProjectStats { return s.stats.Get() }

// StatsSummary returns the statistics read model.
func (s *Session) StatsSummary() stats.Summary { return s.stats.Summary() }

// CreateItem adds an item and selects it.
func (s *Session) CreateItem(c models.Category, title string) (models.RegistryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.RegistryItem{}, errClosed
	}

	item, err := s.registry.CreateItem(title, c)
	if err != nil {
		return models.RegistryItem{}, err
	}
	s.emit(EventRegistryUpdated, map[string]any{"category": c, "created": item.ID})

	if err := s.selectLocked(categoryView(c), item.ID, true); err != nil {
		return item, err
	}
	return item, nil
}

// RenameItem retitles an item. Chapters carry their cached analysis over to
// the new id and an open editor follows the file.
func (s *Session) RenameItem(c models.Category, id, title string) (models.RegistryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.RegistryItem{}, errClosed
	}

	editing := s.editor != nil && s.editor.Target() == autosave.Target{Category: c, ID: id}
	if editing {
		if err := s.editor.Flush(); err != nil {
			return models.RegistryItem{}, fmt.Errorf("session: flush before rename: %w", err)
		}
	}

	r, err := s.registry.RenameItem(id, title, c)
	if err != nil {
		return models.RegistryItem{}, err
	}
	if !r.Changed {
		if r.New.ID == "" {
			return models.RegistryItem{}, fmt.Errorf("session: %s/%s: %w", c, id, apperr.ErrNotFound)
		}
		return r.New, nil
	}

	if c == models.Chapters {
		if err := s.notes.Rename(r.Old.ID, r.New.ID); err != nil {
			s.logger.Error("session: migrate ai notes failed",
				slog.String("from", r.Old.ID), slog.String("to", r.New.ID), slog.String("error", err.Error()))
		}
	}

	if editing {
		content := s.editor.Content()
		// The editor is reopened on the moved file, which for sheets
		// carries the new id.
		if err := s.editor.Close(); err != nil {
			s.logger.Warn("session: close renamed editor", slog.String("error", err.Error()))
		}
		if disk, err := s.readContent(c, r.New.ID); err == nil {
			content = disk
		} else {
			s.logger.Warn("session: reload renamed item", slog.String("error", err.Error()))
		}
		s.editor = s.newEditor(autosave.Target{Category: c, ID: r.New.ID}, content)
	}
	if s.sel.Category == c && s.sel.ID == r.Old.ID {
		s.sel.ID = r.New.ID
		s.recordCursor()
	}

	s.emit(EventRegistryUpdated, map[string]any{"category": c, "renamed": map[string]string{"from": r.Old.ID, "to": r.New.ID}})
	return r.New, nil
}

// ReorderItem moves an item within its category.
func (s *Session) ReorderItem(c models.Category, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := s.registry.ReorderItem(from, to, c); err != nil {
		return err
	}
	s.emit(EventRegistryUpdated, map[string]any{"category": c})
	return nil
}

// SetDailyGoal changes the daily word goal.
func (s *Session) SetDailyGoal(n int) (stats.Summary, error) {
	if err := s.stats.SetGoal(n); err != nil {
		return stats.Summary{}, err
	}
	sum := s.stats.Summary()
	s.emit(EventStatsUpdated, sum)
	return sum, nil
}

// UpdateSettings merges patch. Patches touching only the UI cursor are
// written on the cursor debounce.
func (s *Session) UpdateSettings(patch models.SettingsPatch) (models.ProjectSettings, error) {
	var (
		next models.ProjectSettings
		err  error
	)
	if patch.CursorOnly() {
		next = s.settings.UpdateCursor(patch)
	} else {
		next, err = s.settings.Update(patch)
		if err != nil {
			return next, err
		}
	}
	s.emit(EventSettingsUpdated, next)
	return next, nil
}

// TestConnection checks the configured API key against the provider.
func (s *Session) TestConnection(ctx context.Context) error {
	st := s.settings.Get()
	if s.ai == nil || !st.AIAvailable() {
		return ai.ErrUnavailable
	}
	return s.ai.Ping(ctx, st.MistralAPIKey)
}

// Search looks up content through the index. Without an index it matches
// registry titles only.
func (s *Session) Search(query string, limit int) ([]index.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if s.search != nil {
		return s.search.Search(query, limit)
	}

	needle := strings.ToLower(query)
	reg := s.registry.Snapshot()
	var out []index.SearchResult
	for _, c := range models.Categories {
		for _, it := range reg.Items(c) {
			if strings.Contains(strings.ToLower(it.Title), needle) {
				out = append(out, index.SearchResult{Path: c.Path(it.ID), Category: c, ItemID: it.ID, Title: it.Title})
				if len(out) == limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

// Appearances lists the chapters that mention an item by title with
// [[Title]], in manuscript order.
func (s *Session) Appearances(c models.Category, id string) ([]models.RegistryItem, error) {
	item, ok := s.registry.Get(c, id)
	if !ok {
		return nil, fmt.Errorf("session: %s/%s: %w", c, id, apperr.ErrNotFound)
	}
	if s.search == nil {
		return []models.RegistryItem{}, nil
	}
	paths, err := s.search.MentionedIn(item.Title)
	if err != nil {
		return nil, err
	}
	mentioned := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if pc, pid, ok := models.ParsePath(p); ok && pc == models.Chapters {
			mentioned[pid] = struct{}{}
		}
	}
	out := []models.RegistryItem{}
	for _, ch := range s.registry.Snapshot().Chapters {
		if _, ok := mentioned[ch.ID]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Close flushes the editor and pending settings. The session is unusable
// afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.editor != nil {
		errs = append(errs, s.editor.Close())
		s.editor = nil
	}
	errs = append(errs, s.settings.Close())
	return errors.Join(errs...)
}

var errClosed = errors.New("session: closed")

func (s *Session) emit(eventType string, data any) {
	if s.pub != nil {
		s.pub.Emit(eventType, data)
	}
}

// readContent returns the on-disk content of an item; missing files read
// as empty.
func (s *Session) readContent(c models.Category, id string) (string, error) {
	data, err := s.fs.ReadFile(c.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
