package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/autosave"
	"github.com/starford/lorekeeper/internal/models"
)

// EditorState describes the open editor.
type EditorState struct {
	Target  autosave.Target `json:"target"`
	Content string          `json:"content"`
	Status  autosave.Status `json:"status"`
}

func viewCategory(view string) (models.Category, bool) {
	switch view {
	case models.ViewChapters:
		return models.Chapters, true
	case models.ViewCharacters:
		return models.Characters, true
	case models.ViewLore:
		return models.Lore, true
	}
	return "", false
}

func categoryView(c models.Category) string {
	switch c {
	case models.Characters:
		return models.ViewCharacters
	case models.Lore:
		return models.ViewLore
	}
	return models.ViewChapters
}

func isPlainView(view string) bool {
	return view == models.ViewSettings || view == models.ViewStatistics
}

// Select switches the view and, for content views, the open item. An empty
// id closes the editor. The previous editor is flushed to its own file
// before the new one opens.
func (s *Session) Select(view, id string) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Selection{}, errClosed
	}
	if err := s.selectLocked(view, id, true); err != nil {
		return Selection{}, err
	}
	return s.sel, nil
}

// selectLocked must be called with mu held.
func (s *Session) selectLocked(view, id string, record bool) error {
	c, content := viewCategory(view)
	if !content && !isPlainView(view) {
		return fmt.Errorf("%w: unknown view %q", apperr.ErrValidation, view)
	}
	if !content && id != "" {
		return fmt.Errorf("%w: view %q has no items", apperr.ErrValidation, view)
	}
	if id != "" {
		if _, ok := s.registry.Get(c, id); !ok {
			return fmt.Errorf("session: %s/%s: %w", c, id, apperr.ErrNotFound)
		}
	}

	target := autosave.Target{Category: c, ID: id}
	if s.editor != nil && (id == "" || s.editor.Target() != target) {
		s.detachEditor()
	}
	if id != "" && s.editor == nil {
		text, err := s.readContent(c, id)
		if err != nil {
			return err
		}
		s.editor = s.newEditor(target, text)
	}

	s.sel = Selection{View: view, Category: c, ID: id}
	if !content {
		s.sel.Category = ""
	}
	if record {
		s.recordCursor()
	}
	return nil
}

// detachEditor closes the open editor. A failed final write is reported on
// the old target's status and logged; navigation proceeds.
func (s *Session) detachEditor() {
	ed := s.editor
	s.editor = nil
	if err := ed.Close(); err != nil {
		s.logger.Error("session: flush on navigation failed",
			slog.String("path", ed.Target().Path()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Session) recordCursor() {
	view := s.sel.View
	patch := models.SettingsPatch{LastViewMode: &view}
	if s.sel.ID != "" {
		id := s.sel.ID
		if s.sel.Category == models.Chapters {
			patch.LastChapterID = &id
		} else {
			patch.LastComponentID = &id
		}
	}
	s.settings.UpdateCursor(patch)
}

func (s *Session) newEditor(target autosave.Target, content string) *autosave.Controller {
	hooks := autosave.Hooks{
		OnSaved:  s.onSaved,
		OnStatus: s.onStatus,
	}
	if target.Category == models.Chapters {
		hooks.OnWords = s.onWords
	}
	return autosave.New(target, content, s.fs, autosave.Config{
		Delay:  s.editDelay,
		Hooks:  hooks,
		Logger: s.logger,
		Clock:  s.now,
	})
}

// Hooks run on the autosave goroutine and must not take mu.

func (s *Session) onSaved(t autosave.Target, at time.Time) {
	if t.Category != models.Chapters {
		return
	}
	if err := s.registry.UpdateItemModified(t.Category, t.ID, at.UnixMilli()); err != nil {
		s.logger.Warn("session: update lastModified failed",
			slog.String("id", t.ID), slog.String("error", err.Error()))
		return
	}
	s.emit(EventRegistryUpdated, map[string]any{"category": t.Category, "modified": t.ID})
}

func (s *Session) onWords(_ autosave.Target, delta int) {
	if err := s.stats.RecordWords(delta); err != nil {
		s.logger.Warn("session: record words failed", slog.Int("delta", delta), slog.String("error", err.Error()))
		return
	}
	s.emit(EventStatsUpdated, s.stats.Summary())
}

func (s *Session) onStatus(t autosave.Target, st autosave.Status) {
	s.emit(EventEditorStatus, map[string]any{"category": t.Category, "id": t.ID, "status": st})
}

// Edit records new content for the open item. Characters and lore entries
// must stay valid JSON documents.
func (s *Session) Edit(c models.Category, id, content string) (EditorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editor == nil || s.editor.Target() != (autosave.Target{Category: c, ID: id}) {
		return EditorState{}, fmt.Errorf("session: %s/%s is not open: %w", c, id, apperr.ErrNoSelection)
	}
	if c != models.Chapters {
		sheetID, err := models.DecodeSheet(c, []byte(content))
		if err != nil {
			return EditorState{}, fmt.Errorf("%w: %s content: %v", apperr.ErrValidation, c, err)
		}
		if sheetID != "" && sheetID != id {
			return EditorState{}, fmt.Errorf("%w: sheet id %q does not match %s", apperr.ErrValidation, sheetID, id)
		}
	}
	s.editor.Change(content)
	return s.editorState(), nil
}

// Content returns the latest content of an item: the live editor value when
// it is open, the file otherwise.
func (s *Session) Content(c models.Category, id string) (string, error) {
	if _, ok := s.registry.Get(c, id); !ok {
		return "", fmt.Errorf("session: %s/%s: %w", c, id, apperr.ErrNotFound)
	}
	s.mu.Lock()
	ed := s.editor
	s.mu.Unlock()
	if ed != nil && ed.Target() == (autosave.Target{Category: c, ID: id}) {
		return ed.Content(), nil
	}
	return s.readContent(c, id)
}

// FlushEditor writes pending edits now.
func (s *Session) FlushEditor() error {
	s.mu.Lock()
	ed := s.editor
	s.mu.Unlock()
	if ed == nil {
		return nil
	}
	return ed.Flush()
}

// Editor returns the state of the open editor.
func (s *Session) Editor() (EditorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return EditorState{}, false
	}
	return s.editorState(), true
}

func (s *Session) editorState() EditorState {
	return EditorState{
		Target:  s.editor.Target(),
		Content: s.editor.Content(),
		Status:  s.editor.Status(),
	}
}
