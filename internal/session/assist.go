package session

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lorekeeper/internal/ai"
	"github.com/starford/lorekeeper/internal/ainotes"
	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/autosave"
	"github.com/starford/lorekeeper/internal/models"
)

// NoteView is a chapter's cached analysis with its staleness flag. Note is
// nil when the chapter was never analyzed.
type NoteView struct {
	ChapterID string             `json:"chapterId"`
	Note      *models.AINoteData `json:"note"`
	Outdated  bool               `json:"outdated"`
}

// SuggestRequest asks the assistant for help on a chapter.
type SuggestRequest struct {
	ChapterID string         `json:"chapterId"`
	Kind      ai.SuggestKind `json:"kind"`
	// Prompt is the character for reactions, the question for questions and
	// an optional direction for continuations.
	Prompt string `json:"prompt"`
}

// Validate implements validation.Validatable.
func (r SuggestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ChapterID, validation.Required),
		validation.Field(&r.Kind, validation.Required,
			validation.In(ai.SuggestContinuation, ai.SuggestCharacterReaction, ai.SuggestQuestion)),
		validation.Field(&r.Prompt,
			validation.When(r.Kind != ai.SuggestContinuation, validation.Required)),
	)
}

// AINote returns the cached analysis of a chapter.
func (s *Session) AINote(chapterID string) (NoteView, error) {
	if _, ok := s.registry.Get(models.Chapters, chapterID); !ok {
		return NoteView{}, fmt.Errorf("session: chapter %s: %w", chapterID, apperr.ErrNotFound)
	}
	return s.noteView(chapterID), nil
}

func (s *Session) noteView(chapterID string) NoteView {
	v := NoteView{ChapterID: chapterID}
	all := s.notes.All()
	if n, ok := all[chapterID]; ok {
		v.Note = &n
		v.Outdated = ainotes.Outdated(s.registry.Snapshot().Chapters, all, chapterID)
	}
	return v
}

// Analyze asks the provider for notes on a chapter and caches them. Pending
// edits of the chapter are flushed first so the analysis matches the file.
// Failures never touch the cached analysis.
func (s *Session) Analyze(ctx context.Context, chapterID string) (NoteView, error) {
	item, ok := s.registry.Get(models.Chapters, chapterID)
	if !ok {
		return NoteView{}, fmt.Errorf("session: chapter %s: %w", chapterID, apperr.ErrNotFound)
	}
	st := s.settings.Get()
	if s.ai == nil || !st.AIAvailable() {
		return NoteView{}, ai.ErrUnavailable
	}
	if err := s.flushIfOpen(models.Chapters, chapterID); err != nil {
		return NoteView{}, err
	}
	text, err := s.Content(models.Chapters, chapterID)
	if err != nil {
		return NoteView{}, err
	}
	if strings.TrimSpace(text) == "" {
		return NoteView{}, fmt.Errorf("%w: chapter %s is empty", apperr.ErrValidation, chapterID)
	}

	history := ainotes.BuildContext(s.registry.Snapshot().Chapters, s.notes.All(), chapterID)
	req := ai.RequestFor(st, ai.AnalysisSystem(st.Language), ai.AnalysisPrompt(item.Title, history, text), ai.AnalysisTemperature)

	reply, err := s.ai.Generate(ctx, req)
	if err != nil {
		return NoteView{}, err
	}
	analysis, err := ai.ParseAnalysis(reply)
	if err != nil {
		return NoteView{}, err
	}

	data := models.AINoteData{
		Notes:     analysis.Notes,
		Review:    analysis.Review,
		UpdatedAt: s.now().UnixMilli(),
	}
	if err := s.notes.Put(chapterID, data); err != nil {
		return NoteView{}, err
	}

	view := s.noteView(chapterID)
	s.emit(EventAINotesUpdated, view)
	return view, nil
}

// Suggest asks the provider for writing help on a chapter. Nothing is
// persisted.
func (s *Session) Suggest(ctx context.Context, r SuggestRequest) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if _, ok := s.registry.Get(models.Chapters, r.ChapterID); !ok {
		return "", fmt.Errorf("session: chapter %s: %w", r.ChapterID, apperr.ErrNotFound)
	}
	st := s.settings.Get()
	if s.ai == nil || !st.AIAvailable() {
		return "", ai.ErrUnavailable
	}
	text, err := s.Content(models.Chapters, r.ChapterID)
	if err != nil {
		return "", err
	}

	history := ainotes.BuildContext(s.registry.Snapshot().Chapters, s.notes.All(), r.ChapterID)
	req := ai.RequestFor(st, ai.SuggestSystem(st.Language), ai.SuggestPrompt(r.Kind, history, text, r.Prompt), ai.SuggestTemperature)
	return s.ai.Generate(ctx, req)
}

func (s *Session) flushIfOpen(c models.Category, id string) error {
	s.mu.Lock()
	ed := s.editor
	s.mu.Unlock()
	if ed == nil || ed.Target() != (autosave.Target{Category: c, ID: id}) {
		return nil
	}
	return ed.Flush()
}
