package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lorekeeper/internal/session"
)

// GetAINote handles GET /api/ainotes/{id}.
//
//	@Summary		Get the cached analysis of a chapter
//	@Tags			ai
//	@Produce		json
//	@Param			id	path		string	true	"Chapter id"
//	@Success		200	{object}	session.NoteView
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ainotes/{id} [get]
func (h *Handler) GetAINote(w http.ResponseWriter, r *http.Request) {
	view, err := h.sess.AINote(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get ai note", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Analyze handles POST /api/ainotes/{id}/analyze.
//
//	@Summary		Analyze a chapter
//	@Description	Extracts notes and a review from the chapter with the previous chapters' notes as context.
//	@Tags			ai
//	@Produce		json
//	@Param			id	path		string	true	"Chapter id"
//	@Success		200	{object}	session.NoteView
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ainotes/{id}/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	view, err := h.sess.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Suggest handles POST /api/suggest.
//
//	@Summary		Ask the assistant for writing help
//	@Tags			ai
//	@Accept			json
//	@Produce		json
//	@Param			body	body		session.SuggestRequest	true	"Suggestion request"
//	@Success		200		{object}	SuggestResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/suggest [post]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req session.SuggestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text, err := h.sess.Suggest(r.Context(), req)
	if err != nil {
		writeError(w, "suggest", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Text: text})
}

// TestConnection handles POST /api/settings/test-connection.
//
//	@Summary		Check the configured API key
//	@Tags			ai
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		401	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/test-connection [post]
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.TestConnection(r.Context()); err != nil {
		writeError(w, "test connection", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
