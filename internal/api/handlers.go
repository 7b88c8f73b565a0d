package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lorekeeper/internal/apperr"
	"github.com/starford/lorekeeper/internal/index"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// category extracts and validates the {category} URL parameter.
func category(w http.ResponseWriter, r *http.Request) (models.Category, bool) {
	c, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return c, true
}

// decodeValid decodes the body into v and runs its validation rules.
func decodeValid(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	if !decodeBody(w, r, v) {
		return false
	}
	if err := v.Validate(); err != nil {
		writeError(w, "validate", fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return false
	}
	return true
}

// GetProject handles GET /api/project.
//
//	@Summary		Get the open project state
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	ProjectResponse
//	@Security		BearerAuth
//	@Router			/project [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	resp := ProjectResponse{
		Registry:    h.sess.Registry(),
		Selection:   h.sess.Selection(),
		Settings:    h.sess.Settings(),
		Stats:       h.sess.StatsSummary(),
		AIAvailable: h.sess.AIAvailable(),
	}
	if ed, ok := h.sess.Editor(); ok {
		resp.Editor = &ed
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateItem handles POST /api/items/{category}.
//
//	@Summary		Create an item and open it
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string				true	"Category"	Enums(chapters, characters, lore)
//	@Param			body		body		CreateItemRequest	true	"Item title"
//	@Success		201			{object}	models.RegistryItem
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category} [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	var req CreateItemRequest
	if !decodeValid(w, r, &req) {
		return
	}
	item, err := h.sess.CreateItem(c, req.Title)
	if err != nil {
		writeError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// RenameItem handles PATCH /api/items/{category}/{id}.
//
//	@Summary		Retitle an item
//	@Description	The id follows the new title; cached analyses move with chapters.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string				true	"Category"	Enums(chapters, characters, lore)
//	@Param			id			path		string				true	"Item id"
//	@Param			body		body		RenameItemRequest	true	"New title"
//	@Success		200			{object}	models.RegistryItem
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category}/{id} [patch]
func (h *Handler) RenameItem(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	var req RenameItemRequest
	if !decodeValid(w, r, &req) {
		return
	}
	item, err := h.sess.RenameItem(c, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeError(w, "rename item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ReorderItem handles POST /api/items/{category}/reorder.
//
//	@Summary		Move an item within its category
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string			true	"Category"	Enums(chapters, characters, lore)
//	@Param			body		body		ReorderRequest	true	"Positions"
//	@Success		200			{object}	models.Registry
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category}/reorder [post]
func (h *Handler) ReorderItem(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.sess.ReorderItem(c, req.From, req.To); err != nil {
		writeError(w, "reorder item", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.Registry())
}

// GetContent handles GET /api/items/{category}/{id}/content.
//
//	@Summary		Read the latest content of an item
//	@Tags			items
//	@Produce		json
//	@Param			category	path		string	true	"Category"	Enums(chapters, characters, lore)
//	@Param			id			path		string	true	"Item id"
//	@Success		200			{object}	ContentResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category}/{id}/content [get]
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	text, err := h.sess.Content(c, id)
	if err != nil {
		writeError(w, "read content", err)
		return
	}
	writeJSON(w, http.StatusOK, ContentResponse{Category: c, ID: id, Content: text})
}

// PutContent handles PUT /api/items/{category}/{id}/content.
//
//	@Summary		Record an edit of the open item
//	@Description	The value is written after the autosave delay; only the open item accepts edits.
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			category	path		string			true	"Category"	Enums(chapters, characters, lore)
//	@Param			id			path		string			true	"Item id"
//	@Param			body		body		ContentRequest	true	"Editor value"
//	@Success		202			{object}	session.EditorState
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category}/{id}/content [put]
func (h *Handler) PutContent(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	var req ContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.sess.Edit(c, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, "edit content", err)
		return
	}
	writeJSON(w, http.StatusAccepted, state)
}

// Appearances handles GET /api/items/{category}/{id}/appearances.
//
//	@Summary		List the chapters mentioning an item
//	@Tags			items
//	@Produce		json
//	@Param			category	path		string	true	"Category"	Enums(chapters, characters, lore)
//	@Param			id			path		string	true	"Item id"
//	@Success		200			{object}	AppearancesResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{category}/{id}/appearances [get]
func (h *Handler) Appearances(w http.ResponseWriter, r *http.Request) {
	c, ok := category(w, r)
	if !ok {
		return
	}
	chapters, err := h.sess.Appearances(c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "appearances", err)
		return
	}
	writeJSON(w, http.StatusOK, AppearancesResponse{Chapters: chapters})
}

// Select handles POST /api/select.
//
//	@Summary		Change the view and open item
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectRequest	true	"Selection"
//	@Success		200		{object}	session.Selection
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/select [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeValid(w, r, &req) {
		return
	}
	sel, err := h.sess.Select(req.View, req.ID)
	if err != nil {
		writeError(w, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// GetEditor handles GET /api/editor.
//
//	@Summary		Get the open editor
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	session.EditorState
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor [get]
func (h *Handler) GetEditor(w http.ResponseWriter, r *http.Request) {
	state, ok := h.sess.Editor()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no open editor"))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// FlushEditor handles POST /api/editor/flush.
//
//	@Summary		Write pending edits now
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/editor/flush [post]
func (h *Handler) FlushEditor(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.FlushEditor(); err != nil {
		writeError(w, "flush editor", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetStats handles GET /api/stats.
//
//	@Summary		Get writing statistics
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	stats.Summary
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.StatsSummary())
}

// SetGoal handles PUT /api/stats/goal.
//
//	@Summary		Set the daily word goal
//	@Tags			stats
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GoalRequest	true	"Goal"
//	@Success		200		{object}	stats.Summary
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats/goal [put]
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !decodeValid(w, r, &req) {
		return
	}
	sum, err := h.sess.SetDailyGoal(req.DailyGoal)
	if err != nil {
		writeError(w, "set goal", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get project settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.ProjectSettings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Settings())
}

// PatchSettings handles PATCH /api/settings.
//
//	@Summary		Update project settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.SettingsPatch	true	"Fields to change"
//	@Success		200		{object}	models.ProjectSettings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	next, err := h.sess.UpdateSettings(patch)
	if err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// Search handles GET /api/search.
//
//	@Summary		Search project content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.sess.Search(q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		writeJSON(w, http.StatusOK, SearchResponse{Results: []index.SearchResult{}})
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
