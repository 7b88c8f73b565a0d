package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lorekeeper/internal/index"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/session"
	"github.com/starford/lorekeeper/internal/stats"
)

// ProjectResponse is the full state the UI needs after opening a project.
type ProjectResponse struct {
	Registry    models.Registry        `json:"registry" validate:"required"`
	Selection   session.Selection      `json:"selection" validate:"required"`
	Settings    models.ProjectSettings `json:"settings" validate:"required"`
	Stats       stats.Summary          `json:"stats" validate:"required"`
	AIAvailable bool                   `json:"aiAvailable" example:"true"`
	Editor      *session.EditorState   `json:"editor,omitempty"`
}

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	Title string `json:"title" example:"Le réveil" validate:"required"`
}

// Validate implements validation.Validatable.
func (r CreateItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

// RenameItemRequest is the request body for retitling an item.
type RenameItemRequest = CreateItemRequest

// ReorderRequest moves the item at From to position To.
type ReorderRequest struct {
	From int `json:"from" example:"0"`
	To   int `json:"to" example:"2"`
}

// Validate implements validation.Validatable.
func (r ReorderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Min(0)),
		validation.Field(&r.To, validation.Min(0)),
	)
}

// ContentRequest carries the editor value of an item.
type ContentRequest struct {
	Content string `json:"content" example:"Il était une fois..."`
}

// ContentResponse is the latest content of an item.
type ContentResponse struct {
	Category models.Category `json:"category" example:"chapters" validate:"required"`
	ID       string          `json:"id" example:"1700000000000_le-reveil" validate:"required"`
	Content  string          `json:"content" validate:"required"`
}

// SelectRequest changes the current view and open item.
type SelectRequest struct {
	View string `json:"view" example:"chapters" validate:"required"`
	ID   string `json:"id,omitempty" example:"1700000000000_le-reveil"`
}

// Validate implements validation.Validatable.
func (r SelectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.View, validation.Required, validation.In(
			models.ViewChapters, models.ViewCharacters, models.ViewLore,
			models.ViewSettings, models.ViewStatistics,
		)),
	)
}

// GoalRequest sets the daily word goal.
type GoalRequest struct {
	DailyGoal int `json:"dailyGoal" example:"1000"`
}

// Validate implements validation.Validatable.
func (r GoalRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DailyGoal, validation.Min(0)),
	)
}

// SuggestResponse is the assistant's answer.
type SuggestResponse struct {
	Text string `json:"text" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// AppearancesResponse lists the chapters mentioning an item.
type AppearancesResponse struct {
	Chapters []models.RegistryItem `json:"chapters" validate:"required"`
}

// StatusResponse acknowledges an operation without a payload.
type StatusResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
}
