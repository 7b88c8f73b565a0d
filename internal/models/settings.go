package models

import "strings"

// AI provider names.
const (
	ProviderMistral = "mistral"
	ProviderNone    = "none"
)

// DefaultMistralModel is used when the settings carry no model.
const DefaultMistralModel = "open-mistral-nemo"

// View modes remembered between sessions.
const (
	ViewChapters   = "chapters"
	ViewCharacters = "characters"
	ViewLore       = "lore"
	ViewSettings   = "settings"
	ViewStatistics = "statistics"
)

// ProjectSettings is the content of settings.json.
type ProjectSettings struct {
	AIProvider      string  `json:"aiProvider"`
	MistralAPIKey   string  `json:"mistralApiKey"`
	MistralModel    string  `json:"mistralModel"`
	Language        string  `json:"language"`
	LastViewMode    string  `json:"lastViewMode,omitempty"`
	LastChapterID   *string `json:"lastChapterId,omitempty"`
	LastComponentID *string `json:"lastComponentId,omitempty"`
}

// DefaultSettings returns the settings of a freshly opened project.
func DefaultSettings() ProjectSettings {
	return ProjectSettings{
		AIProvider:   ProviderMistral,
		MistralModel: DefaultMistralModel,
		Language:     "fr",
	}
}

// AIAvailable reports whether AI features may be offered.
func (s ProjectSettings) AIAvailable() bool {
	return s.AIProvider != ProviderNone && strings.TrimSpace(s.MistralAPIKey) != ""
}

// Model returns the configured model or the default one.
func (s ProjectSettings) Model() string {
	if strings.TrimSpace(s.MistralModel) == "" {
		return DefaultMistralModel
	}
	return s.MistralModel
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	AIProvider      *string `json:"aiProvider,omitempty"`
	MistralAPIKey   *string `json:"mistralApiKey,omitempty"`
	MistralModel    *string `json:"mistralModel,omitempty"`
	Language        *string `json:"language,omitempty"`
	LastViewMode    *string `json:"lastViewMode,omitempty"`
	LastChapterID   *string `json:"lastChapterId,omitempty"`
	LastComponentID *string `json:"lastComponentId,omitempty"`
}

// Apply merges p onto s and returns the result.
func (p SettingsPatch) Apply(s ProjectSettings) ProjectSettings {
	if p.AIProvider != nil {
		s.AIProvider = *p.AIProvider
	}
	if p.MistralAPIKey != nil {
		s.MistralAPIKey = *p.MistralAPIKey
	}
	if p.MistralModel != nil {
		s.MistralModel = *p.MistralModel
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.LastViewMode != nil {
		s.LastViewMode = *p.LastViewMode
	}
	if p.LastChapterID != nil {
		v := *p.LastChapterID
		s.LastChapterID = &v
	}
	if p.LastComponentID != nil {
		v := *p.LastComponentID
		s.LastComponentID = &v
	}
	return s
}

// CursorOnly reports whether the patch touches only UI-cursor fields.
func (p SettingsPatch) CursorOnly() bool {
	return p.AIProvider == nil && p.MistralAPIKey == nil && p.MistralModel == nil && p.Language == nil
}
