package models

// DefaultDailyGoal is the goal of a project without stats.json.
const DefaultDailyGoal = 500

// DateLayout is the key format of ProjectStats.History.
const DateLayout = "2006-01-02"

// ProjectStats is the content of stats.json.
type ProjectStats struct {
	DailyGoal int            `json:"dailyGoal"`
	History   map[string]int `json:"history"`
}

// DefaultStats returns empty stats with the default goal.
func DefaultStats() ProjectStats {
	return ProjectStats{DailyGoal: DefaultDailyGoal, History: map[string]int{}}
}

// Clone returns a deep copy.
func (s ProjectStats) Clone() ProjectStats {
	h := make(map[string]int, len(s.History))
	for k, v := range s.History {
		h[k] = v
	}
	return ProjectStats{DailyGoal: s.DailyGoal, History: h}
}

// AINote is one thematic note extracted from a chapter.
type AINote struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AINoteData is the cached analysis of a chapter.
type AINoteData struct {
	Notes     []AINote `json:"notes"`
	Review    string   `json:"review,omitempty"`
	UpdatedAt int64    `json:"updatedAt"` // unix millis
}

// AINotesRegistry maps chapter ids to their cached analysis.
type AINotesRegistry map[string]AINoteData
