// Package stats tracks daily word counts and the daily goal in stats.json.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/storage"
)

// FileName is the stats document at the project root.
const FileName = "stats.json"

// WindowDays is the length of the trailing series and rolling average.
const WindowDays = 14

// Store holds ProjectStats in memory and persists every change.
type Store struct {
	mu     sync.Mutex
	fs     storage.Provider
	logger *slog.Logger
	now    func() time.Time
	stats  models.ProjectStats
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store. Call Load before use.
func New(fs storage.Provider, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{fs: fs, logger: logger, now: time.Now, stats: models.DefaultStats()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads stats.json, falling back to persisted defaults when it is
// missing or malformed.
func (s *Store) Load() (models.ProjectStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fs.ReadFile(FileName)
	if err == nil {
		var st models.ProjectStats
		if err = json.Unmarshal(data, &st); err == nil {
			s.stats = normalize(st)
			return s.stats.Clone(), nil
		}
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("stats: unreadable stats, starting fresh", slog.String("error", err.Error()))
	}

	s.stats = models.DefaultStats()
	if err := s.persist(s.stats); err != nil {
		s.logger.Error("stats: persist defaults failed", slog.String("error", err.Error()))
	}
	return s.stats.Clone(), nil
}

func normalize(st models.ProjectStats) models.ProjectStats {
	if st.DailyGoal < 1 {
		st.DailyGoal = models.DefaultDailyGoal
	}
	if st.History == nil {
		st.History = map[string]int{}
	}
	for k, v := range st.History {
		if v < 0 {
			st.History[k] = 0
		}
	}
	return st
}

// Get returns a copy of the current stats.
func (s *Store) Get() models.ProjectStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// RecordWords adds delta to today's bucket, clamped at zero. A zero delta
// changes nothing and writes nothing.
func (s *Store) RecordWords(delta int) error {
	if delta == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.now().Format(models.DateLayout)
	next := s.stats.Clone()
	next.History[today] = max(0, next.History[today]+delta)
	if err := s.persist(next); err != nil {
		return err
	}
	s.stats = next
	return nil
}

// SetGoal sets the daily goal, clamped to at least 1.
func (s *Store) SetGoal(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.stats.Clone()
	next.DailyGoal = max(1, n)
	if err := s.persist(next); err != nil {
		return err
	}
	s.stats = next
	return nil
}

// Day is one point of the trailing series.
type Day struct {
	Date  string `json:"date"`
	Words int    `json:"words"`
}

// Summary is the read model shown by the statistics view.
type Summary struct {
	Today   int   `json:"today"`
	Goal    int   `json:"goal"`
	Percent int   `json:"percent"`
	Average int   `json:"average"`
	Series  []Day `json:"series"`
}

// Summary computes today's progress, the trailing WindowDays series (oldest
// first) and its rolling average, counting idle days.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	st := s.stats.Clone()
	now := s.now()
	s.mu.Unlock()
	return Summarize(st, now)
}

// Summarize is the pure form of Store.Summary.
func Summarize(st models.ProjectStats, now time.Time) Summary {
	goal := max(1, st.DailyGoal)
	today := st.History[now.Format(models.DateLayout)]

	series := make([]Day, 0, WindowDays)
	total := 0
	for i := WindowDays - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(models.DateLayout)
		words := st.History[date]
		total += words
		series = append(series, Day{Date: date, Words: words})
	}

	return Summary{
		Today:   today,
		Goal:    goal,
		Percent: min(100, int(math.Round(float64(today)*100/float64(goal)))),
		Average: int(math.Round(float64(total) / WindowDays)),
		Series:  series,
	}
}

func (s *Store) persist(st models.ProjectStats) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	if err := s.fs.WriteFile(FileName, data); err != nil {
		return fmt.Errorf("stats: write: %w", err)
	}
	return nil
}
