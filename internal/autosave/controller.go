// Package autosave turns a stream of in-memory edits into debounced writes of
// a single project file.
package autosave

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/parser"
)

// DefaultDelay is the quiet period after the last change before writing.
const DefaultDelay = time.Second

// Status is what an editor shows next to the content.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// Target is the file a controller writes. It is fixed for the controller's
// lifetime.
type Target struct {
	Category models.Category `json:"category"`
	ID       string          `json:"id"`
}

// Path is the project-relative file of the target.
func (t Target) Path() string { return t.Category.Path(t.ID) }

// Writer persists file content.
type Writer interface {
	WriteFile(path string, data []byte) error
}

// Hooks are invoked after state changes, outside the controller's state lock.
// Any of them may be nil.
type Hooks struct {
	// OnSaved runs after every successful write.
	OnSaved func(t Target, at time.Time)
	// OnWords receives positive word-count deltas only.
	OnWords func(t Target, delta int)
	// OnStatus runs whenever Status changes.
	OnStatus func(t Target, s Status)
}

// Config holds the optional controller settings.
type Config struct {
	Delay  time.Duration
	Hooks  Hooks
	Logger *slog.Logger
	Clock  func() time.Time
}

// Controller debounces edits of one entity. Generations order changes: each
// Change bumps gen, each write records the generation it carried, and a write
// carrying a generation at or below what already landed is dropped.
type Controller struct {
	target Target
	w      Writer
	delay  time.Duration
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	content string
	gen     uint64
	written uint64
	timer   *time.Timer
	status  Status
	closed  bool

	// writeMu serializes writes; baseline is only touched under it.
	writeMu  sync.Mutex
	baseline int
}

// New opens a controller on content that is already on disk.
func New(target Target, initial string, w Writer, cfg Config) *Controller {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Controller{
		target:   target,
		w:        w,
		delay:    cfg.Delay,
		hooks:    cfg.Hooks,
		logger:   cfg.Logger,
		now:      cfg.Clock,
		content:  initial,
		status:   StatusIdle,
		baseline: parser.CountWords(initial),
	}
}

// Target returns the entity this controller writes.
func (c *Controller) Target() Target { return c.target }

// Content returns the latest in-memory value, saved or not.
func (c *Controller) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Status returns the current save status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Dirty reports whether the latest change has not reached disk.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen > c.written
}

// Change records a new value and restarts the debounce timer. It is ignored
// once the controller is closed.
func (c *Controller) Change(content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.content = content
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, c.fire)
	changed := c.setStatus(StatusSaving)
	c.mu.Unlock()

	if changed {
		c.notify(StatusSaving)
	}
}

func (c *Controller) fire() {
	if err := c.Flush(); err != nil {
		c.logger.Warn("autosave: debounced write failed",
			slog.String("path", c.target.Path()),
			slog.String("error", err.Error()),
		)
	}
}

// Flush cancels the timer and writes the latest value now. It is a no-op when
// nothing is pending.
func (c *Controller) Flush() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.gen <= c.written {
		c.mu.Unlock()
		return nil
	}
	snapshot, gen := c.content, c.gen
	c.mu.Unlock()

	return c.write(snapshot, gen)
}

// Close flushes to the original target and detaches. Later changes are
// dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Flush()
}

func (c *Controller) write(content string, gen uint64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if gen <= c.written {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.w.WriteFile(c.target.Path(), []byte(content)); err != nil {
		c.mu.Lock()
		changed := c.setStatus(StatusError)
		c.mu.Unlock()
		if changed {
			c.notify(StatusError)
		}
		return err
	}

	words := parser.CountWords(content)
	delta := words - c.baseline
	c.baseline = words

	c.mu.Lock()
	c.written = gen
	changed := false
	if c.gen == gen {
		changed = c.setStatus(StatusSaved)
	}
	c.mu.Unlock()

	if c.hooks.OnSaved != nil {
		c.hooks.OnSaved(c.target, c.now())
	}
	if delta > 0 && c.hooks.OnWords != nil {
		c.hooks.OnWords(c.target, delta)
	}
	if changed {
		c.notify(StatusSaved)
	}
	return nil
}

// setStatus must be called with mu held.
func (c *Controller) setStatus(s Status) bool {
	if c.status == s {
		return false
	}
	c.status = s
	return true
}

func (c *Controller) notify(s Status) {
	if c.hooks.OnStatus != nil {
		c.hooks.OnStatus(c.target, s)
	}
}
