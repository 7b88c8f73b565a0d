// Package testutil provides shared test helpers for projects, gateways and databases.
package testutil

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/starford/lorekeeper/internal/index"
	"github.com/starford/lorekeeper/internal/storage"
)

// ErrInjected is returned by RecordingFS when a failure is armed.
var ErrInjected = errors.New("injected failure")

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestProject creates a temporary initialized project directory.
func TestProject(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	if err := storage.InitProject(dir); err != nil {
		t.Fatal(err)
	}
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lorekeeper-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Write is one WriteFile call seen by RecordingFS.
type Write struct {
	Path    string
	Content string
}

// RecordingFS wraps a Provider, records writes and can inject failures.
type RecordingFS struct {
	storage.Provider

	mu         sync.Mutex
	writes     []Write
	failWrite  string // path prefix; "" disables
	failRename bool
}

// NewRecordingFS wraps inner.
func NewRecordingFS(inner storage.Provider) *RecordingFS {
	return &RecordingFS{Provider: inner}
}

// FailWrites makes WriteFile fail for paths starting with prefix ("" to stop).
func (r *RecordingFS) FailWrites(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWrite = prefix
}

// FailRenames toggles RenameFile failures.
func (r *RecordingFS) FailRenames(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failRename = fail
}

// WriteFile records the call and delegates unless a failure is armed.
func (r *RecordingFS) WriteFile(path string, content []byte) error {
	r.mu.Lock()
	fail := r.failWrite != "" && strings.HasPrefix(path, r.failWrite)
	if !fail {
		r.writes = append(r.writes, Write{Path: path, Content: string(content)})
	}
	r.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return r.Provider.WriteFile(path, content)
}

// RenameFile delegates unless a failure is armed.
func (r *RecordingFS) RenameFile(oldPath, newPath string) error {
	r.mu.Lock()
	fail := r.failRename
	r.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return r.Provider.RenameFile(oldPath, newPath)
}

// Writes returns the recorded writes whose path starts with prefix.
func (r *RecordingFS) Writes(prefix string) []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Write
	for _, w := range r.writes {
		if strings.HasPrefix(w.Path, prefix) {
			out = append(out, w)
		}
	}
	return out
}

// Reset forgets recorded writes.
func (r *RecordingFS) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}
