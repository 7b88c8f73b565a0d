package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/lorekeeper/internal/storage"
)

// watcherTestEnv sets up a project dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	if err := storage.InitProject(root); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSync_IndexesAndPrunes(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := testLogger()

	_ = os.WriteFile(filepath.Join(root, "chapters", "1_a.md"), []byte("# A\nElara meets [[Valdor]]."), 0o644)
	_ = os.WriteFile(filepath.Join(root, "characters", "2_elara.json"), []byte(`{"id":"2_elara","name":"Elara","role":"heroine"}`), 0o644)
	_ = os.WriteFile(filepath.Join(root, "lore", "notes.txt"), []byte("ignored"), 0o644)
	_ = db.UpsertDocument(chapter("0_gone", "Gone", "x"), "stale", nil)

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	sums, _ := db.AllChecksums()
	if len(sums) != 2 {
		t.Fatalf("indexed = %v, want chapter and character", sums)
	}
	if _, ok := sums["chapters/0_gone.md"]; ok {
		t.Error("stale entry not pruned")
	}
	results, _ := db.Search("heroine", 10)
	if len(results) != 1 || results[0].Title != "Elara" {
		t.Errorf("character not searchable: %+v", results)
	}
	if got, _ := db.MentionedIn("valdor"); len(got) != 1 {
		t.Errorf("mention not recorded: %v", got)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, root, testLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	if err := store.WriteFile("chapters/1_new.md", []byte("# New")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("chapters/1_new.md")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:chapters/1_new.md" {
				return true
			}
		}
		return false
	}, "expected created:chapters/1_new.md callback")
}

func TestWatcher_IgnoresForeignFiles(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "chapters", "draft.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "lore", "map.md"), []byte("x"), 0o644)
	_ = store.WriteFile("lore/1_city.json", []byte(`{"id":"1_city","title":"City"}`))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("lore/1_city.json")
		return cs != ""
	}, "lore entry not indexed")

	sums, _ := db.AllChecksums()
	if len(sums) != 1 {
		t.Errorf("foreign files indexed: %v", sums)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := testLogger()

	_ = os.WriteFile(filepath.Join(root, "chapters", "1_del.md"), []byte("# Delete Me"), 0o644)
	Sync(db, store, logger)

	cs, _ := db.GetChecksum("chapters/1_del.md")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "chapters", "1_del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("chapters/1_del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	logger := testLogger()

	_ = os.WriteFile(filepath.Join(root, "chapters", "1_old.md"), []byte("# Rename"), 0o644)
	Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, logger, nil)
	time.Sleep(100 * time.Millisecond)

	if err := store.RenameFile("chapters/1_old.md", "chapters/2_renamed.md"); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("chapters/1_old.md")
		newCS, _ := db.GetChecksum("chapters/2_renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
