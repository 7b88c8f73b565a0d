package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempProject(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempProject(t)
	content := []byte("Il était une fois.\n")
	if err := s.WriteFile("chapters/one.md", content); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile("chapters/one.md")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempProject(t)
	_, err := s.ReadFile("lorekeeper.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestRenameFile(t *testing.T) {
	s := tempProject(t)
	_ = s.WriteFile("lore/old.json", []byte("{}"))
	if err := s.RenameFile("lore/old.json", "lore/new.json"); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	got, err := s.ReadFile("lore/new.json")
	if err != nil {
		t.Fatalf("ReadFile after rename: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.ReadFile("lore/old.json"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestRenameRefusesOverwrite(t *testing.T) {
	s := tempProject(t)
	_ = s.WriteFile("lore/a.json", []byte("a"))
	_ = s.WriteFile("lore/b.json", []byte("b"))
	if err := s.RenameFile("lore/a.json", "lore/b.json"); err == nil {
		t.Fatal("expected error when target exists")
	}
	got, _ := s.ReadFile("lore/b.json")
	if string(got) != "b" {
		t.Errorf("target clobbered: %q", got)
	}
}

func TestListFilesSortedAndFlat(t *testing.T) {
	s := tempProject(t)
	_ = s.WriteFile("chapters/b.md", []byte("b"))
	_ = s.WriteFile("chapters/a.md", []byte("a"))
	_ = s.WriteFile("chapters/sub/c.md", []byte("c"))

	names, err := s.ListFiles("chapters")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(names) != 2 || names[0] != "a.md" || names[1] != "b.md" {
		t.Errorf("names = %v", names)
	}
}

func TestListMissingDir(t *testing.T) {
	s := tempProject(t)
	if _, err := s.ListFiles("characters"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempProject(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.ReadFile(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.WriteFile(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempProject(t)
	_ = s.WriteFile("stats.json", []byte("original"))
	if err := s.WriteFile("stats.json", []byte("updated")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, _ := s.ReadFile("stats.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".lorekeeper-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestInitProjectCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	if err := InitProject(dir); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	for _, d := range []string{"chapters", "characters", "lore"} {
		info, err := os.Stat(filepath.Join(dir, d))
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
	// Idempotent.
	if err := InitProject(dir); err != nil {
		t.Fatalf("second InitProject: %v", err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "lorekeeper-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
