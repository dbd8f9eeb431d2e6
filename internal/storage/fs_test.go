package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempInbox(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempInbox(t)
	content := []byte(`[{"title":"Go","url":"https://go.dev"}]`)
	if err := s.Write("export.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("export.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestMoveCreatesDirs(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("a.html", []byte("data"))
	if err := s.Move("a.html", "processed/a.html"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("processed/a.html")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("a.html"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestPendingFiltersAndSkipsSubdirs(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("a.json", []byte("[]"))
	_ = s.Write("B.HTML", []byte("<dl>"))
	_ = s.Write("notes.txt", []byte("skip"))
	_ = s.Write(".hidden.json", []byte("skip"))
	_ = s.Write("processed/old.json", []byte("skip"))

	items, err := s.Pending("", ".json", ".html")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" || it.Size == 0 {
			t.Errorf("entry missing metadata: %+v", it)
		}
	}

	all, _ := s.Pending("")
	if len(all) != 3 {
		t.Errorf("unfiltered len = %d, want 3", len(all))
	}
}

func TestPendingOrderedByModTime(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("later.json", []byte("[]"))
	_ = s.Write("earlier.json", []byte("[]"))
	old := time.Now().Add(-time.Hour)
	_ = os.Chtimes(filepath.Join(s.root, "earlier.json"), old, old)

	items, _ := s.Pending("", ".json")
	if len(items) != 2 || items[0].Path != "earlier.json" {
		t.Errorf("order = %+v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempInbox(t)
	for _, p := range []string{"../../etc/passwd", "../outside.json", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
	if _, err := s.Pending("../"); err == nil {
		t.Error("expected error listing outside the root")
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("failed/a.json.err", []byte("first"))
	if err := s.Write("failed/a.json.err", []byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("failed/a.json.err")
	if string(got) != "second" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, "failed", ".smartmarks-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS("/tmp/smartmarks-does-not-exist-" + t.Name()); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "smartmarks-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
