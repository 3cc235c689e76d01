package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"unitwatch/internal/unit"
)

func TestFileSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	snap := Snapshot{
		"a.service": {Name: "a.service", Description: "A", LoadState: unit.LoadLoaded, ActiveState: unit.ActiveFailed, SubState: "failed"},
		"b.mount":   {Name: "b.mount", LoadState: "odd", ActiveState: "odder"},
	}
	if err := f.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got["a.service"] != snap["a.service"] || got["b.mount"] != snap["b.mount"] {
		t.Fatalf("Load = %+v, want %+v", got, snap)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected files in snapshot dir: %v", names)
	}
}

func TestFileLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	snap, err := f.Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v, want ErrNotExist", err)
	}
	if snap == nil || len(snap) != 0 {
		t.Fatalf("missing file should give empty snapshot, got %+v", snap)
	}

	if err := os.WriteFile(f.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	snap, err = f.Load()
	if err == nil {
		t.Fatalf("corrupt file should report an error")
	}
	if snap == nil || len(snap) != 0 {
		t.Fatalf("corrupt file should give empty snapshot, got %+v", snap)
	}
}

func TestFileLoadUsesKeyAsName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte(`{"x.service":{"active_state":"active"}}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	snap, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap["x.service"].Name != "x.service" {
		t.Fatalf("name not filled from key: %+v", snap["x.service"])
	}
}

func TestOpenFileRejectsUnusablePath(t *testing.T) {
	if _, err := OpenFile("  "); !errors.Is(err, ErrNoPath) {
		t.Fatalf("empty path: err = %v, want ErrNoPath", err)
	}

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Parent "directory" is a regular file.
	if _, err := OpenFile(filepath.Join(blocker, "state.json")); err == nil {
		t.Fatalf("expected error when parent is a file")
	}
	// Path itself is a directory.
	if _, err := OpenFile(dir); err == nil {
		t.Fatalf("expected error when path is a directory")
	}
}
