package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"unitwatch/internal/unit"
)

var ErrNoPath = errors.New("snapshot path is empty")

// Snapshot is the persisted form of the state store.
type Snapshot map[string]unit.Status

// File reads and writes one snapshot file.
type File struct {
	path string
}

// OpenFile prepares path for use: the parent directory is created and a probe
// file is written and removed, so an unusable location fails at startup rather
// than on the first tick.
func OpenFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrNoPath
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, "."+filepath.Base(path)+".probe-*")
	if err != nil {
		return nil, fmt.Errorf("snapshot directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("snapshot path %s is a directory", path)
	}
	return &File{path: path}, nil
}

func (f *File) Path() string { return f.path }

// Load reads the snapshot. A missing file yields an empty snapshot and
// os.ErrNotExist; a corrupt file yields an empty snapshot and the decode error.
// Callers treat both as "start from empty".
func (f *File) Load() (Snapshot, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	// The map key is authoritative for the unit name.
	for name, st := range snap {
		if st.Name != name {
			st.Name = name
			snap[name] = st
		}
	}
	return snap, nil
}

// Save writes snap atomically.
func (f *File) Save(snap Snapshot) error {
	if snap == nil {
		snap = Snapshot{}
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replace snapshot %s: %w", f.path, err)
	}
	return nil
}
