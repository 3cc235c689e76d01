// Package state keeps the last known status of every unit ever seen and
// computes the changes between consecutive polls.
package state

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"unitwatch/internal/storage"
	"unitwatch/internal/unit"
	logx "unitwatch/pkg/logx"
)

// Store maps unit name to last known status.
//
// Entries are never removed: a unit missing from a later snapshot keeps its
// last known status. Apply must be called from a single goroutine; the read
// helpers may be called concurrently with it.
type Store struct {
	mu    sync.RWMutex
	units map[string]unit.Status

	file *storage.File
	log  logx.Logger
}

type Option func(*Store)

// WithLogger sets the logger used for hydration warnings.
func WithLogger(log logx.Logger) Option { return func(s *Store) { s.log = log } }

// WithFile enables persistence: after every Apply with a non-empty snapshot,
// the full map is written to f.
func WithFile(f *storage.File) Option { return func(s *Store) { s.file = f } }

// New returns an empty store. With WithFile, the store is hydrated from the
// snapshot; a missing or unreadable snapshot leaves it empty.
func New(opts ...Option) *Store {
	s := &Store{units: map[string]unit.Status{}, log: logx.Nop()}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.file != nil {
		s.hydrate()
	}
	return s
}

// Open validates path and returns a persisting store hydrated from it.
// An unusable path is returned as an error.
func Open(path string, log logx.Logger) (*Store, error) {
	f, err := storage.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("state file unusable: %w", err)
	}
	return New(WithFile(f), WithLogger(log)), nil
}

func (s *Store) hydrate() {
	snap, err := s.file.Load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Info("no state snapshot yet; starting empty", logx.String("path", s.file.Path()))
	case err != nil:
		s.log.Warn("state snapshot unreadable; starting empty", logx.String("path", s.file.Path()), logx.Err(err))
	default:
		for name, st := range snap {
			s.units[name] = st
		}
		s.log.Info("state snapshot loaded", logx.String("path", s.file.Path()), logx.Int("units", len(snap)))
	}
}

// Apply merges a complete snapshot of current statuses and returns what
// changed, in input order.
//
// A unit seen for the first time yields a change with a nil Old; a unit whose
// status differs from the stored one yields a change with the previous status.
// Equal statuses yield nothing.
//
// When persistence is enabled and the snapshot was non-empty, the whole map is
// saved after the batch, changed or not, so a lost file is rewritten on the
// next poll. A save error is returned alongside the changes; the
// in-memory state is updated either way.
func (s *Store) Apply(statuses []unit.Status) ([]unit.Change, error) {
	var changes []unit.Change

	s.mu.Lock()
	for _, st := range statuses {
		prev, ok := s.units[st.Name]
		switch {
		case !ok:
			changes = append(changes, unit.Change{New: st})
		case prev != st:
			old := prev
			changes = append(changes, unit.Change{Old: &old, New: st})
		default:
			continue
		}
		s.units[st.Name] = st
	}
	var snap storage.Snapshot
	if s.file != nil && len(statuses) > 0 {
		snap = make(storage.Snapshot, len(s.units))
		for k, v := range s.units {
			snap[k] = v
		}
	}
	s.mu.Unlock()

	if snap != nil {
		if err := s.file.Save(snap); err != nil {
			return changes, fmt.Errorf("persist state: %w", err)
		}
	}
	return changes, nil
}

// Len returns the number of units ever seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// Get returns the stored status of name.
func (s *Store) Get(name string) (unit.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.units[name]
	return st, ok
}

// Names returns every known unit name, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.units))
	for k := range s.units {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Persistent reports whether Apply writes a snapshot.
func (s *Store) Persistent() bool { return s.file != nil }
