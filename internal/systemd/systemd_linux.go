//go:build linux

package systemd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"

	"unitwatch/internal/unit"
)

// Source lists every unit the systemd manager currently knows about.
type Source struct {
	mu   sync.RWMutex
	conn *dbus.Conn
}

// Connect opens a connection to the system bus.
func Connect(ctx context.Context) (*Source, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not connect to system bus at %s: %w", BusAddress(), err)
	}
	return &Source{conn: conn}, nil
}

func (s *Source) ListUnits(ctx context.Context) ([]unit.Record, error) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return nil, errors.New("systemd connection is closed")
	}
	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not make method call to ListUnits: %w", err)
	}
	return toRecords(units), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

func toRecords(units []dbus.UnitStatus) []unit.Record {
	out := make([]unit.Record, 0, len(units))
	for _, u := range units {
		out = append(out, unit.Record{
			Name:        u.Name,
			Description: u.Description,
			LoadState:   u.LoadState,
			ActiveState: u.ActiveState,
			SubState:    u.SubState,
			Following:   u.Followed,
		})
	}
	return out
}
