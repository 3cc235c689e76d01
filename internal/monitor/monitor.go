// Package monitor runs one poll, diff, filter and dispatch iteration.
package monitor

import (
	"context"
	"fmt"

	"unitwatch/internal/filter"
	"unitwatch/internal/observability/metrics"
	"unitwatch/internal/unit"
	logx "unitwatch/pkg/logx"
)

// Source returns the current list of units.
type Source interface {
	ListUnits(ctx context.Context) ([]unit.Record, error)
}

// Store diffs a snapshot against the last known state.
type Store interface {
	Apply(statuses []unit.Status) ([]unit.Change, error)
	Len() int
}

// Dispatcher launches alerts without waiting for delivery.
type Dispatcher interface {
	Notify(statuses []unit.Status)
	Escalate(cause error)
}

type Monitor struct {
	Source     Source
	Store      Store
	Filter     filter.Filter
	Dispatcher Dispatcher
	Log        logx.Logger
	Metrics    metrics.Recorder
}

// Tick polls once. A failing poll is returned and leaves the store untouched;
// a failing snapshot write is logged and escalated but does not fail the tick.
func (m *Monitor) Tick(ctx context.Context) error {
	log := m.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	rec := metrics.OrNop(m.Metrics)

	records, err := m.Source.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("could not list units: %w", err)
	}

	changes, err := m.Store.Apply(unit.FromRecords(records))
	if err != nil {
		rec.IncPersistError()
		log.Error("state snapshot write failed", logx.Err(err))
		m.Dispatcher.Escalate(err)
	}
	rec.SetKnownUnits(m.Store.Len())

	var selected []unit.Status
	for _, c := range changes {
		if !m.Filter.Select(c) {
			continue
		}
		fields := []logx.Field{
			logx.String("unit", c.New.Name),
			logx.String("load", string(c.New.LoadState)),
			logx.String("active", string(c.New.ActiveState)),
			logx.String("sub", c.New.SubState),
		}
		if c.Old != nil {
			fields = append(fields, logx.String("old_active", string(c.Old.ActiveState)))
		}
		log.Info(c.New.Name+" has changed states", fields...)
		selected = append(selected, c.New)
	}
	rec.AddChanges(len(changes), len(selected))
	if len(changes) > 0 {
		log.Debug("unit changes detected", logx.Int("changes", len(changes)), logx.Int("selected", len(selected)))
	}

	m.Dispatcher.Notify(selected)
	return nil
}
