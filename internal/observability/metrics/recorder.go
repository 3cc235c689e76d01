// Package metrics defines the daemon's observability hooks and their
// Prometheus implementation.
package metrics

import "time"

// Notification kinds used as a label value.
const (
	KindNotify = "notify"
	KindStart  = "start"
	KindError  = "error"
)

// Recorder receives operational events from the monitor, the scheduler and the
// dispatcher. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveTick(d time.Duration, err error)
	IncTickOverrun()
	AddChanges(detected, selected int)
	SetKnownUnits(n int)
	IncNotification(notifier, kind string, success bool)
	IncPersistError()
	IncPanic(task string)
}

// Nop is a Recorder that does nothing (default when metrics are not configured).
type Nop struct{}

func (Nop) ObserveTick(time.Duration, error)     {}
func (Nop) IncTickOverrun()                      {}
func (Nop) AddChanges(int, int)                  {}
func (Nop) SetKnownUnits(int)                    {}
func (Nop) IncNotification(string, string, bool) {}
func (Nop) IncPersistError()                     {}
func (Nop) IncPanic(string)                      {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
