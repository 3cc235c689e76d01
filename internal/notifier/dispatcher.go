package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"unitwatch/internal/observability/metrics"
	rtsup "unitwatch/internal/runtime/supervisor"
	"unitwatch/internal/unit"
	logx "unitwatch/pkg/logx"
)

const DefaultTimeout = 15 * time.Second

// Dispatcher launches notifier calls without waiting for them.
//
// The notifier list is copied at construction and never changes, so every
// task shares it read-only.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       logx.Logger
	metrics   metrics.Recorder
	sup       *rtsup.Supervisor
	newID     func() string
}

type Option func(*Dispatcher)

func WithLogger(log logx.Logger) Option { return func(d *Dispatcher) { d.log = log } }

func WithMetrics(r metrics.Recorder) Option { return func(d *Dispatcher) { d.metrics = r } }

// WithTimeout bounds every single notifier call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func NewDispatcher(notifiers []Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		notifiers: append([]Notifier(nil), notifiers...),
		timeout:   DefaultTimeout,
		log:       logx.Nop(),
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(d)
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	d.metrics = metrics.OrNop(d.metrics)
	// Tasks outlive shutdown of the polling loop: in-flight alerts are not
	// cancelled, only bounded by their own timeout.
	d.sup = rtsup.New(context.Background(),
		rtsup.WithLogger(d.log),
		rtsup.WithPanicHook(func(name string, _ any) { d.metrics.IncPanic(name) }),
	)
	return d
}

// Names returns the configured notifier names in order.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		out = append(out, n.Name())
	}
	return out
}

func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Notify sends statuses to every notifier. A failing notifier triggers one
// escalation round. Empty input sends nothing.
func (d *Dispatcher) Notify(statuses []unit.Status) {
	if len(statuses) == 0 {
		return
	}
	batch := append([]unit.Status(nil), statuses...)
	id := d.newID()
	log := d.log.With(logx.String("batch", id))
	log.Debug("dispatching alerts", logx.Int("units", len(batch)), logx.Int("notifiers", len(d.notifiers)))

	for _, n := range d.notifiers {
		d.launch(id, n, metrics.KindNotify, func(ctx context.Context) error {
			return n.Notify(ctx, batch)
		}, true)
	}
}

// NotifyStart announces that monitoring has begun.
func (d *Dispatcher) NotifyStart() {
	id := d.newID()
	for _, n := range d.notifiers {
		d.launch(id, n, metrics.KindStart, n.NotifyStart, true)
	}
}

// Escalate sends cause as an error alert to every notifier. Failures are
// logged and never escalated further.
func (d *Dispatcher) Escalate(cause error) {
	if cause == nil {
		return
	}
	d.escalate(d.newID(), cause)
}

func (d *Dispatcher) escalate(id string, cause error) {
	for _, n := range d.notifiers {
		d.launch(id, n, metrics.KindError, func(ctx context.Context) error {
			return n.NotifyError(ctx, cause)
		}, false)
	}
}

func (d *Dispatcher) launch(id string, n Notifier, kind string, call func(ctx context.Context) error, escalate bool) {
	name := n.Name()
	d.sup.Go0(kind+"."+name, func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, d.timeout)
		defer cancel()

		start := time.Now()
		err := call(ctx)
		d.metrics.IncNotification(name, kind, err == nil)
		if err == nil {
			d.log.Debug("notification delivered",
				logx.String("batch", id), logx.String("notifier", name), logx.String("kind", kind),
				logx.Duration("took", time.Since(start)))
			return
		}

		derr := &DeliveryError{Notifier: name, Kind: kind, Err: err}
		if !escalate {
			d.log.Error("error notification failed; not escalating",
				logx.String("batch", id), logx.String("notifier", name), logx.Err(err))
			return
		}
		d.log.Error("notification failed; escalating",
			logx.String("batch", id), logx.String("notifier", name), logx.String("kind", kind), logx.Err(err))
		d.escalate(id, derr)
	})
}

// Wait blocks until every launched call has returned or ctx is done.
// Recovered panics are logged and counted, not returned.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := d.sup.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	return nil
}

// InFlight returns the number of running notifier calls.
func (d *Dispatcher) InFlight() int64 { return d.sup.Counters().Active }
