package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unitwatch"

// Prometheus implements Recorder using Prometheus metrics.
type Prometheus struct {
	reg *prom.Registry

	tickDuration  *prom.HistogramVec
	tickOverruns  prom.Counter
	changes       *prom.CounterVec
	knownUnits    prom.Gauge
	notifications *prom.CounterVec
	persistErrors prom.Counter
	panics        *prom.CounterVec
}

// NewPrometheus registers the daemon metrics on reg, or on a fresh registry
// when reg is nil. Go runtime and process collectors are registered too.
func NewPrometheus(reg *prom.Registry) *Prometheus {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	p := &Prometheus{reg: reg}
	p.tickDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one poll, diff and dispatch iteration",
		Buckets:   prom.DefBuckets,
	}, []string{"result"})
	p.tickOverruns = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tick_overruns_total",
		Help:      "Iterations that took at least the polling interval",
	})
	p.changes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "unit_changes_total",
		Help:      "Unit status changes by stage",
	}, []string{"stage"})
	p.knownUnits = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "known_units",
		Help:      "Units ever observed since start",
	})
	p.notifications = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification attempts by notifier, kind and result",
	}, []string{"notifier", "kind", "result"})
	p.persistErrors = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "state_persist_errors_total",
		Help:      "Failed writes of the state snapshot",
	})
	p.panics = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panics_total",
		Help:      "Recovered panics by task",
	}, []string{"task"})
	reg.MustRegister(
		p.tickDuration, p.tickOverruns, p.changes, p.knownUnits,
		p.notifications, p.persistErrors, p.panics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Registry() *prom.Registry { return p.reg }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *Prometheus) ObserveTick(d time.Duration, err error) {
	if p == nil {
		return
	}
	p.tickDuration.WithLabelValues(result(err == nil)).Observe(d.Seconds())
}

func (p *Prometheus) IncTickOverrun() {
	if p == nil {
		return
	}
	p.tickOverruns.Inc()
}

func (p *Prometheus) AddChanges(detected, selected int) {
	if p == nil {
		return
	}
	p.changes.WithLabelValues("detected").Add(float64(detected))
	p.changes.WithLabelValues("selected").Add(float64(selected))
}

func (p *Prometheus) SetKnownUnits(n int) {
	if p == nil {
		return
	}
	p.knownUnits.Set(float64(n))
}

func (p *Prometheus) IncNotification(notifier, kind string, success bool) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(notifier, kind, result(success)).Inc()
}

func (p *Prometheus) IncPersistError() {
	if p == nil {
		return
	}
	p.persistErrors.Inc()
}

func (p *Prometheus) IncPanic(task string) {
	if p == nil {
		return
	}
	p.panics.WithLabelValues(task).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
