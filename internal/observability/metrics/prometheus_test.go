package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	p := NewPrometheus(reg)
	p.ObserveTick(20*time.Millisecond, nil)
	p.ObserveTick(5*time.Millisecond, errors.New("x"))
	p.IncTickOverrun()
	p.AddChanges(3, 1)
	p.SetKnownUnits(42)
	p.IncNotification("discord", KindNotify, true)
	p.IncNotification("discord", KindError, false)
	p.IncPersistError()
	p.IncPanic("notify.discord")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"unitwatch_tick_duration_seconds",
		"unitwatch_tick_overruns_total",
		"unitwatch_unit_changes_total",
		"unitwatch_known_units",
		"unitwatch_notifications_total",
		"unitwatch_state_persist_errors_total",
		"unitwatch_task_panics_total",
	} {
		if !found[name] {
			t.Fatalf("metric %s not gathered", name)
		}
	}
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus(nil)
	p.SetKnownUnits(7)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), "unitwatch_known_units 7") {
		t.Fatalf("known_units not exposed:\n%s", body)
	}
}

func TestNilAndNopAreSafe(t *testing.T) {
	var p *Prometheus
	p.ObserveTick(time.Second, nil)
	p.IncNotification("x", KindStart, true)

	r := OrNop(nil)
	r.AddChanges(1, 1)
	r.IncPanic("x")
}
