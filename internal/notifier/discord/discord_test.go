package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"unitwatch/internal/transport/httpx"
	"unitwatch/internal/unit"
)

type capture struct {
	mu     sync.Mutex
	bodies []message
	query  []string
	status int
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m message
		if err := json.Unmarshal(b, &m); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, m)
		c.query = append(c.query, r.URL.RawQuery)
		status := c.status
		c.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNotifier(t *testing.T, rawURL string) *Notifier {
	t.Helper()
	n, err := New(Config{WebhookURL: rawURL, RatePerSec: 100}, httpx.New(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return n
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path"} {
		if _, err := New(Config{WebhookURL: raw}, nil); err == nil {
			t.Fatalf("New(%q) should fail", raw)
		}
	}
}

func TestNotifyPostsOneEmbedPerUnit(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	n := newNotifier(t, srv.URL+"/api/webhooks/1/tok")

	statuses := []unit.Status{
		{Name: "nginx.service", Description: "web", LoadState: unit.LoadLoaded, ActiveState: unit.ActiveFailed, SubState: "failed"},
		{Name: "odd.service", LoadState: "bad-setting", ActiveState: unit.ActiveInactive, SubState: "dead"},
	}
	if err := n.Notify(context.Background(), statuses); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(c.bodies) != 2 {
		t.Fatalf("posts = %d, want 2", len(c.bodies))
	}
	if c.query[0] != "wait=true" {
		t.Fatalf("query = %q", c.query[0])
	}

	m := c.bodies[0]
	if m.Content != "Unit Status changed!" || len(m.Embeds) != 1 {
		t.Fatalf("message = %+v", m)
	}
	e := m.Embeds[0]
	if e.Title != "nginx.service has failed!" || e.Color != alertColor {
		t.Fatalf("embed = %+v", e)
	}
	if e.Timestamp != "2024-05-01T12:30:00Z" {
		t.Fatalf("timestamp = %q", e.Timestamp)
	}
	if e.Footer.Text != "message created at system time: 2024-05-01 12:30:00 +00:00" {
		t.Fatalf("footer = %q", e.Footer.Text)
	}
	want := []string{"Name", "Description", "Load State", "Active State", "Sub State"}
	if len(e.Fields) != len(want) {
		t.Fatalf("fields = %+v", e.Fields)
	}
	for i, f := range e.Fields {
		if f.Name != want[i] || !f.Inline {
			t.Fatalf("field %d = %+v", i, f)
		}
	}
	if e.Fields[3].Value != "failed" {
		t.Fatalf("active state field = %q", e.Fields[3].Value)
	}

	odd := c.bodies[1].Embeds[0]
	if odd.Fields[1].Value != "-" {
		t.Fatalf("empty description should render as '-', got %q", odd.Fields[1].Value)
	}
	if odd.Fields[2].Value != "unknown: bad-setting" {
		t.Fatalf("unknown load state = %q", odd.Fields[2].Value)
	}
}

func TestNotifyStopsAtFirstFailure(t *testing.T) {
	c := &capture{status: http.StatusBadRequest}
	srv := c.server(t)
	n := newNotifier(t, srv.URL)

	err := n.Notify(context.Background(), []unit.Status{{Name: "a.service"}, {Name: "b.service"}})
	if !httpx.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("err = %v, want 400 status error", err)
	}
	if len(c.bodies) != 1 {
		t.Fatalf("posts = %d, want 1", len(c.bodies))
	}
}

func TestNotifyErrorAndStart(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	n := newNotifier(t, srv.URL).WithHost("web-1")

	if err := n.NotifyError(context.Background(), errors.New("could not list units: bus gone")); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if err := n.NotifyStart(context.Background()); err != nil {
		t.Fatalf("NotifyStart: %v", err)
	}
	e := c.bodies[0].Embeds[0]
	if e.Title != "Internal Error!" || e.Description != "could not list units: bus gone" {
		t.Fatalf("error embed = %+v", e)
	}
	if e.Author.Name != "unitwatch on web-1" {
		t.Fatalf("author = %q", e.Author.Name)
	}
	if e.Fields == nil || len(e.Fields) != 0 {
		t.Fatalf("error embed should have an empty field list")
	}
	if got := c.bodies[1].Embeds[0].Title; got != "Monitoring started" {
		t.Fatalf("start title = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
}
