package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"unitwatch/internal/unit"
)

type botAPI struct {
	mu    sync.Mutex
	paths []string
	sent  []map[string]any
	fail  bool
}

func (a *botAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var params map[string]any
		_ = json.Unmarshal(b, &params)
		a.mu.Lock()
		a.paths = append(a.paths, r.URL.Path)
		a.sent = append(a.sent, params)
		fail := a.fail
		a.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNotifier(t *testing.T, url string) *Notifier {
	t.Helper()
	n, err := New(Config{Token: "123:abc", ChatID: 42, ThreadID: 7, APIURL: url})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{ChatID: 1}); err == nil {
		t.Fatalf("empty token should fail")
	}
	if _, err := New(Config{Token: "x"}); err == nil {
		t.Fatalf("missing chat id should fail")
	}
}

func TestNotifySendsHTMLMessage(t *testing.T) {
	api := &botAPI{}
	srv := api.server(t)
	n := newNotifier(t, srv.URL).WithHost("db-<1>")

	err := n.Notify(context.Background(), []unit.Status{
		{Name: "postgres.service", Description: "PostgreSQL & co", LoadState: unit.LoadLoaded, ActiveState: unit.ActiveFailed, SubState: "failed"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(api.sent))
	}
	if api.paths[0] != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q", api.paths[0])
	}
	p := api.sent[0]
	text, _ := p["text"].(string)
	if !strings.Contains(text, "<b>postgres.service</b> has failed!") {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(text, "PostgreSQL &amp; co") || !strings.Contains(text, "db-&lt;1&gt;") {
		t.Fatalf("text not escaped: %q", text)
	}
	if p["parse_mode"] != "HTML" {
		t.Fatalf("parse_mode = %v", p["parse_mode"])
	}
}

func TestNotifyErrorSurfacesAPIFailure(t *testing.T) {
	api := &botAPI{fail: true}
	srv := api.server(t)
	n := newNotifier(t, srv.URL)
	if err := n.NotifyError(context.Background(), errors.New("bus gone")); err == nil {
		t.Fatalf("expected error from failing Bot API")
	}
}

func TestSendErrorsHideToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	apiURL := srv.URL
	srv.Close()

	n, err := New(Config{Token: "123:SECRETTOKEN", ChatID: 42, APIURL: apiURL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = n.NotifyError(context.Background(), errors.New("bus gone"))
	if err == nil {
		t.Fatalf("expected error for unreachable Bot API")
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") || strings.Contains(err.Error(), "/bot") {
		t.Fatalf("token leaked into error: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "telegram send: ") {
		t.Fatalf("err = %v", err)
	}

	// Errors that are not *url.Error are masked by text.
	plain := n.sendError(errors.New("telebot: bad response from /bot123:SECRETTOKEN/sendMessage"))
	if strings.Contains(plain.Error(), "SECRETTOKEN") || !strings.Contains(plain.Error(), "<redacted>") {
		t.Fatalf("plain error not masked: %v", plain)
	}
}

func TestNotifyEmptyAndCancelled(t *testing.T) {
	api := &botAPI{}
	srv := api.server(t)
	n := newNotifier(t, srv.URL)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("empty Notify: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.NotifyStart(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled NotifyStart err = %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatalf("nothing should have been sent, got %d", len(api.sent))
	}
}

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}

	s := "line one\nline two\nline three\n"
	got := splitText(s, 18)
	want := []string{"line one\nline two", "line three"}
	if len(got) != len(want) {
		t.Fatalf("split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}

	long := strings.Repeat("é", 25)
	got = splitText(long, 10)
	if len(got) != 3 || len([]rune(got[0])) != 10 || len([]rune(got[2])) != 5 {
		t.Fatalf("long line split = %q", got)
	}
	for _, c := range splitText(strings.Repeat("abc\n", 500), 100) {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk over limit: %d", len([]rune(c)))
		}
	}
}
