package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	logx "unitwatch/pkg/logx"
)

func get(t *testing.T, url string, header http.Header) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func start(t *testing.T, cfg Config, metrics http.Handler, health HealthFunc) *Server {
	t.Helper()
	s := New(cfg, nopLog(), metrics, health)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestServesHealthMetricsAndPprof(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("unitwatch_known_units 3\n")) })
	health := func() (any, error) { return map[string]int{"known_units": 3}, nil }
	s := start(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, metrics, health)

	base := "http://" + s.Addr()
	code, body := get(t, base+"/healthz", nil)
	if code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	var got map[string]int
	if err := json.Unmarshal([]byte(body), &got); err != nil || got["known_units"] != 3 {
		t.Fatalf("healthz body = %q (%v)", body, err)
	}
	if code, body := get(t, base+"/metrics", nil); code != http.StatusOK || !strings.Contains(body, "unitwatch_known_units 3") {
		t.Fatalf("metrics = %d %q", code, body)
	}
	if code, _ := get(t, base+"/debug/pprof/", nil); code != http.StatusOK {
		t.Fatalf("pprof index = %d", code)
	}
}

func TestUnhealthyIs503(t *testing.T) {
	s := start(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, func() (any, error) { return nil, errors.New("loop stopped") })
	code, body := get(t, "http://"+s.Addr()+"/healthz", nil)
	if code != http.StatusServiceUnavailable || !strings.Contains(body, "loop stopped") {
		t.Fatalf("healthz = %d %q", code, body)
	}
}

func TestTokenRequired(t *testing.T) {
	s := start(t, Config{Enabled: true, Addr: "127.0.0.1:0", Token: "k"}, nil, nil)
	base := "http://" + s.Addr() + "/healthz"
	if code, _ := get(t, base, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", code)
	}
	if code, _ := get(t, base+"?token=wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d", code)
	}
	if code, _ := get(t, base+"?token=k", nil); code != http.StatusOK {
		t.Fatalf("query token = %d", code)
	}
	if code, _ := get(t, base, http.Header{"Authorization": {"Bearer k"}}); code != http.StatusOK {
		t.Fatalf("bearer token = %d", code)
	}
}

func TestRefusesPublicBindWithoutToken(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nopLog(), nil, nil)
	if err := s.Start(context.Background()); err == nil {
		_ = s.Stop(context.Background())
		t.Fatalf("expected refusal for public bind without token")
	}
}

func TestDisabledDoesNothing(t *testing.T) {
	s := New(Config{Enabled: false}, nopLog(), nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("disabled server should not listen")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1":  true,
		"localhost:1":  true,
		"[::1]:1":      true,
		":1":           false,
		"0.0.0.0:1":    false,
		"10.0.0.1:1":   false,
		"missing-port": false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func nopLog() logx.Logger { return logx.Nop() }
