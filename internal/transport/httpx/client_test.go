package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestPostSendsJSON(t *testing.T) {
	var gotQuery, gotCT, gotAuth string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(time.Second)
	h := http.Header{}
	h.Set("Authorization", "Bearer t")
	err := c.Post(context.Background(), srv.URL+"/hook?x=1", url.Values{"wait": {"true"}}, map[string]string{"a": "b"}, h)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotCT != "application/json" {
		t.Fatalf("content type = %q", gotCT)
	}
	if gotAuth != "Bearer t" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	q, _ := url.ParseQuery(gotQuery)
	if q.Get("wait") != "true" || q.Get("x") != "1" {
		t.Fatalf("query = %q", gotQuery)
	}
	if got["a"] != "b" {
		t.Fatalf("body = %+v", got)
	}
}

func TestPostNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(time.Second).Post(context.Background(), srv.URL, nil, struct{}{}, nil)
	if !IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("err = %v, want 429 StatusError", err)
	}
	se := err.(*StatusError)
	if len(se.Body) > maxErrorBody {
		t.Fatalf("body not truncated: %d bytes", len(se.Body))
	}
}

func TestPostTransportErrorHidesSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	u := srv.URL + "/api/webhooks/123/secret-token"
	srv.Close()

	err := New(time.Second).Post(context.Background(), u, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error for closed server")
	}
	if strings.Contains(err.Error(), "secret-token") || strings.Contains(err.Error(), "/api/webhooks") {
		t.Fatalf("error leaks url path: %v", err)
	}
	if !strings.Contains(err.Error(), "post http://127.0.0.1") {
		t.Fatalf("error should name the host: %v", err)
	}
}

func TestPostTimeoutHidesSecretsAndKeepsCause(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(time.Second).Post(ctx, srv.URL+"/hook/secret-token", url.Values{"wait": {"true"}}, nil, nil)
	if err == nil {
		t.Fatalf("expected timeout")
	}
	if strings.Contains(err.Error(), "secret-token") || strings.Contains(err.Error(), "wait=true") {
		t.Fatalf("error leaks url: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestPostHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := New(5*time.Second).Post(ctx, srv.URL, nil, nil, nil); err == nil {
		t.Fatalf("expected context error")
	}
}
