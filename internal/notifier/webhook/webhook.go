// Package webhook posts alerts as plain JSON to arbitrary HTTP endpoints.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unitwatch/internal/transport/httpx"
	"unitwatch/internal/unit"
)

// Event names carried in the payload.
const (
	EventUnitsChanged = "units_changed"
	EventError        = "error"
	EventStart        = "start"
)

type Poster interface {
	Post(ctx context.Context, rawURL string, query url.Values, payload any, headers http.Header) error
}

type Config struct {
	Name        string
	URL         string
	BearerToken string
}

// Payload is the request body for every event.
type Payload struct {
	Event string        `json:"event"`
	Host  string        `json:"host,omitempty"`
	Time  time.Time     `json:"time"`
	Units []unit.Status `json:"units,omitempty"`
	Error string        `json:"error,omitempty"`
}

type Notifier struct {
	name    string
	url     string
	headers http.Header
	client  Poster
	host    string
	now     func() time.Time
}

func New(cfg Config, client Poster) (*Notifier, error) {
	raw := strings.TrimSpace(cfg.URL)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("could not parse webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("could not parse webhook url: want an absolute http(s) url")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = u.Host
	}
	h := http.Header{}
	if tok := strings.TrimSpace(cfg.BearerToken); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	if client == nil {
		client = httpx.New(httpx.DefaultTimeout)
	}
	return &Notifier{name: "webhook:" + name, url: raw, headers: h, client: client, now: time.Now}, nil
}

func (n *Notifier) WithHost(host string) *Notifier {
	n.host = strings.TrimSpace(host)
	return n
}

func (n *Notifier) Name() string { return n.name }

func (n *Notifier) Notify(ctx context.Context, statuses []unit.Status) error {
	return n.post(ctx, Payload{Event: EventUnitsChanged, Units: statuses})
}

func (n *Notifier) NotifyError(ctx context.Context, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return n.post(ctx, Payload{Event: EventError, Error: msg})
}

func (n *Notifier) NotifyStart(ctx context.Context) error {
	return n.post(ctx, Payload{Event: EventStart})
}

func (n *Notifier) post(ctx context.Context, p Payload) error {
	p.Host = n.host
	p.Time = n.now().UTC()
	if err := n.client.Post(ctx, n.url, nil, p, n.headers); err != nil {
		return fmt.Errorf("post %s event: %w", p.Event, err)
	}
	return nil
}
