// Package discord delivers alerts through a Discord webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"unitwatch/internal/transport/httpx"
	"unitwatch/internal/unit"
)

const (
	Name = "discord"

	author       = "unitwatch"
	alertColor   = 13631488
	startColor   = 3066993
	footerLayout = "2006-01-02 15:04:05 -07:00"

	// Discord rejects embed descriptions longer than this.
	maxDescription = 4096
)

// Poster is the HTTP transport the notifier posts through.
type Poster interface {
	Post(ctx context.Context, rawURL string, query url.Values, payload any, headers http.Header) error
}

type Config struct {
	WebhookURL string
	// RatePerSec limits outgoing posts; <= 0 means the default of 2.
	RatePerSec float64
}

type Notifier struct {
	url     string
	client  Poster
	limiter *rate.Limiter
	host    string
	now     func() time.Time
}

// New validates the webhook URL. client may be nil for the default transport.
func New(cfg Config, client Poster) (*Notifier, error) {
	raw := strings.TrimSpace(cfg.WebhookURL)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("could not parse discord webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("could not parse discord webhook url: want an absolute http(s) url")
	}
	if client == nil {
		client = httpx.New(httpx.DefaultTimeout)
	}
	r := cfg.RatePerSec
	if r <= 0 {
		r = 2
	}
	burst := int(r)
	if burst < 1 {
		burst = 1
	}
	return &Notifier{
		url:     raw,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(r), burst),
		now:     time.Now,
	}, nil
}

// WithHost names the host in every message author line.
func (n *Notifier) WithHost(host string) *Notifier {
	n.host = strings.TrimSpace(host)
	return n
}

func (n *Notifier) Name() string { return Name }

// Notify posts one message per status and stops at the first failure.
func (n *Notifier) Notify(ctx context.Context, statuses []unit.Status) error {
	for _, st := range statuses {
		msg := n.build("Unit Status changed!", st.Name+" has failed!",
			"The following unit has entered a new state:", alertColor, statusFields(st))
		if err := n.send(ctx, msg); err != nil {
			return fmt.Errorf("could not execute discord webhook for %s: %w", st.Name, err)
		}
	}
	return nil
}

func (n *Notifier) NotifyError(ctx context.Context, cause error) error {
	desc := "unknown error"
	if cause != nil {
		desc = cause.Error()
	}
	msg := n.build("unitwatch internal error!", "Internal Error!", truncate(desc, maxDescription), alertColor, nil)
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("could not execute discord webhook: %w", err)
	}
	return nil
}

func (n *Notifier) NotifyStart(ctx context.Context) error {
	msg := n.build("unitwatch started", "Monitoring started",
		"Unit state changes on this host will be reported here.", startColor, nil)
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("could not execute discord webhook: %w", err)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, msg message) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	return n.client.Post(ctx, n.url, url.Values{"wait": {"true"}}, msg, nil)
}

type message struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Author      embedAuthor  `json:"author"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Timestamp   string       `json:"timestamp"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      embedFooter  `json:"footer"`
}

type embedAuthor struct {
	Name string `json:"name"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) build(content, title, description string, color int, fields []embedField) message {
	now := n.now()
	name := author
	if n.host != "" {
		name = author + " on " + n.host
	}
	if fields == nil {
		fields = []embedField{}
	}
	return message{
		Content: content,
		Embeds: []embed{{
			Author:      embedAuthor{Name: name},
			Title:       title,
			Description: description,
			Timestamp:   now.UTC().Format(time.RFC3339),
			Color:       color,
			Fields:      fields,
			Footer:      embedFooter{Text: "message created at system time: " + now.Format(footerLayout)},
		}},
	}
}

func statusFields(st unit.Status) []embedField {
	return []embedField{
		{Name: "Name", Value: fieldValue(st.Name), Inline: true},
		{Name: "Description", Value: fieldValue(st.Description), Inline: true},
		{Name: "Load State", Value: st.LoadState.String(), Inline: true},
		{Name: "Active State", Value: st.ActiveState.String(), Inline: true},
		{Name: "Sub State", Value: fieldValue(st.SubState), Inline: true},
	}
}

// Discord rejects empty field values.
func fieldValue(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return truncate(s, 1024)
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit-1]) + "…"
}
