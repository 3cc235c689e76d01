// Package telegram delivers alerts as Telegram bot messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"unitwatch/internal/unit"
)

const (
	Name = "telegram"

	// Telegram rejects messages longer than 4096 characters after entity
	// parsing; keep a margin for the markup.
	textLimit = 3800
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API endpoint (tests, self-hosted Bot API servers).
	APIURL  string
	Timeout time.Duration
}

type Notifier struct {
	bot      *tele.Bot
	token    string
	chat     *tele.Chat
	threadID int
	host     string
}

// New builds an offline bot: no getMe call is made and no updates are polled.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: b, token: strings.TrimSpace(cfg.Token), chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID}, nil
}

func (n *Notifier) WithHost(host string) *Notifier {
	n.host = strings.TrimSpace(host)
	return n
}

func (n *Notifier) Name() string { return Name }

func (n *Notifier) Notify(ctx context.Context, statuses []unit.Status) error {
	if len(statuses) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("<b>Unit status changed</b>")
	n.writeHost(&b)
	b.WriteString("\n")
	for _, st := range statuses {
		b.WriteString("\n")
		b.WriteString(formatStatus(st))
	}
	return n.send(ctx, b.String())
}

func (n *Notifier) NotifyError(ctx context.Context, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	var b strings.Builder
	b.WriteString("<b>Internal Error!</b>")
	n.writeHost(&b)
	b.WriteString("\n\n<pre>")
	b.WriteString(html.EscapeString(msg))
	b.WriteString("</pre>")
	return n.send(ctx, b.String())
}

func (n *Notifier) NotifyStart(ctx context.Context) error {
	var b strings.Builder
	b.WriteString("<b>Monitoring started</b>")
	n.writeHost(&b)
	return n.send(ctx, b.String())
}

func (n *Notifier) writeHost(b *strings.Builder) {
	if n.host != "" {
		b.WriteString(" on <code>")
		b.WriteString(html.EscapeString(n.host))
		b.WriteString("</code>")
	}
}

func formatStatus(st unit.Status) string {
	line := fmt.Sprintf("<b>%s</b> has failed!\nload: <code>%s</code> · active: <code>%s</code> · sub: <code>%s</code>",
		html.EscapeString(st.Name),
		html.EscapeString(st.LoadState.String()),
		html.EscapeString(st.ActiveState.String()),
		html.EscapeString(st.SubState))
	if d := strings.TrimSpace(st.Description); d != "" {
		line += "\n<i>" + html.EscapeString(d) + "</i>"
	}
	return line
}

func (n *Notifier) send(ctx context.Context, text string) error {
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              n.threadID,
	}
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.bot.Send(n.chat, chunk, opt); err != nil {
			return n.sendError(err)
		}
	}
	return nil
}

// sendError drops the request URL and masks the token, which the Bot API URL
// embeds.
func (n *Notifier) sendError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	if n.token != "" && strings.Contains(err.Error(), n.token) {
		return fmt.Errorf("telegram send: %s", strings.ReplaceAll(err.Error(), n.token, "<redacted>"))
	}
	return fmt.Errorf("telegram send: %w", err)
}

// splitText cuts s into chunks of at most limit runes, preferring line
// boundaries. A single line longer than limit is cut mid-line; the alert text
// only puts markup inside lines for short values, so tags are only ever split
// on extreme inputs.
func splitText(s string, limit int) []string {
	if len([]rune(s)) <= limit {
		return []string{s}
	}
	var out []string
	var cur []rune
	flush := func() {
		if c := strings.TrimRight(string(cur), "\n"); c != "" {
			out = append(out, c)
		}
		cur = cur[:0]
	}
	for _, line := range strings.SplitAfter(s, "\n") {
		rs := []rune(line)
		if len(cur)+len(rs) > limit {
			flush()
		}
		for len(rs) > limit {
			out = append(out, string(rs[:limit]))
			rs = rs[limit:]
		}
		cur = append(cur, rs...)
	}
	flush()
	return out
}
