package app

import (
	"fmt"
	"strings"

	"unitwatch/internal/config"
	"unitwatch/internal/notifier"
	"unitwatch/internal/notifier/discord"
	"unitwatch/internal/notifier/telegram"
	"unitwatch/internal/notifier/webhook"
	"unitwatch/internal/transport/httpx"
)

// buildNotifiers maps the notifiers section to concrete channels, in the
// order discord, telegram, webhooks.
func buildNotifiers(cfg *config.Config, t config.Timing, host string) ([]notifier.Notifier, error) {
	client := httpx.New(t.NotifyTimeout)
	var out []notifier.Notifier

	if d := cfg.Notifiers.Discord; d != nil && strings.TrimSpace(d.WebhookURL) != "" {
		n, err := discord.New(discord.Config{WebhookURL: d.WebhookURL, RatePerSec: d.RatePerSec}, client)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		out = append(out, n.WithHost(host))
	}
	if tg := cfg.Notifiers.Telegram; tg != nil && strings.TrimSpace(tg.Token) != "" {
		n, err := telegram.New(telegram.Config{
			Token:    tg.Token,
			ChatID:   tg.ChatID,
			ThreadID: tg.ThreadID,
			APIURL:   tg.APIURL,
			Timeout:  t.NotifyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, n.WithHost(host))
	}
	for i, w := range cfg.Notifiers.Webhooks {
		n, err := webhook.New(webhook.Config{Name: w.Name, URL: w.URL, BearerToken: w.BearerToken}, client)
		if err != nil {
			return nil, fmt.Errorf("webhooks[%d]: %w", i, err)
		}
		out = append(out, n.WithHost(host))
	}
	if len(out) == 0 {
		return nil, config.ErrNoNotifier
	}
	return out, nil
}
