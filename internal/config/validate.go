package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "unitwatch/pkg/logx"
)

var ErrNoNotifier = errors.New("no notification provider could be created. Is the configuration correctly set?")

// Validate reports the first problem that would make the daemon unable to run.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Interval) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(c.Interval))
		if err != nil {
			return fmt.Errorf("interval: invalid duration %q: %w", c.Interval, err)
		}
		if d <= 0 {
			return errors.New("interval: must be > 0")
		}
	}
	if _, err := c.Timing(); err != nil {
		return err
	}
	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	n := 0
	if d := c.Notifiers.Discord; d != nil && strings.TrimSpace(d.WebhookURL) != "" {
		if d.RatePerSec < 0 {
			return errors.New("notifiers.discord.rate_per_sec: must be >= 0")
		}
		n++
	}
	if t := c.Notifiers.Telegram; t != nil && strings.TrimSpace(t.Token) != "" {
		if t.ChatID == 0 {
			return errors.New("notifiers.telegram.chat_id: required when a token is set")
		}
		n++
	}
	for i, w := range c.Notifiers.Webhooks {
		if strings.TrimSpace(w.URL) == "" {
			return fmt.Errorf("notifiers.webhooks[%d].url: required", i)
		}
		n++
	}
	if n == 0 {
		return ErrNoNotifier
	}
	return nil
}
