package config

import (
	"time"

	logx "unitwatch/pkg/logx"
)

// Config is the daemon configuration as read from the file.
//
// All durations are Go duration strings (e.g. "500ms", "2s", "1m").
type Config struct {
	// Interval between the starts of two polls. Default "2s".
	Interval string `json:"interval,omitempty"`
	// UnitSuffix restricts alerts to matching unit names. Default ".service".
	UnitSuffix               string `json:"unit_suffix,omitempty"`
	DisableStartNotification bool   `json:"disable_start_notification,omitempty"`
	// StateFile enables snapshot persistence when set.
	StateFile string `json:"state_file,omitempty"`
	// NotifyTimeout bounds each notifier call. Default "15s".
	NotifyTimeout string `json:"notify_timeout,omitempty"`
	// ShutdownGrace is how long shutdown waits for in-flight alerts. Default "5s".
	ShutdownGrace string `json:"shutdown_grace,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Notifiers NotifiersConfig `json:"notifiers"`
	Debug     DebugConfig     `json:"debug"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type NotifiersConfig struct {
	Discord  *DiscordConfig  `json:"discord,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Webhooks []WebhookConfig `json:"webhooks,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string  `json:"webhook_url"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
}

type WebhookConfig struct {
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	BearerToken string `json:"bearer_token,omitempty"`
}

// DebugConfig controls the optional debug HTTP server.
//
// Security note:
//   - Prefer binding to localhost (default "127.0.0.1:9477").
//   - A non-loopback address needs a token or an explicit allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

const (
	DefaultInterval      = 2 * time.Second
	DefaultUnitSuffix    = ".service"
	DefaultNotifyTimeout = 15 * time.Second
	DefaultShutdownGrace = 5 * time.Second
	DefaultDebugAddr     = "127.0.0.1:9477"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Interval:      DefaultInterval.String(),
		UnitSuffix:    DefaultUnitSuffix,
		NotifyTimeout: DefaultNotifyTimeout.String(),
		ShutdownGrace: DefaultShutdownGrace.String(),
		Logging:       LoggingConfig{Level: "INFO", Console: true},
		Debug:         DebugConfig{Addr: DefaultDebugAddr},
	}
}

// Timing holds the parsed durations of a Config.
type Timing struct {
	Interval      time.Duration
	NotifyTimeout time.Duration
	ShutdownGrace time.Duration
}

func (c *Config) Timing() (Timing, error) {
	var t Timing
	var err error
	if t.Interval, err = ParseDurationOrDefault("interval", c.Interval, DefaultInterval); err != nil {
		return Timing{}, err
	}
	if t.NotifyTimeout, err = ParseDurationOrDefault("notify_timeout", c.NotifyTimeout, DefaultNotifyTimeout); err != nil {
		return Timing{}, err
	}
	// An explicit "0s" grace means "do not wait".
	if t.ShutdownGrace, err = ParseDurationField("shutdown_grace", c.ShutdownGrace); err != nil {
		return Timing{}, err
	}
	if c.ShutdownGrace == "" {
		t.ShutdownGrace = DefaultShutdownGrace
	}
	return t, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.Notifiers.Discord != nil {
		d := *c.Notifiers.Discord
		out.Notifiers.Discord = &d
	}
	if c.Notifiers.Telegram != nil {
		t := *c.Notifiers.Telegram
		out.Notifiers.Telegram = &t
	}
	out.Notifiers.Webhooks = append([]WebhookConfig(nil), c.Notifiers.Webhooks...)
	return &out
}

// LogxConfig converts the logging section.
func (l LoggingConfig) LogxConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}
