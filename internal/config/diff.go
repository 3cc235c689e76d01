package config

import (
	"reflect"
	"strings"

	logx "unitwatch/pkg/logx"
)

// ChangedSections returns the top-level sections that differ and safe
// structured attrs for logging (never secrets like tokens or webhook urls).
func ChangedSections(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Interval) != strings.TrimSpace(newCfg.Interval) ||
		oldCfg.UnitSuffix != newCfg.UnitSuffix ||
		oldCfg.DisableStartNotification != newCfg.DisableStartNotification ||
		oldCfg.StateFile != newCfg.StateFile ||
		oldCfg.NotifyTimeout != newCfg.NotifyTimeout ||
		oldCfg.ShutdownGrace != newCfg.ShutdownGrace {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("interval", newCfg.Interval),
			logx.String("unit_suffix", newCfg.UnitSuffix),
			logx.Bool("state_file_set", newCfg.StateFile != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifiers, newCfg.Notifiers) {
		changed = append(changed, "notifiers")
		attrs = append(attrs,
			logx.Bool("notifiers.discord", newCfg.Notifiers.Discord != nil && newCfg.Notifiers.Discord.WebhookURL != ""),
			logx.Bool("notifiers.telegram", newCfg.Notifiers.Telegram != nil && newCfg.Notifiers.Telegram.Token != ""),
			logx.Int("notifiers.webhooks", len(newCfg.Notifiers.Webhooks)),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
		)
	}
	return changed, attrs
}
