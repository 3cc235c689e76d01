package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const EnvPrefix = "UNITWATCH_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with UNITWATCH_* variables that are set and non-empty.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("INTERVAL"); ok {
		cfg.Interval = v
	}
	if v, ok := get("UNIT_SUFFIX"); ok {
		cfg.UnitSuffix = v
	}
	if v, ok := get("STATE_FILE"); ok {
		cfg.StateFile = v
	}
	if v, ok := get("DISABLE_START_NOTIFICATION"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDISABLE_START_NOTIFICATION: %w", EnvPrefix, err)
		}
		cfg.DisableStartNotification = b
	}
	if v, ok := get("DISCORD_WEBHOOK_URL"); ok {
		if cfg.Notifiers.Discord == nil {
			cfg.Notifiers.Discord = &DiscordConfig{}
		}
		cfg.Notifiers.Discord.WebhookURL = v
	}
	if v, ok := get("TELEGRAM_TOKEN"); ok {
		if cfg.Notifiers.Telegram == nil {
			cfg.Notifiers.Telegram = &TelegramConfig{}
		}
		cfg.Notifiers.Telegram.Token = v
	}
	if v, ok := get("TELEGRAM_CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sTELEGRAM_CHAT_ID: %w", EnvPrefix, err)
		}
		if cfg.Notifiers.Telegram == nil {
			cfg.Notifiers.Telegram = &TelegramConfig{}
		}
		cfg.Notifiers.Telegram.ChatID = id
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	return nil
}
