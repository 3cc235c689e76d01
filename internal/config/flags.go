package config

import "flag"

// Flags are the command-line overrides. Only flags given explicitly override
// the file and the environment.
type Flags struct {
	ConfigPath string
	Version    bool

	fs                       *flag.FlagSet
	interval                 string
	discordWebhookURL        string
	disableStartNotification bool
	stateFile                string
	logLevel                 string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "path to config file (json or yaml); optional")
	fs.BoolVar(&f.Version, "version", false, "print version and exit")
	fs.StringVar(&f.interval, "interval", "", "polling interval (e.g. 2s)")
	fs.StringVar(&f.discordWebhookURL, "discord-webhook-url", "", "discord webhook url")
	fs.BoolVar(&f.disableStartNotification, "disable-start-notification", false, "do not notify when monitoring starts")
	fs.StringVar(&f.stateFile, "state-file", "", "persist unit states to this file")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	return f
}

// Apply copies explicitly set flags into cfg. Call after fs.Parse.
func (f *Flags) Apply(cfg *Config) {
	if f == nil || f.fs == nil {
		return
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "interval":
			cfg.Interval = f.interval
		case "discord-webhook-url":
			if cfg.Notifiers.Discord == nil {
				cfg.Notifiers.Discord = &DiscordConfig{}
			}
			cfg.Notifiers.Discord.WebhookURL = f.discordWebhookURL
		case "disable-start-notification":
			cfg.DisableStartNotification = f.disableStartNotification
		case "state-file":
			cfg.StateFile = f.stateFile
		case "log-level":
			cfg.Logging.Level = f.logLevel
		}
	})
}
