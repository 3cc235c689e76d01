package app

import (
	"context"
	"strings"

	"unitwatch/internal/config"
	logx "unitwatch/pkg/logx"
)

// reloadLoop applies hot-reloaded configs. Only logging takes effect at
// runtime; other sections are reported as needing a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the latest of a burst
		drain:
			for {
				select {
				case newer, ok := <-sub:
					if !ok {
						return
					}
					newCfg = newer
				default:
					break drain
				}
			}
			a.applyReload(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, attrs := config.ChangedSections(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	var restart []string
	for _, s := range sections {
		if s == "logging" {
			a.logs.Apply(newCfg.Logging.LogxConfig())
			continue
		}
		restart = append(restart, s)
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed; restart required for them to take effect", logx.Strings("sections", restart))
	}
}
