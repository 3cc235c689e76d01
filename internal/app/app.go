// Package app wires the monitor together and owns the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"unitwatch/internal/config"
	"unitwatch/internal/filter"
	"unitwatch/internal/monitor"
	"unitwatch/internal/notifier"
	"unitwatch/internal/observability/debughttp"
	"unitwatch/internal/observability/metrics"
	rtsup "unitwatch/internal/runtime/supervisor"
	"unitwatch/internal/scheduler"
	"unitwatch/internal/state"
	"unitwatch/internal/systemd"
	logx "unitwatch/pkg/logx"
)

type Options struct {
	// ConfigPath is optional; without it defaults and the overlay are used
	// and hot reload is off.
	ConfigPath string
	Overlay    config.Overlay
	Version    string

	// Source replaces the systemd connection.
	Source monitor.Source
	// Signals replaces SIGINT/SIGTERM delivery.
	Signals <-chan os.Signal
	// Exit is called on a forced stop. Defaults to os.Exit.
	Exit func(code int)
	// Hostname is shown in messages. Defaults to os.Hostname.
	Hostname string
}

type App struct {
	opts Options

	cfgm   *config.Manager
	timing config.Timing

	log  logx.Logger
	logs *logx.Service

	source monitor.Source
	store  *state.Store
	disp   *notifier.Dispatcher
	prom   *metrics.Prometheus
	debug  *debughttp.Server
	mon    *monitor.Monitor
	loop   *scheduler.Loop

	sup      *rtsup.Supervisor
	stopLoop context.CancelFunc

	stopping atomic.Bool
	reason   atomic.Int32
	ticks    atomic.Uint64
	lastTick atomic.Int64 // unix nanos of the last successful tick
}

// New loads the configuration and builds every component. Any error here is
// startup-fatal: no notifier, an unusable state file or no system bus.
func New(ctx context.Context, opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath, opts.Overlay)
	cfg, err := cfgm.Load()
	if err != nil {
		if errors.Is(err, config.ErrNoNotifier) {
			return nil, fmt.Errorf("could not create notifications provider: %w", err)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.LogxConfig())
	ok := false
	defer func() {
		if !ok {
			_ = logSvc.Close()
		}
	}()
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	log = log.With(logx.String("comp", "app"))

	host := strings.TrimSpace(opts.Hostname)
	if host == "" {
		host, _ = os.Hostname()
	}

	notifiers, err := buildNotifiers(cfg, timing, host)
	if err != nil {
		return nil, fmt.Errorf("could not create notifications provider: %w", err)
	}

	var store *state.Store
	if path := strings.TrimSpace(cfg.StateFile); path != "" {
		if store, err = state.Open(path, log.With(logx.String("comp", "state"))); err != nil {
			return nil, err
		}
	} else {
		store = state.New(state.WithLogger(log.With(logx.String("comp", "state"))))
	}

	source := opts.Source
	if source == nil {
		src, err := systemd.Connect(ctx)
		if err != nil {
			return nil, err
		}
		source = src
	}

	prom := metrics.NewPrometheus(nil)
	disp := notifier.NewDispatcher(notifiers,
		notifier.WithLogger(log.With(logx.String("comp", "notifier"))),
		notifier.WithMetrics(prom),
		notifier.WithTimeout(timing.NotifyTimeout),
	)

	a := &App{
		opts:   opts,
		cfgm:   cfgm,
		timing: timing,
		log:    log,
		logs:   logSvc,
		source: source,
		store:  store,
		disp:   disp,
		prom:   prom,
	}
	a.mon = &monitor.Monitor{
		Source:     source,
		Store:      store,
		Filter:     filter.New(cfg.UnitSuffix),
		Dispatcher: disp,
		Log:        log.With(logx.String("comp", "monitor")),
		Metrics:    prom,
	}
	a.loop = &scheduler.Loop{
		Interval: timing.Interval,
		Log:      log.With(logx.String("comp", "scheduler")),
		Observe:  a.observe,
	}
	a.debug = debughttp.New(debughttp.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          cfg.Debug.Addr,
		Token:         cfg.Debug.Token,
		AllowInsecure: cfg.Debug.AllowInsecure,
	}, log.With(logx.String("comp", "debug")), prom.Handler(), a.health)

	log.Info("unitwatch configured",
		logx.String("version", opts.Version),
		logx.Duration("interval", timing.Interval),
		logx.String("unit_suffix", a.mon.Filter.Suffix),
		logx.Strings("notifiers", disp.Names()),
		logx.Bool("persistent", store.Persistent()),
		logx.Int("known_units", store.Len()),
	)
	ok = true
	return a, nil
}

// Run polls until a stop is requested or a tick fails. A stop request lets
// the current tick finish; the returned error is nil in that case.
func (a *App) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	a.stopLoop = stopLoop

	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithPanicHook(func(name string, _ any) { a.prom.IncPanic(name) }),
	)

	sigs := a.opts.Signals
	if sigs == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}
	a.sup.Go0("signals", func(c context.Context) { a.watchSignals(c, sigs) })

	if err := a.debug.Start(a.sup.Context()); err != nil {
		a.shutdown()
		return err
	}
	if a.cfgm.Path() != "" {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
		a.sup.GoRestart("config.watch", a.cfgm.Watch)
	}

	if !a.cfgm.Get().DisableStartNotification {
		a.disp.NotifyStart()
	}
	a.log.Info("monitoring started")

	// A tick is never interrupted by a stop request; only the sleep is.
	tick := func(c context.Context) error { return a.mon.Tick(context.WithoutCancel(c)) }
	err := a.loop.Run(loopCtx, tick, a.stopping.Load)
	switch {
	case err != nil:
		a.reason.CompareAndSwap(int32(StopUnknown), int32(StopFatalError))
		a.log.Error("monitor loop failed", logx.Err(err))
	case ctx.Err() != nil:
		a.reason.CompareAndSwap(int32(StopUnknown), int32(StopContext))
	}
	a.log.Info("monitor loop stopped", logx.String("reason", a.StopReason().String()))

	if err != nil {
		// Let the error reach the channels before the process exits.
		a.disp.Escalate(err)
	}
	a.shutdown()
	return err
}

// Stop requests a graceful stop after the current tick.
func (a *App) Stop() { a.requestStop(StopAppStop) }

func (a *App) requestStop(r StopReason) bool {
	if !a.stopping.CompareAndSwap(false, true) {
		return false
	}
	a.reason.Store(int32(r))
	if a.stopLoop != nil {
		a.stopLoop()
	}
	return true
}

func (a *App) StopReason() StopReason { return StopReason(a.reason.Load()) }

// watchSignals turns the first termination request into a graceful stop and
// a second one into an immediate exit.
func (a *App) watchSignals(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			if a.requestStop(reasonForSignal(sig)) {
				a.log.Info("termination requested; stopping after the current tick", logx.String("signal", sig.String()))
				continue
			}
			a.log.Warn("second termination request; exiting now", logx.String("signal", sig.String()))
			exit := a.opts.Exit
			if exit == nil {
				exit = os.Exit
			}
			exit(ExitForced)
			return
		}
	}
}

func (a *App) shutdown() {
	grace := a.timing.ShutdownGrace
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := a.disp.Wait(ctx); err != nil {
		a.log.Warn("notifications still in flight at exit", logx.Int64("in_flight", a.disp.InFlight()), logx.Duration("grace", grace))
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelStop()
	if err := a.debug.Stop(stopCtx); err != nil {
		a.log.Warn("debug server stop failed", logx.Err(err))
	}
	if a.sup != nil {
		if err := a.sup.Stop(stopCtx); err != nil {
			a.log.Warn("background tasks did not stop in time", logx.Err(err))
		}
	}
	if c, ok := a.source.(io.Closer); ok {
		_ = c.Close()
	}
	a.log.Info("unitwatch stopped")
	_ = a.logs.Close()
}

func (a *App) observe(elapsed time.Duration, err error) {
	a.prom.ObserveTick(elapsed, err)
	if elapsed >= a.timing.Interval {
		a.prom.IncTickOverrun()
	}
	if err == nil {
		a.ticks.Add(1)
		a.lastTick.Store(time.Now().UnixNano())
	}
}

// Health is the /healthz body.
type Health struct {
	Status     string    `json:"status"`
	Ticks      uint64    `json:"ticks"`
	LastTick   time.Time `json:"last_tick,omitzero"`
	KnownUnits int       `json:"known_units"`
	Notifiers  []string  `json:"notifiers"`
	InFlight   int64     `json:"notifications_in_flight"`
	Stopping   bool      `json:"stopping"`
}

var errStale = errors.New("no successful tick recently")

func (a *App) health() (any, error) {
	h := Health{
		Status:     "ok",
		Ticks:      a.ticks.Load(),
		KnownUnits: a.store.Len(),
		Notifiers:  a.disp.Names(),
		InFlight:   a.disp.InFlight(),
		Stopping:   a.stopping.Load(),
	}
	if ns := a.lastTick.Load(); ns != 0 {
		h.LastTick = time.Unix(0, ns).UTC()
		if time.Since(h.LastTick) > a.staleAfter() {
			h.Status = "stale"
			return h, errStale
		}
	}
	return h, nil
}

func (a *App) staleAfter() time.Duration {
	return max(3*a.timing.Interval, 30*time.Second)
}

// DebugAddr is the bound debug server address, or "" when it is off.
func (a *App) DebugAddr() string { return a.debug.Addr() }
