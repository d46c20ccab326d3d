// Package app wires the components together and owns process lifecycle:
// config load/watch, logging, engine, scheduler loop, systemd readiness.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"streamwatch/internal/config"
	"streamwatch/internal/creds"
	"streamwatch/internal/discord"
	"streamwatch/internal/engine"
	rtsup "streamwatch/internal/runtime/supervisor"
	"streamwatch/internal/scheduler"
	"streamwatch/internal/state"
	"streamwatch/internal/template"
	"streamwatch/internal/twitch"
	logx "streamwatch/pkg/logx"
)

type App struct {
	cm     *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	store   state.Store
	loader  *template.Loader
	webhook *discord.Webhook
	engine  *engine.Engine
	loop    *scheduler.Loop
	names   []string

	sup *rtsup.Supervisor
}

type Options struct {
	ConfigPath string
	DryRun     bool
}

// New loads and validates the config and builds the component graph.
// A config error here is fatal; the caller exits non-zero.
func New(opts Options) (*App, error) {
	cm := config.NewManager(opts.ConfigPath)
	cfg, err := cm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.ConfigPath, err)
	}

	logsvc, log := logx.New(logCfg(cfg))
	cm.SetLogger(log.With(logx.String("comp", "config")))
	cm.SetValidator(func(ctx context.Context, next *config.Config) error {
		_ = ctx
		if _, err := scheduler.NewSchedule(next.Poll.Schedule); err != nil {
			return err
		}
		if !config.LiveApplicable(cfg, next) {
			return errors.New("change requires restart (identity, channels, schedule or storage)")
		}
		return nil
	})

	sched, err := scheduler.NewSchedule(cfg.Poll.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: poll.schedule: %v", config.ErrInvalid, err)
	}

	store, err := state.Open(
		state.Config{Driver: cfg.State.Driver, Path: cfg.Files.State},
		log.With(logx.String("comp", "state")),
	)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	cache := creds.NewCache(
		cfg.Files.Credentials,
		creds.NewTwitchSource(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret),
		log.With(logx.String("comp", "creds")),
	)
	provider := twitch.NewClient(cfg.Twitch.ClientID, cache, log.With(logx.String("comp", "twitch")))

	loader := template.NewLoader(cfg.Files.Template, log.With(logx.String("comp", "template")))
	webhook := discord.NewWebhook(
		discord.Config{WebhookURL: cfg.Discord.WebhookURL, RatePerSec: cfg.Discord.RatePerSec},
		log.With(logx.String("comp", "discord")),
	)

	eng := engine.New(
		provider,
		template.NewPayloadRenderer(loader),
		webhook,
		engine.Mention{Everyone: cfg.Discord.MentionEveryone, RoleID: cfg.Discord.MentionRole},
		log.With(logx.String("comp", "engine")),
		engine.WithDryRun(opts.DryRun),
	)

	cycleTimeout, err := config.ParseDurationOrDefault("poll.cycle_timeout", cfg.Poll.CycleTimeout, 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	names := cfg.Twitch.Streamers.Names()
	loop := scheduler.NewLoop(eng, store, names, sched,
		log.With(logx.String("comp", "scheduler")),
		scheduler.WithCycleTimeout(cycleTimeout),
	)

	return &App{
		cm:      cm,
		logsvc:  logsvc,
		log:     log,
		store:   store,
		loader:  loader,
		webhook: webhook,
		engine:  eng,
		loop:    loop,
		names:   names,
	}, nil
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// Start launches the scheduler loop and the config watcher. It returns
// immediately; the caller waits on its own signal context.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, a.log.With(logx.String("comp", "supervisor")))

	a.sup.Go("scheduler.loop", a.loop.Run)
	a.sup.GoRestart("config.watch", a.cm.Watch)
	a.sup.Go("config.apply", func(c context.Context) error {
		a.applyUpdates(c)
		return nil
	})

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("streamwatch started", logx.Int("channels", len(a.names)))
	return nil
}

// applyUpdates consumes published config reloads and applies the
// live-applicable subset: logging, mention, webhook, template path.
func (a *App) applyUpdates(ctx context.Context) {
	sub := a.cm.Subscribe(1)
	defer a.cm.Unsubscribe(sub)

	prev := a.cm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok || next == nil {
				return
			}
			changed, attrs := config.SummarizeChange(prev, next)
			a.logsvc.Apply(logCfg(next))
			a.webhook.Apply(discord.Config{
				WebhookURL: next.Discord.WebhookURL,
				RatePerSec: next.Discord.RatePerSec,
			})
			a.engine.SetMention(engine.Mention{
				Everyone: next.Discord.MentionEveryone,
				RoleID:   next.Discord.MentionRole,
			})
			a.loader.SetPath(next.Files.Template)
			if len(changed) > 0 {
				a.log.Info("config applied",
					append([]logx.Field{logx.Any("sections", changed)}, attrs...)...,
				)
			}
			prev = next
		}
	}
}

// RunOnce executes a single reconciliation cycle and persists the result.
// With DryRun set nothing is dispatched or persisted; intended for template
// editing and setup checks.
func (a *App) RunOnce(ctx context.Context, dryRun bool) error {
	prior, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	next, err := a.engine.RunCycle(ctx, a.names, prior)
	if err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return a.store.Save(ctx, next)
}

// Stop tears the app down: notify systemd, cancel workers, wait for the
// loop's final state flush, close the store and log sinks.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("shutdown timed out waiting for workers", logx.Err(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", logx.Err(err))
	}
	_ = a.logsvc.Close()
	return nil
}
