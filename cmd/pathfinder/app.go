package main

import (
	"context"
	"fmt"
	"os"

	"pathfinder/internal/browser"
	"pathfinder/internal/classify"
	"pathfinder/internal/config"
	"pathfinder/internal/crawlstate"
	"pathfinder/internal/export"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/merge"
	"pathfinder/internal/notify"
	"pathfinder/internal/pipeline"
	"pathfinder/internal/publish"
	"pathfinder/internal/sources"
	"pathfinder/internal/sources/apec"
	"pathfinder/internal/sources/francetravail"
	"pathfinder/internal/sources/wttj"
	"pathfinder/internal/store"
	"pathfinder/internal/throttle"
	"pathfinder/pkg/models"
)

// app holds the services shared by every command
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	layout   store.Layout
	registry *sources.Registry
	deps     sources.Deps
	runner   *pipeline.Runner

	browser  *browser.Manager
	mirror   *crawlstate.RedisMirror
	exporter *export.Exporter
	telegram *notify.Telegram
}

func newRegistry() *sources.Registry {
	r := sources.NewRegistry()
	r.Register(models.SourceFranceTravail, francetravail.New)
	r.Register(models.SourceWTTJ, wttj.New)
	r.Register(models.SourceAPEC, apec.New)
	return r
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	rules, err := extract.LoadRules(cfg.Heuristics.File)
	if err != nil {
		return nil, err
	}
	tiers, err := classify.LoadTiers(cfg.Heuristics.File)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		layout:   store.Layout{Root: cfg.DataDir},
		registry: newRegistry(),
		browser:  browser.NewManager(cfg, logger),
	}
	a.deps = sources.Deps{
		Config:  cfg,
		Logger:  logger,
		Rules:   rules,
		Limiter: throttle.NewLimiter(cfg, logger),
		Browser: a.browser,
	}

	var mirror crawlstate.Mirror
	if cfg.Redis.Enabled {
		if m, err := a.connectMirror(ctx); err != nil {
			logger.Warn("Redis mirror unavailable, using local crawl state only", logging.Fields{"error": err.Error()})
		} else {
			a.mirror = m
			mirror = m
		}
	}

	sinks, err := a.sinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = pipeline.NewRunner(pipeline.Options{
		Layout: a.layout,
		Build: func(src models.Source) (sources.Source, error) {
			return a.registry.Build(src, a.deps)
		},
		Mirror:       mirror,
		Merger:       merge.NewEngine(a.layout, rules, classify.NewEngine(rules, tiers), logger),
		Sinks:        sinks,
		ChainTimeout: cfg.Pipeline.ChainTimeout,
		Logger:       logger,
	})
	return a, nil
}

func (a *app) connectMirror(ctx context.Context) (*crawlstate.RedisMirror, error) {
	m, err := crawlstate.NewRedisMirror(a.cfg)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// sinks builds the enabled post-merge destinations
func (a *app) sinks(ctx context.Context) ([]pipeline.Sink, error) {
	var sinks []pipeline.Sink

	if a.cfg.Spaces.Enabled {
		p, err := publish.NewPublisher(a.cfg, a.layout.Canonical(), a.logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}

	if a.cfg.Postgres.Enabled {
		e, err := export.Connect(ctx, a.cfg.Postgres.URL, a.cfg.Postgres.Table, a.logger)
		if err != nil {
			return nil, err
		}
		a.exporter = e
		sinks = append(sinks, e)
	}

	if a.cfg.Telegram.Enabled {
		t, err := notify.NewTelegram(a.cfg.Telegram.Token, a.cfg.Telegram.ChatID, a.logger)
		if err != nil {
			return nil, err
		}
		a.telegram = t
		sinks = append(sinks, t)
	}
	return sinks, nil
}

func (a *app) enabledSources() ([]models.Source, error) {
	srcs := make([]models.Source, 0, len(a.cfg.Pipeline.Sources))
	for _, slug := range a.cfg.Pipeline.Sources {
		src, err := models.ParseSource(slug)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}
	return srcs, nil
}

// finish prints the report and sends it when the sinks did not run
func (a *app) finish(ctx context.Context, report *pipeline.Report) int {
	fmt.Fprint(os.Stdout, report.Text())

	if report.MergeErr != nil && a.telegram != nil && ctx.Err() == nil {
		if err := a.telegram.Notify(ctx, report.Text()); err != nil {
			a.logger.Warn("Failed to send failure report", logging.Fields{"error": err.Error()})
		}
	}
	if report.Failed() {
		return 1
	}
	return 0
}

func (a *app) Close() {
	a.browser.Cleanup()
	if a.mirror != nil {
		_ = a.mirror.Close()
	}
	if a.exporter != nil {
		a.exporter.Close()
	}
}
