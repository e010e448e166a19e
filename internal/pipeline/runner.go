// Package pipeline runs the per-source chains in parallel, joins them and
// merges their clean tables into the canonical file.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pathfinder/internal/crawlstate"
	"pathfinder/internal/logging"
	"pathfinder/internal/merge"
	"pathfinder/internal/sources"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// Sink receives the canonical table after a successful merge
type Sink interface {
	Name() string
	Deliver(ctx context.Context, report *Report, rows []models.CanonicalPosting) error
}

// Builder creates the connector of a source
type Builder func(src models.Source) (sources.Source, error)

// Options configures a Runner
type Options struct {
	Layout       store.Layout
	Build        Builder
	Mirror       crawlstate.Mirror
	Merger       *merge.Engine
	Sinks        []Sink
	ChainTimeout time.Duration
	Logger       logging.Logger
}

// Runner executes chains and merges
type Runner struct {
	opts   Options
	logger logging.Logger
}

func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, logger: opts.Logger}
}

// Run starts one chain per source, waits for all of them and merges. A failed
// chain does not stop the others, and the merge uses whatever clean tables
// exist. Nothing is merged after an interruption.
func (r *Runner) Run(ctx context.Context, srcs []models.Source) *Report {
	start := time.Now()
	report := &Report{RunID: utils.GenerateRunID()}
	logger := r.logger.WithField("run_id", report.RunID)
	logger.Info("Run started", logging.Fields{"sources": slugs(srcs)})

	report.Chains = make([]ChainReport, len(srcs))
	var g errgroup.Group
	for i, src := range srcs {
		g.Go(func() error {
			report.Chains[i] = r.runChain(ctx, src, logger)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		r.mergeInto(ctx, report, srcs, logger, start)
	} else {
		report.MergeErr = ctx.Err()
	}

	report.Duration = time.Since(start)
	logger.Info("Run finished", logging.Fields{
		"failed":   report.Failed(),
		"duration": utils.FormatDuration(report.Duration),
	})
	return report
}

// RunChain runs the chain of a single source
func (r *Runner) RunChain(ctx context.Context, src models.Source) *Report {
	start := time.Now()
	report := &Report{RunID: utils.GenerateRunID()}
	logger := r.logger.WithField("run_id", report.RunID)
	report.Chains = []ChainReport{r.runChain(ctx, src, logger)}
	report.Duration = time.Since(start)
	return report
}

// Merge merges the existing clean tables and delivers the result to the sinks
func (r *Runner) Merge(ctx context.Context, srcs []models.Source) *Report {
	start := time.Now()
	report := &Report{RunID: utils.GenerateRunID()}
	logger := r.logger.WithField("run_id", report.RunID)
	r.mergeInto(ctx, report, srcs, logger, start)
	report.Duration = time.Since(start)
	return report
}

func (r *Runner) runChain(ctx context.Context, src models.Source, logger logging.Logger) (rep ChainReport) {
	rep.Source = src
	logger = logger.WithFields(logging.Fields{"chain": src.Slug()})

	if r.opts.ChainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ChainTimeout)
		defer cancel()
	}

	conn, err := r.opts.Build(src)
	if err != nil {
		rep.Err = err
		logger.Error("Failed to build connector", logging.Fields{"error": err.Error()})
		return rep
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close connector", logging.Fields{"error": err.Error()})
		}
	}()

	tracker, err := crawlstate.Load(ctx, r.opts.Layout, src, r.opts.Mirror, logger)
	if err != nil {
		rep.Err = err
		return rep
	}

	c := &chain{
		src:        conn,
		layout:     r.opts.Layout,
		tracker:    tracker,
		logger:     logger,
		prefetched: make(map[string]*models.Posting),
	}
	stages := []struct {
		name string
		fn   func(context.Context, *StageSummary) error
	}{
		{StageCrawl, c.crawl},
		{StageEnrich, c.enrich},
		{StageUpdate, c.update},
		{StageClean, c.clean},
	}
	for _, s := range stages {
		sum, err := c.stage(s.name, func(sum *StageSummary) error { return s.fn(ctx, sum) })
		rep.Stages = append(rep.Stages, sum)
		if err != nil {
			rep.Err = err
			if utils.IsChainFatal(err) {
				logger.Error("Chain stopped", logging.Fields{"stage": s.name, "error": err.Error()})
			}
			return rep
		}
	}
	return rep
}

func (r *Runner) mergeInto(ctx context.Context, report *Report, srcs []models.Source, logger logging.Logger, start time.Time) {
	stats, err := r.opts.Merger.Run(ctx, srcs)
	report.Merge = &stats
	report.Duration = time.Since(start)
	if err != nil {
		report.MergeErr = err
		return
	}
	if len(r.opts.Sinks) == 0 {
		return
	}

	rows, err := store.ReadAll(r.opts.Layout.Canonical(), store.CanonicalCodec)
	if err != nil {
		logger.Error("Failed to read canonical table for delivery", logging.Fields{"error": err.Error()})
		return
	}
	for _, sink := range r.opts.Sinks {
		if err := sink.Deliver(ctx, report, rows); err != nil {
			logger.Error("Sink delivery failed", logging.Fields{"sink": sink.Name(), "error": err.Error()})
			continue
		}
		logger.Info("Sink delivered", logging.Fields{"sink": sink.Name(), "rows": len(rows)})
	}
}

func slugs(srcs []models.Source) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.Slug()
	}
	return out
}
