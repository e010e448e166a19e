package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/robfig/cron/v3"

	"pathfinder/internal/expiry"
	"pathfinder/internal/logging"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// checkCanonical re-probes the active rows of the canonical table, one source
// at a time with that source's batch size
func (a *app) checkCanonical(ctx context.Context) (expiry.Summary, error) {
	var total expiry.Summary
	path := a.layout.Canonical()

	rows, err := store.ReadAll(path, store.CanonicalCodec)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return total, fmt.Errorf("no canonical table at %s, run a merge first", path)
		}
		return total, err
	}
	save := func(all []models.CanonicalPosting) error {
		return store.WriteAtomic(path, store.CanonicalCodec, all)
	}

	srcs, err := a.enabledSources()
	if err != nil {
		return total, err
	}
	for _, src := range srcs {
		conn, err := a.registry.Build(src, a.deps)
		if err != nil {
			if utils.IsChainFatal(err) {
				a.logger.Error("Skipping expiry check of source", logging.Fields{"source": src.Slug(), "error": err.Error()})
				continue
			}
			return total, err
		}

		checker := expiry.NewChecker(map[models.Source]expiry.Prober{src: conn}, conn.FlushEvery(), a.logger.WithField("source", src.Slug()))
		sum, err := expiry.Check(ctx, checker, rows, save)
		_ = conn.Close()

		total.Checked += sum.Checked
		total.Expired += sum.Expired
		total.Active += sum.Active
		total.Unknown += sum.Unknown
		total.Flushes += sum.Flushes
		total.Duration += sum.Duration
		if err != nil {
			return total, err
		}
	}
	total.Total = len(rows)

	a.logger.Info("Canonical expiry check completed", logging.Fields{
		"total":    total.Total,
		"checked":  total.Checked,
		"expired":  total.Expired,
		"active":   total.Active,
		"unknown":  total.Unknown,
		"duration": utils.FormatDuration(total.Duration),
	})
	return total, nil
}

// scheduleExpiry runs checkCanonical on spec until ctx is cancelled. A run
// still in progress when the next one is due is skipped.
func (a *app) scheduleExpiry(ctx context.Context, spec string) error {
	clog := cronLogger{a.logger.WithField("component", "scheduler")}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.SkipIfStillRunning(clog)))

	_, err := c.AddFunc(spec, func() {
		if _, err := a.checkCanonical(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Scheduled expiry check failed", logging.Fields{"error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	c.Start()
	a.logger.Info("Expiry scheduler started", logging.Fields{"schedule": spec})

	<-ctx.Done()
	a.logger.Info("Stopping expiry scheduler")
	<-c.Stop().Done()
	return nil
}

// resetExpiry is the manual override. Expiry dates live in the enriched and
// clean tiers of every source as well as in the canonical table; all of them
// are cleared so the next merge does not bring the dates back.
func (a *app) resetExpiry(all bool) error {
	now := time.Now()
	for _, src := range models.AllSources {
		n, err := resetTable(a.layout.Enriched(src), store.PostingCodec, all, now)
		if err != nil {
			return err
		}
		m, err := resetTable(a.layout.Clean(src), store.CanonicalCodec, all, now)
		if err != nil {
			return err
		}
		if n+m > 0 {
			a.logger.Debug("Source expiry dates cleared", logging.Fields{
				"source":   src.Slug(),
				"enriched": n,
				"clean":    m,
			})
		}
	}

	revived, err := resetTable(a.layout.Canonical(), store.CanonicalCodec, all, now)
	if err != nil {
		return err
	}
	a.logger.Info("Expiry dates cleared", logging.Fields{"revived": revived, "all": all})
	return nil
}

// resetTable clears expiry dates in one table and rewrites it atomically when
// anything changed. A missing table is not an error.
func resetTable[T any, P expiry.Record[T]](path string, codec store.Codec[T], all bool, now time.Time) (int, error) {
	rows, err := store.ReadAll(path, codec)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	revived := expiry.Reset[T, P](rows, all, now)
	if revived == 0 {
		return 0, nil
	}
	if err := store.WriteAtomic(path, codec, rows); err != nil {
		return 0, fmt.Errorf("reset %s: %w", path, err)
	}
	return revived, nil
}

// cronLogger routes cron's key/value logging into the application logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	f := kvFields(keysAndValues)
	f["error"] = err.Error()
	l.logger.Error(msg, f)
}

func kvFields(kv []interface{}) logging.Fields {
	f := make(logging.Fields, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
