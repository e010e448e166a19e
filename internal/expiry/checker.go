// Package expiry re-probes active postings and records the day they went
// offline. Records are only ever moved from active to expired here; the
// manual override in reset.go is the one way back.
package expiry

import (
	"context"
	"errors"
	"time"

	"pathfinder/internal/logging"
	"pathfinder/internal/sources"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// Prober decides whether a posting is still online
type Prober interface {
	Probe(ctx context.Context, target models.ProbeTarget) (sources.Verdict, error)
}

// Record is a pointer to a record type the checker can probe and mark
type Record[T any] interface {
	*T
	models.Expirable
}

// Summary counts the outcome of one check
type Summary struct {
	Total    int           `json:"total"`
	Checked  int           `json:"checked"`
	Expired  int           `json:"expired"`
	Active   int           `json:"active"`
	Unknown  int           `json:"unknown"`
	Skipped  int           `json:"skipped"`
	Flushes  int           `json:"flushes"`
	Duration time.Duration `json:"duration"`
}

// Checker probes records through the prober of their source
type Checker struct {
	probers    map[models.Source]Prober
	flushEvery int
	logger     logging.Logger
	now        func() time.Time
}

// NewChecker creates a checker that saves after every flushEvery newly
// expired records
func NewChecker(probers map[models.Source]Prober, flushEvery int, logger logging.Logger) *Checker {
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Checker{
		probers:    probers,
		flushEvery: flushEvery,
		logger:     logger.WithField("stage", "expiry"),
		now:        time.Now,
	}
}

// Check probes every active record of records, marks the expired ones with
// today's date and calls save with the whole slice after each batch and once
// at the end when anything changed. A probe error or an Unknown verdict leaves
// the record active. On cancellation the work done so far is saved before
// returning the context error.
func Check[T any, P Record[T]](ctx context.Context, c *Checker, records []T, save func([]T) error) (sum Summary, err error) {
	start := c.now()
	sum.Total = len(records)
	defer func() {
		sum.Duration = c.now().Sub(start)
		c.logSummary(sum, err)
	}()

	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		if err := save(records); err != nil {
			return utils.NewStorageError("save expiry batch", err)
		}
		sum.Flushes++
		pending = 0
		return nil
	}

	for i := range records {
		rec := P(&records[i])
		if rec.Expired() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		target := rec.Target()
		prober, ok := c.probers[target.Source]
		if !ok {
			sum.Skipped++
			continue
		}

		sum.Checked++
		verdict, perr := prober.Probe(ctx, target)
		if perr != nil {
			if errors.Is(perr, context.Canceled) || errors.Is(perr, context.DeadlineExceeded) {
				sum.Checked--
				break
			}
			c.logger.Warn("Probe failed, keeping posting active", logging.Fields{
				"url":   target.URL,
				"error": perr.Error(),
			})
		}

		switch verdict {
		case sources.Expired:
			rec.MarkExpired(c.now())
			sum.Expired++
			pending++
			c.logger.Info("Posting expired", logging.Fields{"url": target.URL, "source": string(target.Source)})
		case sources.Active:
			sum.Active++
		default:
			sum.Unknown++
		}

		if pending >= c.flushEvery {
			if err := flush(); err != nil {
				return sum, err
			}
		}
	}

	if err := flush(); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}

func (c *Checker) logSummary(sum Summary, err error) {
	fields := logging.Fields{
		"total":    sum.Total,
		"checked":  sum.Checked,
		"expired":  sum.Expired,
		"active":   sum.Active,
		"unknown":  sum.Unknown,
		"skipped":  sum.Skipped,
		"flushes":  sum.Flushes,
		"duration": utils.FormatDuration(sum.Duration),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.Warn("Expiry check interrupted", fields)
		return
	}
	c.logger.Info("Expiry check completed", fields)
}
