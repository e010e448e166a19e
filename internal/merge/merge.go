// Package merge builds the canonical table from the per-source clean tables.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"pathfinder/internal/classify"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// SourceStats counts the rows a source contributes to the canonical table
type SourceStats struct {
	Rows       int `json:"rows"`
	WithSalary int `json:"with_salary"`
}

// Stats describes one merge
type Stats struct {
	HistoryRows int                           `json:"history_rows"`
	InputRows   int                           `json:"input_rows"`
	Rows        int                           `json:"rows"`
	Duplicates  int                           `json:"duplicates"`
	Missing     []models.Source               `json:"missing,omitempty"`
	PerSource   map[models.Source]SourceStats `json:"per_source"`
	Levels      map[models.Level]int          `json:"levels"`
	Duration    time.Duration                 `json:"duration"`
}

// Engine merges clean tables into the canonical file
type Engine struct {
	layout     store.Layout
	rules      *extract.Rules
	classifier *classify.Engine
	logger     logging.Logger
}

// NewEngine creates a merge engine writing under layout
func NewEngine(layout store.Layout, rules *extract.Rules, classifier *classify.Engine, logger logging.Logger) *Engine {
	return &Engine{
		layout:     layout,
		rules:      rules,
		classifier: classifier,
		logger:     logger.WithField("stage", "merge"),
	}
}

// Run merges the existing canonical table with the clean tables of srcs and
// atomically replaces the canonical file. The existing table is read first so
// expiry dates already recorded survive. Missing clean tables are skipped; the
// merge fails with utils.ErrNoSources when none exists.
func (e *Engine) Run(ctx context.Context, srcs []models.Source) (stats Stats, err error) {
	start := time.Now()
	stats.PerSource = make(map[models.Source]SourceStats)
	stats.Levels = make(map[models.Level]int)
	defer func() {
		stats.Duration = time.Since(start)
		e.logSummary(stats, err)
	}()

	history, err := store.ReadAll(e.layout.Canonical(), store.CanonicalCodec)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stats, utils.NewStorageError("read canonical table", err)
	}
	stats.HistoryRows = len(history)

	batches := [][]models.CanonicalPosting{history}
	loaded := 0
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rows, err := store.ReadAll(e.layout.Clean(src), store.CanonicalCodec)
		if err != nil {
			stats.Missing = append(stats.Missing, src)
			e.logger.Warn("Clean table unavailable, skipping source", logging.Fields{
				"source": src.Slug(),
				"error":  err.Error(),
			})
			continue
		}
		for i := range rows {
			if rows[i].Source == "" {
				rows[i].Source = src
			}
		}
		loaded++
		stats.InputRows += len(rows)
		batches = append(batches, rows)
	}
	if loaded == 0 {
		return stats, utils.ErrNoSources
	}

	merged, dupes := Combine(batches...)
	stats.Duplicates = dupes
	for i := range merged {
		e.Normalize(&merged[i])
		e.classifier.Apply(&merged[i])

		s := stats.PerSource[merged[i].Source]
		s.Rows++
		if merged[i].AnnualSalary != nil {
			s.WithSalary++
		}
		stats.PerSource[merged[i].Source] = s
		stats.Levels[merged[i].Level]++
	}
	stats.Rows = len(merged)

	if err := store.WriteAtomic(e.layout.Canonical(), store.CanonicalCodec, merged); err != nil {
		return stats, fmt.Errorf("write canonical table: %w", err)
	}
	return stats, nil
}

// Combine concatenates batches and keeps one row per URL, in order of first
// appearance. The last row seen for a URL provides the fields, except that the
// earliest publication date and the first recorded expiry date are kept.
// Rows without a URL are dropped. It returns the merged rows and the number of
// duplicates folded away.
func Combine(batches ...[]models.CanonicalPosting) ([]models.CanonicalPosting, int) {
	index := make(map[string]int)
	var out []models.CanonicalPosting
	dupes := 0

	for _, batch := range batches {
		for _, row := range batch {
			key := strings.TrimSpace(row.URL)
			if key == "" {
				continue
			}
			row.URL = key

			i, seen := index[key]
			if !seen {
				index[key] = len(out)
				out = append(out, row)
				continue
			}

			dupes++
			prev := out[i]
			row.PublishedAt = earliest(prev.PublishedAt, row.PublishedAt)
			if prev.ExpiredAt != nil {
				row.ExpiredAt = prev.ExpiredAt
			}
			out[i] = row
		}
	}
	return out, dupes
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	}
	return a
}

// Normalize applies the cross-source cleanups: contract vocabulary, quote
// stripping, null spellings and city spelling
func (e *Engine) Normalize(p *models.CanonicalPosting) {
	p.Title = extract.OrUnspecified(extract.CleanLabel(p.Title), models.Unspecified)
	p.Company = extract.OrUnspecified(extract.CleanLabel(p.Company), models.Unspecified)
	p.Description = extract.CleanText(p.Description)
	p.Contract = extract.NormalizeContract(string(p.Contract))

	city := extract.CleanLabel(p.City)
	switch city {
	case "", models.Unspecified:
		p.City = models.Unspecified
	case models.DefaultCity:
		p.City = city
	default:
		loc := e.rules.ParseLocation(city)
		if loc.City != "" {
			city = loc.City
		}
		p.City = city
		if p.Department == "" {
			p.Department = loc.Department
		}
	}
	p.Department = strings.ToUpper(extract.CleanLabel(p.Department))

	if extract.CleanLabel(string(p.Remote)) == "" {
		p.Remote = models.RemoteUnspecified
	}
}

func (e *Engine) logSummary(stats Stats, err error) {
	fields := logging.Fields{
		"history_rows": stats.HistoryRows,
		"input_rows":   stats.InputRows,
		"rows":         stats.Rows,
		"duplicates":   stats.Duplicates,
		"duration":     utils.FormatDuration(stats.Duration),
	}
	for src, s := range stats.PerSource {
		fields[src.Slug()+"_rows"] = s.Rows
		fields[src.Slug()+"_with_salary"] = s.WithSalary
	}
	if len(stats.Missing) > 0 {
		fields["missing"] = stats.Missing
	}
	if err != nil {
		fields["error"] = err.Error()
		e.logger.Error("Merge finished with errors", fields)
		return
	}
	e.logger.Info("Merge completed", fields)
}
