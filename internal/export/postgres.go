// Package export upserts the canonical table into Postgres.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pathfinder/internal/logging"
	"pathfinder/internal/pipeline"
	"pathfinder/pkg/models"
)

// batchSize bounds the statements queued per round trip
const batchSize = 500

var columns = []string{
	"url", "title", "company", "city", "description", "annual_salary", "contract",
	"remote", "level", "tech_stack", "experience_years", "published_at", "expired_at",
	"source", "run_id", "exported_at",
}

// Exporter keeps a Postgres table in sync with the canonical file, keyed by URL
type Exporter struct {
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger logging.Logger
}

// Connect opens a pool and creates the table when missing
func Connect(ctx context.Context, url, table string, logger logging.Logger) (*Exporter, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = time.Hour
	// poolers in transaction mode do not keep prepared statements
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	e := &Exporter{pool: pool, table: tableIdentifier(table), logger: logger}
	if _, err := pool.Exec(ctx, e.createSQL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return e, nil
}

func (e *Exporter) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

func (e *Exporter) Name() string { return "postgres" }

// Deliver upserts every row in one transaction
func (e *Exporter) Deliver(ctx context.Context, report *pipeline.Report, rows []models.CanonicalPosting) error {
	start := time.Now()
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin export: %w", err)
	}
	defer tx.Rollback(ctx)

	query := e.upsertSQL()
	now := time.Now().UTC()
	for from := 0; from < len(rows); from += batchSize {
		to := min(from+batchSize, len(rows))
		batch := &pgx.Batch{}
		for i := from; i < to; i++ {
			batch.Queue(query, rowArgs(rows[i], report.RunID, now)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert rows %d-%d: %w", from, to-1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	e.logger.Info("Canonical table exported", logging.Fields{
		"table":    e.table.Sanitize(),
		"rows":     len(rows),
		"duration": time.Since(start).String(),
	})
	return nil
}

// tableIdentifier accepts "schema.table" or "table"
func tableIdentifier(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

func (e *Exporter) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	city TEXT NOT NULL,
	description TEXT NOT NULL,
	annual_salary INTEGER,
	contract TEXT NOT NULL,
	remote TEXT NOT NULL,
	level TEXT NOT NULL,
	tech_stack TEXT[] NOT NULL,
	experience_years INTEGER,
	published_at DATE,
	expired_at DATE,
	source TEXT NOT NULL,
	run_id TEXT NOT NULL,
	exported_at TIMESTAMPTZ NOT NULL
)`, e.table.Sanitize())
}

// upsertSQL keeps the first recorded expiry date, like the merge does
func (e *Exporter) upsertSQL() string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch c {
		case "url":
		case "expired_at":
			updates = append(updates, "expired_at = COALESCE(t.expired_at, EXCLUDED.expired_at)")
		default:
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) ON CONFLICT (url) DO UPDATE SET %s",
		e.table.Sanitize(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func rowArgs(p models.CanonicalPosting, runID string, now time.Time) []any {
	stack := p.TechStack
	if stack == nil {
		stack = []string{}
	}
	return []any{
		p.URL, p.Title, p.Company, p.City, p.Description, p.AnnualSalary,
		string(p.Contract), string(p.Remote), string(p.Level), stack,
		p.ExperienceYears, p.PublishedAt, p.ExpiredAt, string(p.Source), runID, now,
	}
}
