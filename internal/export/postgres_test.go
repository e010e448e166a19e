package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/pkg/models"
)

func TestUpsertSQL(t *testing.T) {
	e := &Exporter{table: tableIdentifier("analytics.job_postings")}
	q := e.upsertSQL()

	assert.True(t, strings.HasPrefix(q, `INSERT INTO "analytics"."job_postings" AS t (url, title,`))
	assert.Contains(t, q, "$16)")
	assert.Contains(t, q, "ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title")
	assert.Contains(t, q, "expired_at = COALESCE(t.expired_at, EXCLUDED.expired_at)")
	assert.NotContains(t, q, "url = EXCLUDED.url")
}

func TestCreateSQLQuotesTable(t *testing.T) {
	e := &Exporter{table: tableIdentifier(`jobs"; DROP TABLE x; --`)}
	assert.Contains(t, e.createSQL(), `CREATE TABLE IF NOT EXISTS "jobs""; DROP TABLE x; --" (`)
}

func TestRowArgs(t *testing.T) {
	salary := 52000
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := models.CanonicalPosting{
		URL:          "https://example.test/1",
		Title:        "Data Analyst",
		Contract:     models.ContractCDI,
		Remote:       models.RemoteHybrid,
		Level:        models.LevelMid,
		AnnualSalary: &salary,
		Source:       models.SourceAPEC,
	}

	args := rowArgs(p, "run-9", now)
	require.Len(t, args, len(columns))
	assert.Equal(t, "https://example.test/1", args[0])
	assert.Equal(t, &salary, args[5])
	assert.Equal(t, "CDI", args[6])
	assert.Equal(t, []string{}, args[9])
	assert.Equal(t, "Apec", args[13])
	assert.Equal(t, "run-9", args[14])
	assert.Equal(t, now, args[15])
}
