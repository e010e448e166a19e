package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/classify"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

func day(s string) *time.Time {
	t, err := time.Parse(extract.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func intPtr(v int) *int { return &v }

func newEngine(t *testing.T) (*Engine, store.Layout) {
	t.Helper()
	layout := store.Layout{Root: t.TempDir()}
	rules := extract.DefaultRules()
	return NewEngine(layout, rules, classify.NewEngine(rules, classify.DefaultTiers()), logging.NewNopLogger()), layout
}

func write(t *testing.T, path string, rows ...models.CanonicalPosting) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, store.WriteAtomic(path, store.CanonicalCodec, rows))
}

func TestCombine(t *testing.T) {
	older := models.CanonicalPosting{URL: "u1", Title: "Old title", PublishedAt: day("2026-01-05")}
	newer := models.CanonicalPosting{URL: " u1 ", Title: "New title", PublishedAt: day("2026-01-09")}
	other := models.CanonicalPosting{URL: "u2", Title: "Other", ExpiredAt: day("2026-02-01")}
	otherAgain := models.CanonicalPosting{URL: "u2", Title: "Other again", ExpiredAt: day("2026-03-01")}
	noURL := models.CanonicalPosting{Title: "dropped"}

	got, dupes := Combine(
		[]models.CanonicalPosting{older, other},
		[]models.CanonicalPosting{newer, noURL, otherAgain},
	)

	require.Len(t, got, 2)
	assert.Equal(t, 2, dupes)

	assert.Equal(t, "u1", got[0].URL)
	assert.Equal(t, "New title", got[0].Title)
	assert.Equal(t, "2026-01-05", extract.FormatDate(got[0].PublishedAt))

	assert.Equal(t, "Other again", got[1].Title)
	assert.Equal(t, "2026-02-01", extract.FormatDate(got[1].ExpiredAt))
}

func TestCombineEarliestPublication(t *testing.T) {
	tests := []struct {
		name      string
		first     *time.Time
		second    *time.Time
		wantFirst string
	}{
		{"later row older", day("2026-01-09"), day("2026-01-02"), "2026-01-02"},
		{"first row older", day("2026-01-02"), day("2026-01-09"), "2026-01-02"},
		{"first missing", nil, day("2026-01-09"), "2026-01-09"},
		{"second missing", day("2026-01-02"), nil, "2026-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Combine([]models.CanonicalPosting{
				{URL: "u", PublishedAt: tt.first},
				{URL: "u", PublishedAt: tt.second},
			})
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantFirst, extract.FormatDate(got[0].PublishedAt))
		})
	}
}

func TestNormalize(t *testing.T) {
	e, _ := newEngine(t)

	p := models.CanonicalPosting{
		Title:    `"Data Analyst"`,
		Company:  "nan",
		City:     "92 - COURBEVOIE",
		Contract: "MIS",
		Remote:   "",
	}
	e.Normalize(&p)

	assert.Equal(t, "Data Analyst", p.Title)
	assert.Equal(t, models.Unspecified, p.Company)
	assert.Equal(t, "Courbevoie", p.City)
	assert.Equal(t, "92", p.Department)
	assert.Equal(t, models.ContractInterim, p.Contract)
	assert.Equal(t, models.RemoteUnspecified, p.Remote)

	p = models.CanonicalPosting{City: models.DefaultCity, Contract: "cdi"}
	e.Normalize(&p)
	assert.Equal(t, models.DefaultCity, p.City)
	assert.Equal(t, models.ContractCDI, p.Contract)
}

func TestRun(t *testing.T) {
	e, layout := newEngine(t)

	write(t, layout.Clean(models.SourceFranceTravail),
		models.CanonicalPosting{
			URL: "https://ft/1", Title: "Data Analyst Junior", Company: "ACME", City: "Paris",
			Contract: models.ContractCDI, Description: "SQL et Python, 6 ans d'expérience",
			PublishedAt: day("2026-01-10"), Source: models.SourceFranceTravail,
		},
		models.CanonicalPosting{
			URL: "https://shared/2", Title: "BI Analyst", Company: "Beta", City: "Niort",
			AnnualSalary: intPtr(45000), PublishedAt: day("2026-01-04"), Source: models.SourceFranceTravail,
		},
	)
	write(t, layout.Clean(models.SourceWTTJ),
		models.CanonicalPosting{
			URL: "https://shared/2", Title: "BI Analyst (H/F)", Company: "BETA", City: "Niort",
			AnnualSalary: intPtr(45000), PublishedAt: day("2026-01-08"), Source: models.SourceWTTJ,
		},
	)

	stats, err := e.Run(context.Background(), []models.Source{
		models.SourceFranceTravail, models.SourceWTTJ, models.SourceAPEC,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.InputRows)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, []models.Source{models.SourceAPEC}, stats.Missing)
	assert.Equal(t, SourceStats{Rows: 1, WithSalary: 0}, stats.PerSource[models.SourceFranceTravail])
	assert.Equal(t, SourceStats{Rows: 1, WithSalary: 1}, stats.PerSource[models.SourceWTTJ])

	rows, err := store.ReadAll(layout.Canonical(), store.CanonicalCodec)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.LevelSenior, rows[0].Level)
	assert.Equal(t, []string{"Python", "SQL"}, rows[0].TechStack)
	require.NotNil(t, rows[0].ExperienceYears)
	assert.Equal(t, 6, *rows[0].ExperienceYears)

	assert.Equal(t, "BI Analyst (H/F)", rows[1].Title)
	assert.Equal(t, models.SourceWTTJ, rows[1].Source)
	assert.Equal(t, "2026-01-04", extract.FormatDate(rows[1].PublishedAt))
	assert.Equal(t, models.LevelSenior, rows[1].Level)
}

func TestRunIsIdempotentAndKeepsExpiry(t *testing.T) {
	e, layout := newEngine(t)
	srcs := []models.Source{models.SourceAPEC}

	write(t, layout.Clean(models.SourceAPEC),
		models.CanonicalPosting{URL: "https://apec/1", Title: "Data Analyst", Company: "ACME", City: "Lyon",
			Contract: models.ContractCDI, PublishedAt: day("2026-01-10"), Source: models.SourceAPEC},
		models.CanonicalPosting{URL: "https://apec/2", Title: "Data Engineer", Company: "ACME", City: "Lille",
			Contract: models.ContractCDI, PublishedAt: day("2026-01-11"), Source: models.SourceAPEC},
	)

	_, err := e.Run(context.Background(), srcs)
	require.NoError(t, err)
	first, err := os.ReadFile(layout.Canonical())
	require.NoError(t, err)

	_, err = e.Run(context.Background(), srcs)
	require.NoError(t, err)
	second, err := os.ReadFile(layout.Canonical())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	// the expiry checker marks a row in the canonical table
	rows, err := store.ReadAll(layout.Canonical(), store.CanonicalCodec)
	require.NoError(t, err)
	rows[0].MarkExpired(time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, store.WriteAtomic(layout.Canonical(), store.CanonicalCodec, rows))

	// the clean table still shows the row as active
	_, err = e.Run(context.Background(), srcs)
	require.NoError(t, err)
	rows, err = store.ReadAll(layout.Canonical(), store.CanonicalCodec)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", extract.FormatDate(rows[0].ExpiredAt))
	assert.Nil(t, rows[1].ExpiredAt)
}

func TestRunWithoutSources(t *testing.T) {
	e, layout := newEngine(t)
	write(t, layout.Canonical(), models.CanonicalPosting{URL: "https://old/1", Title: "Old"})

	_, err := e.Run(context.Background(), models.AllSources)
	assert.True(t, errors.Is(err, utils.ErrNoSources))

	rows, err := store.ReadAll(layout.Canonical(), store.CanonicalCodec)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunKeepsIleDeFranceTier(t *testing.T) {
	e, layout := newEngine(t)

	write(t, layout.Clean(models.SourceAPEC),
		models.CanonicalPosting{URL: "https://apec/raw", Title: "Data Analyst", Company: "ACME",
			City: "93 - MONTREUIL", AnnualSalary: intPtr(45000), Source: models.SourceAPEC},
		models.CanonicalPosting{URL: "https://apec/dept", Title: "Data Analyst", Company: "ACME",
			City: "Noisy-le-Grand", Department: "93", AnnualSalary: intPtr(45000), Source: models.SourceAPEC},
		models.CanonicalPosting{URL: "https://apec/other", Title: "Data Analyst", Company: "ACME",
			City: "Montreuil", AnnualSalary: intPtr(45000), Source: models.SourceAPEC},
	)

	_, err := e.Run(context.Background(), []models.Source{models.SourceAPEC})
	require.NoError(t, err)

	rows, err := store.ReadAll(layout.Canonical(), store.CanonicalCodec)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Montreuil", rows[0].City)
	assert.Equal(t, "93", rows[0].Department)
	assert.Equal(t, models.LevelMid, rows[0].Level)

	assert.Equal(t, "93", rows[1].Department)
	assert.Equal(t, models.LevelMid, rows[1].Level)

	assert.Empty(t, rows[2].Department)
	assert.Equal(t, models.LevelSenior, rows[2].Level)
}
