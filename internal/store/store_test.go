package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

func TestReadAllToleratesMissingColumnsAndNulls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean.csv")
	content := "\ufeffTitre,Entreprise,Ville,Salaire_Annuel,Type_Contrat,URL,Date_Publication\n" +
		"Data Analyst,ACME,Paris,45000.0,CDI,https://example.com/a,2026-01-13\n" +
		"\"Analyste, BI\",nan,Lyon,,nan,https://example.com/b,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := ReadAll(path, CanonicalCodec)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Data Analyst", first.Title)
	require.NotNil(t, first.AnnualSalary)
	assert.Equal(t, 45000, *first.AnnualSalary)
	assert.Equal(t, models.ContractCDI, first.Contract)
	assert.Equal(t, models.RemoteUnspecified, first.Remote)
	assert.Equal(t, models.LevelUnspecified, first.Level)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC), *first.PublishedAt)
	assert.Nil(t, first.ExpiredAt)

	second := rows[1]
	assert.Equal(t, "Analyste, BI", second.Title)
	assert.Equal(t, "", second.Company)
	assert.Nil(t, second.AnnualSalary)
	assert.Equal(t, models.ContractUnspecified, second.Contract)
	assert.Nil(t, second.PublishedAt)
}

func TestReadAllMissingFile(t *testing.T) {
	_, err := ReadAll(filepath.Join(t.TempDir(), "missing.csv"), CanonicalCodec)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clean", "global.csv")
	salary := 52000
	published := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	records := []models.CanonicalPosting{{
		Title:        "Data Scientist",
		Company:      "ACME",
		City:         "Lyon",
		AnnualSalary: &salary,
		Contract:     models.ContractCDI,
		Remote:       models.RemoteHybrid,
		Level:        models.LevelSenior,
		TechStack:    []string{"Python", "SQL"},
		PublishedAt:  &published,
		Source:       models.SourceWTTJ,
		URL:          "https://example.com/jobs/1",
		Description:  "line one\nline \"two\"",
	}}

	require.NoError(t, WriteAtomic(path, CanonicalCodec, records))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "temporary file must be gone")

	got, err := ReadAll(path, CanonicalCodec)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	t.Run("empty table leaves the file untouched", func(t *testing.T) {
		err := WriteAtomic(path, CanonicalCodec, nil)
		assert.ErrorIs(t, err, utils.ErrEmptyTable)

		got, err := ReadAll(path, CanonicalCodec)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "links.csv")
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a, err := OpenAppender(path, LinkCodec)
	require.NoError(t, err)
	require.NoError(t, a.Append(models.Link{ID: "1", URL: "https://example.com/1", Source: models.SourceAPEC, DiscoveredAt: now}))
	assert.Equal(t, 1, a.Count())
	require.NoError(t, a.Close())

	// reopening must not repeat the header
	a, err = OpenAppender(path, LinkCodec)
	require.NoError(t, err)
	require.NoError(t, a.Append(models.Link{ID: "2", URL: "https://example.com/2", Source: models.SourceAPEC, DiscoveredAt: now}))
	require.NoError(t, a.Close())

	links, err := ReadAll(path, LinkCodec)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "1", links[0].ID)
	assert.Equal(t, "2", links[1].ID)
	assert.Equal(t, now, links[1].DiscoveredAt)
}

func TestAppenderRecordIsOnDiskBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.csv")

	a, err := OpenAppender(path, LinkCodec)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Append(models.Link{ID: "1", URL: "https://example.com/1", Source: models.SourceWTTJ}))

	links, err := ReadAll(path, LinkCodec)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "1", links[0].ID)

	// a closed file can no longer be synced
	require.NoError(t, a.f.Close())
	assert.Error(t, a.Append(models.Link{ID: "2", URL: "https://example.com/2"}))
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "data"}
	assert.Equal(t, filepath.Join("data", "raw", "offres_wttj_url.csv"), l.Raw(models.SourceWTTJ))
	assert.Equal(t, filepath.Join("data", "enriched", "offres_apec_full.csv"), l.Enriched(models.SourceAPEC))
	assert.Equal(t, filepath.Join("data", "clean", "offres_francetravail_clean.csv"), l.Clean(models.SourceFranceTravail))
	assert.Equal(t, filepath.Join("data", "clean", "global_job_market.csv"), l.Canonical())
}
