package store

import (
	"fmt"
	"path/filepath"

	"pathfinder/pkg/models"
)

// Layout resolves the file of every tier under one data directory
type Layout struct {
	Root string
}

// Raw is the discovered-links tier of a source
func (l Layout) Raw(src models.Source) string {
	return filepath.Join(l.Root, "raw", fmt.Sprintf("offres_%s_url.csv", src.Slug()))
}

// Enriched is the detail-record tier of a source
func (l Layout) Enriched(src models.Source) string {
	return filepath.Join(l.Root, "enriched", fmt.Sprintf("offres_%s_full.csv", src.Slug()))
}

// Clean is the normalized tier of a source
func (l Layout) Clean(src models.Source) string {
	return filepath.Join(l.Root, "clean", fmt.Sprintf("offres_%s_clean.csv", src.Slug()))
}

// Canonical is the merged table
func (l Layout) Canonical() string {
	return filepath.Join(l.Root, "clean", "global_job_market.csv")
}
