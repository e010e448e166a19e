package pipeline

import (
	"fmt"
	"strings"
	"time"

	"pathfinder/internal/logging"
	"pathfinder/internal/merge"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// Stage names
const (
	StageCrawl  = "crawl"
	StageEnrich = "enrich"
	StageUpdate = "update"
	StageClean  = "clean"
)

// StageSummary counts what one stage of a chain did. It is logged when the
// stage ends, whatever the outcome.
type StageSummary struct {
	Source     models.Source `json:"source"`
	Stage      string        `json:"stage"`
	New        int           `json:"new"`
	Duplicates int           `json:"duplicates"`
	Withdrawn  int           `json:"withdrawn"`
	Failed     int           `json:"failed"`
	Expired    int           `json:"expired"`
	Active     int           `json:"active"`
	Unknown    int           `json:"unknown"`
	Rows       int           `json:"rows"`
	Dropped    int           `json:"dropped"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
}

func (s StageSummary) fields() logging.Fields {
	f := logging.Fields{
		"source":   s.Source.Slug(),
		"stage":    s.Stage,
		"duration": utils.FormatDuration(s.Duration),
	}
	switch s.Stage {
	case StageCrawl:
		f["new"] = s.New
		f["duplicates"] = s.Duplicates
	case StageEnrich:
		f["new"] = s.New
		f["withdrawn"] = s.Withdrawn
		f["failed"] = s.Failed
	case StageUpdate:
		f["expired"] = s.Expired
		f["active"] = s.Active
		f["unknown"] = s.Unknown
	case StageClean:
		f["rows"] = s.Rows
		f["dropped"] = s.Dropped
	}
	if s.Err != "" {
		f["error"] = s.Err
	}
	return f
}

// ChainReport is the outcome of one source chain
type ChainReport struct {
	Source models.Source  `json:"source"`
	Stages []StageSummary `json:"stages"`
	Err    error          `json:"-"`
}

// Report is the outcome of a run
type Report struct {
	RunID    string        `json:"run_id"`
	Chains   []ChainReport `json:"chains"`
	Merge    *merge.Stats  `json:"merge,omitempty"`
	MergeErr error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether any chain or the merge failed
func (r *Report) Failed() bool {
	if r.MergeErr != nil {
		return true
	}
	for _, c := range r.Chains {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Text renders the report as a short plain-text message
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PathFinder run %s (%s)\n", r.RunID, utils.FormatDuration(r.Duration))
	for _, c := range r.Chains {
		status := "ok"
		if c.Err != nil {
			status = "failed: " + c.Err.Error()
		}
		fmt.Fprintf(&b, "\n%s: %s\n", c.Source, status)
		for _, s := range c.Stages {
			switch s.Stage {
			case StageCrawl:
				fmt.Fprintf(&b, "  crawl: %d new, %d duplicates\n", s.New, s.Duplicates)
			case StageEnrich:
				fmt.Fprintf(&b, "  enrich: %d new, %d withdrawn, %d failed\n", s.New, s.Withdrawn, s.Failed)
			case StageUpdate:
				fmt.Fprintf(&b, "  update: %d expired, %d active\n", s.Expired, s.Active+s.Unknown)
			case StageClean:
				fmt.Fprintf(&b, "  clean: %d rows, %d dropped\n", s.Rows, s.Dropped)
			}
		}
	}
	switch {
	case r.MergeErr != nil:
		fmt.Fprintf(&b, "\nmerge: failed: %s\n", r.MergeErr)
	case r.Merge != nil:
		fmt.Fprintf(&b, "\nmerge: %d rows, %d duplicates removed\n", r.Merge.Rows, r.Merge.Duplicates)
		for _, src := range models.AllSources {
			if s, ok := r.Merge.PerSource[src]; ok {
				fmt.Fprintf(&b, "  %s: %d rows, %d with salary\n", src, s.Rows, s.WithSalary)
			}
		}
	}
	return b.String()
}
