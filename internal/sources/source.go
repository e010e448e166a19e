// Package sources defines the connector contract shared by every job board.
package sources

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"pathfinder/internal/browser"
	"pathfinder/internal/config"
	"pathfinder/internal/crawlstate"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/throttle"
	"pathfinder/pkg/models"
)

// Verdict is the outcome of a liveness probe
type Verdict int

const (
	// Unknown means the probe could not decide; callers treat it as active
	Unknown Verdict = iota
	Active
	Expired
)

func (v Verdict) String() string {
	switch v {
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Source is one job board connector
type Source interface {
	Name() models.Source

	// Discover lazily yields links whose identifier is not in known. Each call
	// restarts from the first listing page. A non-nil error ends the sequence
	// when it is fatal; transient errors are logged by the connector.
	Discover(ctx context.Context, known *crawlstate.Set) iter.Seq2[models.Link, error]

	// FetchDetail returns the detail record of a link, or an error wrapping
	// utils.ErrWithdrawn when the posting is gone
	FetchDetail(ctx context.Context, link models.Link) (*models.Posting, error)

	// Probe decides whether a previously seen posting is still online.
	// Ambiguous outcomes are reported as Unknown, never as Expired.
	Probe(ctx context.Context, target models.ProbeTarget) (Verdict, error)

	// Clean normalizes an enriched record; false drops it as noise
	Clean(p models.Posting) (models.CanonicalPosting, bool)

	// FlushEvery is the expiry checker's batch size for this source
	FlushEvery() int

	Close() error
}

// Deps are the shared services a connector may use
type Deps struct {
	Config  *config.Config
	Logger  logging.Logger
	Rules   *extract.Rules
	Limiter *throttle.Limiter
	Browser *browser.Manager
}

// Factory builds a connector
type Factory func(deps Deps) (Source, error)

// Registry maps each source to its factory
type Registry struct {
	factories map[models.Source]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.Source]Factory)}
}

// Register adds a factory, replacing any previous one for src
func (r *Registry) Register(src models.Source, f Factory) {
	r.factories[src] = f
}

// Build creates the connector of src
func (r *Registry) Build(src models.Source, deps Deps) (Source, error) {
	f, ok := r.factories[src]
	if !ok {
		return nil, fmt.Errorf("unsupported source: %s", src)
	}
	return f(deps)
}

// Supported lists the registered sources by slug
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.factories))
	for src := range r.factories {
		names = append(names, src.Slug())
	}
	sort.Strings(names)
	return names
}
