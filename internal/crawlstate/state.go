// Package crawlstate tracks which postings each source has already seen.
package crawlstate

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"

	"pathfinder/internal/logging"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
)

// NormalizeID canonicalizes a posting URL into its identifier: query string
// and trailing slashes are dropped and the last path segment is kept.
func NormalizeID(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// Set is a concurrency-safe set of identifiers
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSet creates a set holding ids
func NewSet(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is known
func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add inserts id and reports whether it was new
func (s *Set) Add(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of known identifiers
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Mirror shares known identifiers outside the data directory
type Mirror interface {
	Members(ctx context.Context, src models.Source) ([]string, error)
	Add(ctx context.Context, src models.Source, ids ...string) error
}

// Tracker is the known-identifier state of one source for one run
type Tracker struct {
	Source models.Source
	known  *Set
	mirror Mirror
	logger logging.Logger
}

// Load builds the tracker of src from the raw and enriched tiers, plus the
// mirror when one is configured. Missing files mean an empty state. Mirror
// failures are logged and ignored.
func Load(ctx context.Context, layout store.Layout, src models.Source, mirror Mirror, logger logging.Logger) (*Tracker, error) {
	t := &Tracker{Source: src, known: NewSet(), mirror: mirror, logger: logger}

	links, err := store.ReadAll(layout.Raw(src), store.LinkCodec)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, l := range links {
		t.known.Add(idOf(l.ID, l.URL))
	}

	postings, err := store.ReadAll(layout.Enriched(src), store.PostingCodec)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, p := range postings {
		t.known.Add(idOf(p.ID, p.URL))
	}

	if mirror != nil {
		ids, err := mirror.Members(ctx, src)
		if err != nil {
			logger.Warn("Failed to read crawl-state mirror, using local files only", logging.Fields{
				"source": src.Slug(),
				"error":  err.Error(),
			})
		}
		for _, id := range ids {
			t.known.Add(id)
		}
	}

	logger.Info("Crawl state loaded", logging.Fields{
		"source": src.Slug(),
		"known":  t.known.Len(),
	})
	return t, nil
}

// Known returns the set used by discovery
func (t *Tracker) Known() *Set { return t.known }

// Remember records a newly persisted identifier
func (t *Tracker) Remember(ctx context.Context, id string) {
	if !t.known.Add(id) || t.mirror == nil {
		return
	}
	if err := t.mirror.Add(ctx, t.Source, id); err != nil {
		t.logger.Debug("Failed to mirror identifier", logging.Fields{
			"source": t.Source.Slug(),
			"id":     id,
			"error":  err.Error(),
		})
	}
}

func idOf(id, url string) string {
	if id != "" {
		return id
	}
	return NormalizeID(url)
}
