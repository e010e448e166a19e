package sources

import (
	"context"
	"sync"

	"pathfinder/internal/browser"
)

// Opener creates a browser page
type Opener func(ctx context.Context) (browser.Page, error)

// Tab keeps one page open across the calls of a connector. A chain is
// sequential, so one page per connector is enough.
type Tab struct {
	open Opener

	mu   sync.Mutex
	page browser.Page
}

// NewTab creates a Tab that opens its page on first use
func NewTab(open Opener) *Tab {
	return &Tab{open: open}
}

// Page returns the current page, opening one if needed
func (t *Tab) Page(ctx context.Context) (browser.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.page != nil {
		return t.page, nil
	}
	p, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	t.page = p
	return p, nil
}

// Reset drops a page that stopped responding so the next call opens a new one
func (t *Tab) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.page != nil {
		_ = t.page.Close()
		t.page = nil
	}
}

// Close closes the page if one is open
func (t *Tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.page == nil {
		return nil
	}
	err := t.page.Close()
	t.page = nil
	return err
}

// DuplicateGuard counts known links seen in a row during discovery
type DuplicateGuard struct {
	limit int
	run   int
}

func NewDuplicateGuard(limit int) *DuplicateGuard {
	return &DuplicateGuard{limit: limit}
}

// Known records a known link and reports whether the tolerance is reached
func (g *DuplicateGuard) Known() bool {
	g.run++
	return g.limit > 0 && g.run >= g.limit
}

// Fresh resets the counter
func (g *DuplicateGuard) Fresh() { g.run = 0 }
