// Package browsertest provides an in-memory browser.Page for connector tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pathfinder/internal/browser"
)

// Doc is what a URL renders to
type Doc struct {
	HTML string
	// FinalURL simulates a redirect; empty means no redirect
	FinalURL string
	Title    string
}

// Page serves Docs by URL
type Page struct {
	Docs map[string]Doc
	// OnClick is called by ClickFirst with the current URL; returning a URL
	// navigates there and counts as a click
	OnClick func(current string, selectors []string) (string, bool)

	mu        sync.Mutex
	current   string
	Visited   []string
	Scrolls   int
	Closed    bool
	NavErrors map[string]error
}

// New creates a Page serving docs
func New(docs map[string]Doc) *Page {
	return &Page{Docs: docs, NavErrors: map[string]error{}}
}

// Opener returns a function handing out this page
func (p *Page) Opener() func(context.Context) (browser.Page, error) {
	return func(context.Context) (browser.Page, error) { return p, nil }
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	p.Visited = append(p.Visited, url)
	if err := p.NavErrors[url]; err != nil {
		return err
	}
	if _, ok := p.Docs[url]; !ok {
		return fmt.Errorf("no document for %s", url)
	}
	p.current = url
	return nil
}

func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Docs[p.current].HTML, nil
}

func (p *Page) Info() (browser.PageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := p.Docs[p.current]
	final := doc.FinalURL
	if final == "" {
		final = p.current
	}
	return browser.PageInfo{URL: final, Title: doc.Title}, nil
}

func (p *Page) Scroll(ctx context.Context, passes int, pause time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls += passes
	return ctx.Err()
}

func (p *Page) ClickFirst(ctx context.Context, selectors ...string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.OnClick == nil {
		return false
	}
	next, ok := p.OnClick(p.current, selectors)
	if !ok {
		return false
	}
	if next != "" {
		p.current = next
		p.Visited = append(p.Visited, next)
	}
	return true
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
