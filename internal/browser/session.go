package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"pathfinder/internal/logging"
)

// PageInfo describes where a navigation ended up
type PageInfo struct {
	URL   string
	Title string
}

// Page is the subset of browser behaviour the sources rely on
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML() (string, error)
	Info() (PageInfo, error)
	Scroll(ctx context.Context, passes int, pause time.Duration) error
	// ClickFirst clicks the first visible element matching one of the
	// selectors and reports whether anything was clicked
	ClickFirst(ctx context.Context, selectors ...string) bool
	Close() error
}

// Session is a Page backed by a rod stealth page
type Session struct {
	page    *rod.Page
	timeout time.Duration
	logger  logging.Logger
}

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := rod.Try(func() {
		s.page.Context(navCtx).MustNavigate(url).MustWaitLoad()
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	s.logger.Debug("Successfully navigated to URL", logging.Fields{"url": url})
	return nil
}

// HTML returns the rendered document
func (s *Session) HTML() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// Info returns the final URL and the title of the page
func (s *Session) Info() (PageInfo, error) {
	info, err := s.page.Info()
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to get page info: %w", err)
	}
	return PageInfo{URL: info.URL, Title: info.Title}, nil
}

// Scroll scrolls to the bottom passes times so lazy lists render
func (s *Session) Scroll(ctx context.Context, passes int, pause time.Duration) error {
	for i := 0; i < passes; i++ {
		err := rod.Try(func() {
			s.page.Context(ctx).MustEval(`() => window.scrollTo(0, document.body.scrollHeight)`)
		})
		if err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return nil
}

// ClickFirst clicks the first visible element matching one of the selectors
func (s *Session) ClickFirst(ctx context.Context, selectors ...string) bool {
	for _, selector := range selectors {
		has, el, err := s.page.Context(ctx).Has(selector)
		if err != nil || !has {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := rod.Try(func() { el.MustClick() }); err == nil {
			s.logger.Debug("Clicked element", logging.Fields{"selector": selector})
			return true
		}
	}
	return false
}

// Close closes the page
func (s *Session) Close() error {
	return s.page.Close()
}
