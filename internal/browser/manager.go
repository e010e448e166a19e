// Package browser drives a stealth Chromium through rod for the sources that
// only render their listings client-side.
package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"pathfinder/internal/config"
	"pathfinder/internal/logging"
)

// Manager owns one Chromium process shared by the sessions it opens
type Manager struct {
	cfg      *config.Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	launched bool
	mu       sync.Mutex
	logger   logging.Logger
}

// NewManager prepares a launcher; the browser starts on the first Open
func NewManager(cfg *config.Config, logger logging.Logger) *Manager {
	l := launcher.New().
		Headless(cfg.Scraper.HeadlessMode).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("lang", "fr-FR")

	if chromePath := chromePath(cfg.Scraper.ChromePath); chromePath != "" {
		l = l.Bin(chromePath)
		logger.Info("Using system Chrome browser", logging.Fields{"chrome_path": chromePath})
	} else {
		logger.Warn("System Chrome not found, Rod will download browser")
	}

	if cfg.Scraper.UserAgent != "" {
		l = l.Set("user-agent", cfg.Scraper.UserAgent)
	}

	return &Manager{
		cfg:      cfg,
		launcher: l,
		logger:   logger.WithField("component", "browser"),
	}
}

// Open returns a new stealth page session
func (m *Manager) Open(ctx context.Context) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil || !healthy(m.browser) {
		b, err := m.launch(ctx)
		if err != nil {
			return nil, err
		}
		m.browser = b
	}

	page, err := m.newPage()
	if err != nil {
		return nil, err
	}

	return &Session{
		page:    page,
		timeout: m.cfg.Scraper.RequestTimeout,
		logger:  m.logger,
	}, nil
}

// Cleanup closes the browser and the launcher
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil && healthy(m.browser) {
		if err := m.browser.Close(); err != nil {
			m.logger.Warn("Failed to close browser", logging.Fields{"error": err.Error()})
		}
	}
	m.browser = nil
	if m.launched {
		m.launcher.Cleanup()
		m.launched = false
	}
	m.logger.Info("Browser manager cleanup completed")
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	// the browser is shared, so it must outlive the chain that opened it
	controlURL, err := m.launcher.Context(context.WithoutCancel(ctx)).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	m.launched = true

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	m.logger.Info("New browser instance created")
	return b, nil
}

func (m *Manager) newPage() (*rod.Page, error) {
	page, err := stealth.Page(m.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		m.logger.Warn("Failed to set viewport", logging.Fields{"error": err.Error()})
	}

	if m.cfg.Scraper.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      m.cfg.Scraper.UserAgent,
			AcceptLanguage: "fr-FR,fr;q=0.9,en;q=0.8",
		}); err != nil {
			m.logger.Warn("Failed to set user agent", logging.Fields{"error": err.Error()})
		}
	}

	if _, err := page.SetExtraHeaders([]string{"Accept-Language", "fr-FR,fr;q=0.9,en;q=0.8"}); err != nil {
		m.logger.Debug("Failed to set headers", logging.Fields{"error": err.Error()})
	}

	return page, nil
}

func healthy(b *rod.Browser) bool {
	_, err := b.Pages()
	return err == nil
}

// chromePath prefers the configured binary, then CHROME_BIN, then the usual
// install locations
func chromePath(configured string) string {
	candidates := []string{configured, os.Getenv("CHROME_BIN")}
	candidates = append(candidates,
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
