// Package apec is the APEC connector. Result pages are paged by clicking the
// pagination, behind a cookie banner that has to be dismissed first.
package apec

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"strings"
	"time"

	"pathfinder/internal/browser"
	"pathfinder/internal/crawlstate"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/sources"
	"pathfinder/internal/throttle"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

var (
	cookieButtons = []string{
		"#onetrust-reject-all-handler",
		"#onetrust-accept-btn-handler",
	}
	nextButtons = []string{
		"ul.pagination li:last-child a",
		".pagination-item-next",
	}
)

// Options tunes the connector
type Options struct {
	BaseURL            string
	Query              string
	MaxPages           int
	DuplicateTolerance int
	PageDelayMin       time.Duration
	PageDelayMax       time.Duration
	DetailDelayMin     time.Duration
	DetailDelayMax     time.Duration
	FlushEvery         int
}

// Connector implements sources.Source for APEC
type Connector struct {
	tab    *sources.Tab
	opts   Options
	rules  *extract.Rules
	logger logging.Logger
}

// New builds the connector from the shared dependencies
func New(deps sources.Deps) (sources.Source, error) {
	if deps.Browser == nil {
		return nil, errors.New("apec needs a browser")
	}
	a := deps.Config.APEC
	return NewConnector(deps.Browser.Open, Options{
		BaseURL:            a.BaseURL,
		Query:              a.Query,
		MaxPages:           a.MaxPages,
		DuplicateTolerance: a.DuplicateTolerance,
		PageDelayMin:       a.PageDelayMin,
		PageDelayMax:       a.PageDelayMax,
		DetailDelayMin:     a.DetailDelayMin,
		DetailDelayMax:     a.DetailDelayMax,
		FlushEvery:         a.FlushEvery,
	}, deps.Rules, deps.Logger.WithField("source", models.SourceAPEC.Slug())), nil
}

// NewConnector creates a connector that opens its pages with open
func NewConnector(open sources.Opener, opts Options, rules *extract.Rules, logger logging.Logger) *Connector {
	return &Connector{
		tab:    sources.NewTab(open),
		opts:   opts,
		rules:  rules,
		logger: logger,
	}
}

func (c *Connector) Name() models.Source { return models.SourceAPEC }

func (c *Connector) FlushEvery() int { return c.opts.FlushEvery }

func (c *Connector) Close() error { return c.tab.Close() }

func (c *Connector) searchURL() string {
	q := url.Values{}
	q.Set("motsCles", c.opts.Query)
	return strings.TrimRight(c.opts.BaseURL, "/") + "/candidat/recherche-emploi.html/emploi?" + q.Encode()
}

// Discover opens the search once and clicks through the result pages. It
// stops on a page without new offers, on a run of known offers, on a
// disabled "next" button or at the page cap.
func (c *Connector) Discover(ctx context.Context, known *crawlstate.Set) iter.Seq2[models.Link, error] {
	return func(yield func(models.Link, error) bool) {
		page, err := c.tab.Page(ctx)
		if err == nil {
			err = page.Navigate(ctx, c.searchURL())
		}
		if err != nil {
			if ctx.Err() != nil {
				yield(models.Link{}, ctx.Err())
				return
			}
			c.logger.Warn("Search page failed, stopping discovery", logging.Fields{"error": err.Error()})
			c.tab.Reset()
			return
		}
		if page.ClickFirst(ctx, cookieButtons...) {
			c.logger.Debug("Cookie banner dismissed")
		}

		seen := crawlstate.NewSet()
		guard := sources.NewDuplicateGuard(c.opts.DuplicateTolerance)

		for n := 1; n <= c.opts.MaxPages; n++ {
			links, last, err := c.results(ctx, page)
			if err != nil {
				c.logger.Warn("Result page failed, stopping discovery", logging.Fields{"page": n, "error": err.Error()})
				return
			}

			fresh := 0
			for _, u := range links {
				id := crawlstate.NormalizeID(u)
				if known.Has(id) {
					if guard.Known() {
						c.logger.Info("Reached known offers, stopping discovery", logging.Fields{"page": n})
						return
					}
					continue
				}
				if !seen.Add(id) {
					continue
				}
				guard.Fresh()
				fresh++
				link := models.Link{ID: id, URL: u, Source: models.SourceAPEC, DiscoveredAt: time.Now().UTC()}
				if !yield(link, nil) {
					return
				}
			}

			c.logger.Info("Result page processed", logging.Fields{"page": n, "offers": len(links), "new": fresh})
			if fresh == 0 || last || n == c.opts.MaxPages {
				return
			}
			if !page.ClickFirst(ctx, nextButtons...) {
				c.logger.Info("No next page", logging.Fields{"page": n})
				return
			}
			if err := throttle.Pause(ctx, c.opts.PageDelayMin, c.opts.PageDelayMax); err != nil {
				yield(models.Link{}, err)
				return
			}
		}
	}
}

func (c *Connector) results(ctx context.Context, page browser.Page) ([]string, bool, error) {
	if err := page.Scroll(ctx, 1, time.Second); err != nil {
		return nil, false, err
	}
	html, err := page.HTML()
	if err != nil {
		return nil, false, err
	}
	if err := browser.CheckChallenge(c.opts.BaseURL, html); err != nil {
		return nil, false, err
	}
	return parseListing(html, c.opts.BaseURL)
}

// render loads an offer page with the cookie banner out of the way
func (c *Connector) render(ctx context.Context, target string) (string, error) {
	page, err := c.tab.Page(ctx)
	if err != nil {
		return "", err
	}
	if err := page.Navigate(ctx, target); err != nil {
		c.tab.Reset()
		return "", err
	}
	page.ClickFirst(ctx, cookieButtons...)
	if err := throttle.Pause(ctx, c.opts.DetailDelayMin, c.opts.DetailDelayMax); err != nil {
		return "", err
	}
	if err := page.Scroll(ctx, 1, time.Second); err != nil {
		return "", err
	}
	html, err := page.HTML()
	if err != nil {
		return "", err
	}
	if err := browser.CheckChallenge(target, html); err != nil {
		c.tab.Reset()
		return "", err
	}
	return html, nil
}

func (c *Connector) FetchDetail(ctx context.Context, link models.Link) (*models.Posting, error) {
	html, err := c.render(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	p, withdrawn, err := parseDetail(html, link.URL)
	if err != nil {
		return nil, err
	}
	if withdrawn {
		return nil, utils.NewWithdrawnError(link.URL)
	}
	p.ID = link.ID
	return p, nil
}

// Probe looks for the site's withdrawn notice anywhere on the page
func (c *Connector) Probe(ctx context.Context, target models.ProbeTarget) (sources.Verdict, error) {
	html, err := c.render(ctx, target.URL)
	if err != nil {
		return sources.Unknown, err
	}
	if isWithdrawn(html) {
		return sources.Expired, nil
	}
	return sources.Active, nil
}

// Clean drops noise records and normalizes the rest. APEC lists executive
// permanent positions, so CDI is the contract default.
func (c *Connector) Clean(p models.Posting) (models.CanonicalPosting, bool) {
	if p.URL == "" || !valid(p) {
		return models.CanonicalPosting{}, false
	}

	loc := c.rules.ResolveLocation(p.City, p.Tags)
	out := models.CanonicalPosting{
		URL:         p.URL,
		Title:       extract.CleanLabel(p.Title),
		Company:     strings.ToUpper(extract.CleanLabel(p.Company)),
		City:        loc.City,
		Department:  loc.Department,
		Description: extract.CleanText(p.Description),
		Contract: extract.ParseContract(extract.ContractInput{
			Title:   p.Title,
			Tags:    p.Tags,
			Field:   p.Contract,
			Default: models.ContractCDI,
		}),
		Remote:      extract.ParseRemote(p.Tags, p.Description),
		Level:       models.LevelUnspecified,
		PublishedAt: p.PublishedAt,
		ExpiredAt:   p.ExpiredAt,
		Source:      models.SourceAPEC,
	}
	if salary, ok := extract.ParseSalary(p.Salary); ok {
		out.AnnualSalary = &salary
	}
	if years, ok := extract.ExperienceYears(p.Tags); ok {
		out.ExperienceYears = &years
	}
	return out, true
}
