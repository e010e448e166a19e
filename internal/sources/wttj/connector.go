// Package wttj is the Welcome to the Jungle connector. Listings only render
// client-side, so every page goes through the shared browser.
package wttj

import (
	"context"
	"errors"
	"fmt"
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

const (
	scrollPause     = 1500 * time.Millisecond
	descriptionHead = 300
)

// Options tunes the connector
type Options struct {
	BaseURL            string
	Query              string
	MaxPages           int
	Scrolls            int
	DuplicateTolerance int
	PageDelayMin       time.Duration
	PageDelayMax       time.Duration
	DetailDelayMin     time.Duration
	DetailDelayMax     time.Duration
	FlushEvery         int
}

// Connector implements sources.Source for Welcome to the Jungle
type Connector struct {
	tab    *sources.Tab
	opts   Options
	rules  *extract.Rules
	logger logging.Logger
	now    func() time.Time
}

// New builds the connector from the shared dependencies
func New(deps sources.Deps) (sources.Source, error) {
	if deps.Browser == nil {
		return nil, errors.New("wttj needs a browser")
	}
	w := deps.Config.WTTJ
	return NewConnector(deps.Browser.Open, Options{
		BaseURL:            w.BaseURL,
		Query:              w.Query,
		MaxPages:           w.MaxPages,
		Scrolls:            w.Scrolls,
		DuplicateTolerance: w.DuplicateTolerance,
		PageDelayMin:       w.PageDelayMin,
		PageDelayMax:       w.PageDelayMax,
		DetailDelayMin:     w.DetailDelayMin,
		DetailDelayMax:     w.DetailDelayMax,
		FlushEvery:         w.FlushEvery,
	}, deps.Rules, deps.Logger.WithField("source", models.SourceWTTJ.Slug())), nil
}

// NewConnector creates a connector that opens its pages with open
func NewConnector(open sources.Opener, opts Options, rules *extract.Rules, logger logging.Logger) *Connector {
	return &Connector{
		tab:    sources.NewTab(open),
		opts:   opts,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Connector) Name() models.Source { return models.SourceWTTJ }

func (c *Connector) FlushEvery() int { return c.opts.FlushEvery }

func (c *Connector) Close() error { return c.tab.Close() }

func (c *Connector) listingURL(page int) string {
	q := url.Values{}
	q.Set("query", c.opts.Query)
	q.Set("page", fmt.Sprint(page))
	q.Set("refinementList[offices.country_code][]", "FR")
	return strings.TrimRight(c.opts.BaseURL, "/") + "/fr/jobs?" + q.Encode()
}

// Discover walks the search pages until one yields nothing new, too many
// known links come in a row, or the page cap is reached
func (c *Connector) Discover(ctx context.Context, known *crawlstate.Set) iter.Seq2[models.Link, error] {
	return func(yield func(models.Link, error) bool) {
		seen := crawlstate.NewSet()
		guard := sources.NewDuplicateGuard(c.opts.DuplicateTolerance)

		for page := 1; page <= c.opts.MaxPages; page++ {
			cards, err := c.listing(ctx, page)
			if err != nil {
				if ctx.Err() != nil {
					yield(models.Link{}, ctx.Err())
					return
				}
				c.logger.Warn("Listing page failed, stopping discovery", logging.Fields{
					"page":  page,
					"error": err.Error(),
				})
				c.tab.Reset()
				return
			}

			fresh := 0
			for _, card := range cards {
				id := crawlstate.NormalizeID(card.URL)
				if known.Has(id) {
					if guard.Known() {
						c.logger.Info("Reached known postings, stopping discovery", logging.Fields{"page": page})
						return
					}
					continue
				}
				if !seen.Add(id) {
					continue
				}
				guard.Fresh()
				fresh++
				link := models.Link{
					ID:           id,
					URL:          card.URL,
					Source:       models.SourceWTTJ,
					DiscoveredAt: c.now().UTC(),
				}
				if !yield(link, nil) {
					return
				}
			}

			c.logger.Info("Listing page processed", logging.Fields{
				"page":  page,
				"cards": len(cards),
				"new":   fresh,
			})
			if fresh == 0 {
				return
			}
			if err := throttle.Pause(ctx, c.opts.PageDelayMin, c.opts.PageDelayMax); err != nil {
				yield(models.Link{}, err)
				return
			}
		}
	}
}

func (c *Connector) listing(ctx context.Context, page int) ([]listing, error) {
	p, err := c.tab.Page(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Navigate(ctx, c.listingURL(page)); err != nil {
		return nil, err
	}
	if err := p.Scroll(ctx, c.opts.Scrolls, scrollPause); err != nil {
		return nil, err
	}
	html, err := p.HTML()
	if err != nil {
		return nil, err
	}
	if err := browser.CheckChallenge(c.opts.BaseURL, html); err != nil {
		return nil, err
	}
	return parseListing(html, c.opts.BaseURL)
}

// render loads url and returns the final location, the title and the HTML
func (c *Connector) render(ctx context.Context, target string, delayMin, delayMax time.Duration) (string, string, string, error) {
	p, err := c.tab.Page(ctx)
	if err != nil {
		return "", "", "", err
	}
	if err := p.Navigate(ctx, target); err != nil {
		c.tab.Reset()
		return "", "", "", err
	}
	if err := throttle.Pause(ctx, delayMin, delayMax); err != nil {
		return "", "", "", err
	}
	if err := p.Scroll(ctx, 1, time.Second); err != nil {
		return "", "", "", err
	}
	info, err := p.Info()
	if err != nil {
		return "", "", "", err
	}
	html, err := p.HTML()
	if err != nil {
		return "", "", "", err
	}
	if err := browser.CheckChallenge(target, html); err != nil {
		c.tab.Reset()
		return "", "", "", err
	}
	return info.URL, info.Title, html, nil
}

// FetchDetail renders the job page; a page that is already gone is reported
// as withdrawn
func (c *Connector) FetchDetail(ctx context.Context, link models.Link) (*models.Posting, error) {
	final, title, html, err := c.render(ctx, link.URL, c.opts.DetailDelayMin, c.opts.DetailDelayMax)
	if err != nil {
		return nil, err
	}
	if isExpired(link.URL, final, title, html) {
		return nil, utils.NewWithdrawnError(link.URL)
	}

	p, err := parseDetail(html, link.URL, c.rules)
	if err != nil {
		return nil, err
	}
	p.ID = link.ID
	return p, nil
}

// Probe re-renders a job page. Navigation failures stay Unknown.
func (c *Connector) Probe(ctx context.Context, target models.ProbeTarget) (sources.Verdict, error) {
	final, title, html, err := c.render(ctx, target.URL, c.opts.DetailDelayMin, c.opts.DetailDelayMax)
	if err != nil {
		return sources.Unknown, err
	}
	if isExpired(target.URL, final, title, html) {
		return sources.Expired, nil
	}
	return sources.Active, nil
}

// Clean normalizes a rendered record. The badge list is the main signal for
// contract, remote policy and salary; the city falls back to the badges and
// the start of the description.
func (c *Connector) Clean(p models.Posting) (models.CanonicalPosting, bool) {
	if p.URL == "" {
		return models.CanonicalPosting{}, false
	}

	loc := c.rules.ResolveLocation(p.City, p.Tags, extract.Truncate(p.Description, descriptionHead))
	out := models.CanonicalPosting{
		URL:         p.URL,
		Title:       extract.CleanLabel(p.Title),
		Company:     extract.OrUnspecified(strings.ToUpper(extract.CleanLabel(p.Company)), models.Unspecified),
		City:        loc.City,
		Department:  loc.Department,
		Description: extract.CleanText(p.Description),
		Contract: extract.ParseContract(extract.ContractInput{
			Title: p.Title,
			Tags:  p.Tags,
			Field: p.Contract,
		}),
		Remote:      extract.ParseRemote(p.Tags),
		Level:       models.LevelUnspecified,
		PublishedAt: p.PublishedAt,
		ExpiredAt:   p.ExpiredAt,
		Source:      models.SourceWTTJ,
	}
	if out.PublishedAt == nil {
		day := models.Day(c.now())
		out.PublishedAt = &day
	}
	if salary, ok := extract.ParseSalary(p.Salary); ok {
		out.AnnualSalary = &salary
	}
	if years, ok := extract.ExperienceYears(p.Tags); ok {
		out.ExperienceYears = &years
	}
	return out, true
}
