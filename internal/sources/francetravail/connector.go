package francetravail

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pathfinder/internal/crawlstate"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/sources"
	"pathfinder/internal/throttle"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// closedPhrases are shown by the public site once an offer is gone
var closedPhrases = []string{
	"cette offre n'est plus en ligne",
	"cette offre n'est plus disponible",
	"l'offre que vous recherchez n'existe plus",
	"offre clôturée",
}

// Options tunes the connector
type Options struct {
	WebURL      string
	Keywords    []string
	PageSize    int
	MaxStart    int
	PageDelay   time.Duration
	LookupDelay time.Duration
	StaleAfter  time.Duration
	WebTimeout  time.Duration
	WebPauseMin time.Duration
	WebPauseMax time.Duration
	UserAgent   string
	FlushEvery  int
}

// Connector implements sources.Source for France Travail
type Connector struct {
	client *Client
	web    *http.Client
	opts   Options
	rules  *extract.Rules
	logger logging.Logger
	now    func() time.Time
}

// New builds the connector from the shared dependencies
func New(deps sources.Deps) (sources.Source, error) {
	ft := deps.Config.FranceTravail
	if ft.ClientID == "" || ft.ClientSecret == "" {
		return nil, utils.NewAuthError("France Travail client credentials are not configured")
	}

	logger := deps.Logger.WithField("source", models.SourceFranceTravail.Slug())
	client := NewClient(ClientOptions{
		ClientID:     ft.ClientID,
		ClientSecret: ft.ClientSecret,
		TokenURL:     ft.TokenURL,
		APIURL:       ft.APIURL,
		Scopes:       ft.Scopes,
		Timeout:      ft.HTTPTimeout,
		Backoff:      ft.RateLimitBackoff,
		MaxRetries:   ft.MaxRetries,
	}, deps.Limiter, logger)

	return NewConnector(client, Options{
		WebURL:      ft.WebURL,
		Keywords:    ft.Keywords,
		PageSize:    ft.PageSize,
		MaxStart:    ft.MaxStart,
		PageDelay:   ft.PageDelay,
		LookupDelay: ft.LookupDelay,
		StaleAfter:  ft.StaleAfter,
		WebTimeout:  ft.WebTimeout,
		WebPauseMin: ft.WebPauseMin,
		WebPauseMax: ft.WebPauseMax,
		UserAgent:   deps.Config.Scraper.UserAgent,
		FlushEvery:  ft.FlushEvery,
	}, deps.Rules, logger), nil
}

// NewConnector wires a connector around an API client
func NewConnector(client *Client, opts Options, rules *extract.Rules, logger logging.Logger) *Connector {
	return &Connector{
		client: client,
		web:    &http.Client{Timeout: opts.WebTimeout},
		opts:   opts,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Connector) Name() models.Source { return models.SourceFranceTravail }

func (c *Connector) FlushEvery() int { return c.opts.FlushEvery }

func (c *Connector) Close() error { return nil }

// Discover pages through the search results of every keyword. A keyword
// stops on an empty page, a short page, a final (200) page or the API's start
// limit. Offers come back complete, so links carry their detail record.
func (c *Connector) Discover(ctx context.Context, known *crawlstate.Set) iter.Seq2[models.Link, error] {
	return func(yield func(models.Link, error) bool) {
		seen := crawlstate.NewSet()

		for _, keyword := range c.opts.Keywords {
			for start := 0; start <= c.opts.MaxStart; start += c.opts.PageSize {
				if ctx.Err() != nil {
					yield(models.Link{}, ctx.Err())
					return
				}

				page, last, err := c.search(ctx, keyword, start)
				if err != nil {
					if utils.IsChainFatal(err) || errors.Is(err, context.Canceled) {
						yield(models.Link{}, err)
						return
					}
					c.logger.Warn("Search failed, moving to next keyword", logging.Fields{
						"keyword": keyword,
						"start":   start,
						"error":   err.Error(),
					})
					break
				}

				fresh := 0
				for _, o := range page {
					if o.ID == "" || known.Has(o.ID) || !seen.Add(o.ID) {
						continue
					}
					fresh++
					p := o.posting(c.opts.WebURL)
					link := models.Link{
						ID:           o.ID,
						URL:          p.URL,
						Source:       models.SourceFranceTravail,
						DiscoveredAt: c.now().UTC(),
						Prefetched:   p,
					}
					if !yield(link, nil) {
						return
					}
				}

				c.logger.Info("Search page fetched", logging.Fields{
					"keyword":  keyword,
					"start":    start,
					"received": len(page),
					"new":      fresh,
				})

				if last {
					break
				}
				if err := throttle.Pause(ctx, c.opts.PageDelay, c.opts.PageDelay); err != nil {
					yield(models.Link{}, err)
					return
				}
			}
		}
	}
}

// search fetches one result window and reports whether it was the last one
func (c *Connector) search(ctx context.Context, keyword string, start int) ([]offer, bool, error) {
	end := start + c.opts.PageSize - 1
	query := url.Values{}
	query.Set("motsCles", keyword)
	query.Set("range", fmt.Sprintf("%d-%d", start, end))

	resp, err := c.client.get(ctx, "/offres/search", query)
	if err != nil {
		return nil, false, err
	}

	switch resp.Status {
	case http.StatusNoContent:
		return nil, true, nil
	case http.StatusOK, http.StatusPartialContent:
	default:
		return nil, false, utils.NewScrapingError(fmt.Sprintf("search returned status %d", resp.Status))
	}

	var body searchResponse
	if err := decode(resp, &body); err != nil {
		return nil, false, err
	}

	last := len(body.Results) == 0 ||
		len(body.Results) < c.opts.PageSize ||
		resp.Status == http.StatusOK
	return body.Results, last, nil
}

// lookup fetches one offer; a nil offer means the API no longer has it
func (c *Connector) lookup(ctx context.Context, id string) (*offer, error) {
	resp, err := c.client.get(ctx, "/offres/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	case http.StatusOK, http.StatusPartialContent:
	default:
		return nil, utils.NewScrapingError(fmt.Sprintf("lookup of %s returned status %d", id, resp.Status))
	}

	var o offer
	if err := decode(resp, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// FetchDetail returns the prefetched search record, or looks the offer up
func (c *Connector) FetchDetail(ctx context.Context, link models.Link) (*models.Posting, error) {
	if link.Prefetched != nil {
		return link.Prefetched, nil
	}

	id := offerID(models.ProbeTarget{ID: link.ID, URL: link.URL})
	if id == "" {
		return nil, utils.NewValidationError("no offer id in " + link.URL)
	}

	o, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := throttle.Pause(ctx, c.opts.LookupDelay, c.opts.LookupDelay); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, utils.NewWithdrawnError(id)
	}
	return o.posting(c.opts.WebURL), nil
}

// Probe asks the API first. A missing offer is expired; a recently updated
// one is active; an old one is checked on the public site, where only a
// definitive closing phrase marks it expired.
func (c *Connector) Probe(ctx context.Context, target models.ProbeTarget) (sources.Verdict, error) {
	id := offerID(target)
	if id == "" {
		return sources.Unknown, utils.NewValidationError("no offer id in " + target.URL)
	}

	o, err := c.lookup(ctx, id)
	if pauseErr := throttle.Pause(ctx, c.opts.LookupDelay, c.opts.LookupDelay); pauseErr != nil && err == nil {
		err = pauseErr
	}
	if err != nil {
		return sources.Unknown, err
	}
	if o == nil {
		return sources.Expired, nil
	}

	if updated, ok := extract.ParseDate(o.UpdatedAt); ok && c.now().Sub(updated) < c.opts.StaleAfter {
		return sources.Active, nil
	}

	verdict := c.webCheck(ctx, id)
	if err := throttle.Pause(ctx, c.opts.WebPauseMin, c.opts.WebPauseMax); err != nil {
		return verdict, err
	}
	return verdict, nil
}

// webCheck scans the public offer page for a closing phrase. Any failure to
// load the page counts as active.
func (c *Connector) webCheck(ctx context.Context, id string) sources.Verdict {
	pageURL := detailURL(c.opts.WebURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return sources.Active
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.web.Do(req)
	if err != nil {
		c.logger.Debug("Web check failed, keeping offer", logging.Fields{"id": id, "error": err.Error()})
		return sources.Active
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sources.Active
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return sources.Active
	}
	if sources.ContainsAny(sources.VisibleText(doc), closedPhrases) {
		return sources.Expired
	}
	return sources.Active
}

// Clean maps an API record onto the canonical shape
func (c *Connector) Clean(p models.Posting) (models.CanonicalPosting, bool) {
	loc := c.rules.ResolveLocation(p.City, p.Description)
	out := models.CanonicalPosting{
		URL:         p.URL,
		Title:       extract.CleanLabel(p.Title),
		Company:     extract.OrUnspecified(extract.CleanLabel(p.Company), models.Unspecified),
		City:        loc.City,
		Department:  loc.Department,
		Description: extract.CleanText(p.Description),
		Contract: extract.ParseContract(extract.ContractInput{
			Title: p.Title,
			Tags:  p.Tags,
			Field: p.Contract,
		}),
		Remote:      extract.ParseRemote(p.Tags, p.Description),
		Level:       models.LevelUnspecified,
		PublishedAt: p.PublishedAt,
		ExpiredAt:   p.ExpiredAt,
		Source:      models.SourceFranceTravail,
	}
	if out.URL == "" {
		return out, false
	}
	if salary, ok := extract.ParseSalary(p.Salary); ok {
		out.AnnualSalary = &salary
	}
	if years, ok := extract.ExperienceYears(p.Tags); ok {
		out.ExperienceYears = &years
	}
	return out, true
}
