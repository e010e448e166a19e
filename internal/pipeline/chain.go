package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"pathfinder/internal/crawlstate"
	"pathfinder/internal/expiry"
	"pathfinder/internal/logging"
	"pathfinder/internal/sources"
	"pathfinder/internal/store"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

// chain runs the stages of one source in order
type chain struct {
	src     sources.Source
	layout  store.Layout
	tracker *crawlstate.Tracker
	logger  logging.Logger

	// prefetched holds detail records returned by discovery, by identifier
	prefetched map[string]*models.Posting
}

// stage runs fn with a fresh summary and logs it when fn returns
func (c *chain) stage(name string, fn func(*StageSummary) error) (StageSummary, error) {
	sum := StageSummary{Source: c.src.Name(), Stage: name}
	start := time.Now()
	err := fn(&sum)
	sum.Duration = time.Since(start)
	if err != nil {
		sum.Err = err.Error()
		c.logger.Warn("Stage ended early", sum.fields())
	} else {
		c.logger.Info("Stage completed", sum.fields())
	}
	return sum, err
}

// crawl appends every newly discovered link to the raw tier
func (c *chain) crawl(ctx context.Context, sum *StageSummary) error {
	out, err := store.OpenAppender(c.layout.Raw(c.src.Name()), store.LinkCodec)
	if err != nil {
		return err
	}
	defer out.Close()

	for link, err := range c.src.Discover(ctx, c.tracker.Known()) {
		if err != nil {
			return err
		}
		if link.ID == "" {
			link.ID = crawlstate.NormalizeID(link.URL)
		}
		if c.tracker.Known().Has(link.ID) {
			sum.Duplicates++
			continue
		}
		if err := out.Append(link); err != nil {
			return err
		}
		c.tracker.Remember(ctx, link.ID)
		if link.Prefetched != nil {
			c.prefetched[link.ID] = link.Prefetched
		}
		sum.New++
	}
	return ctx.Err()
}

// enrich fetches the detail of every raw link not yet in the enriched tier
func (c *chain) enrich(ctx context.Context, sum *StageSummary) error {
	links, err := store.ReadAll(c.layout.Raw(c.src.Name()), store.LinkCodec)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	done := crawlstate.NewSet()
	existing, err := store.ReadAll(c.layout.Enriched(c.src.Name()), store.PostingCodec)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, p := range existing {
		done.Add(idOrURL(p.ID, p.URL))
	}

	out, err := store.OpenAppender(c.layout.Enriched(c.src.Name()), store.PostingCodec)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := idOrURL(link.ID, link.URL)
		if !done.Add(id) {
			continue
		}
		if p, ok := c.prefetched[id]; ok {
			link.Prefetched = p
		}

		p, err := c.src.FetchDetail(ctx, link)
		switch {
		case err == nil:
		case errors.Is(err, utils.ErrWithdrawn):
			sum.Withdrawn++
			continue
		case utils.IsChainFatal(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			sum.Failed++
			c.logger.Warn("Detail fetch failed, skipping posting", logging.Fields{
				"url":   link.URL,
				"error": err.Error(),
			})
			continue
		}

		if p.ID == "" {
			p.ID = id
		}
		if p.URL == "" {
			p.URL = link.URL
		}
		p.Source = c.src.Name()
		if err := out.Append(*p); err != nil {
			return err
		}
		sum.New++
	}
	return nil
}

// update re-probes the active postings of the enriched tier
func (c *chain) update(ctx context.Context, sum *StageSummary) error {
	path := c.layout.Enriched(c.src.Name())
	postings, err := store.ReadAll(path, store.PostingCodec)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for i := range postings {
		if postings[i].Source == "" {
			postings[i].Source = c.src.Name()
		}
	}

	checker := expiry.NewChecker(map[models.Source]expiry.Prober{c.src.Name(): c.src}, c.src.FlushEvery(), c.logger)
	res, err := expiry.Check(ctx, checker, postings, func(all []models.Posting) error {
		return store.WriteAtomic(path, store.PostingCodec, all)
	})
	sum.Expired = res.Expired
	sum.Active = res.Active
	sum.Unknown = res.Unknown
	return err
}

// clean rewrites the clean tier from the enriched tier
func (c *chain) clean(ctx context.Context, sum *StageSummary) error {
	postings, err := store.ReadAll(c.layout.Enriched(c.src.Name()), store.PostingCodec)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	rows := make([]models.CanonicalPosting, 0, len(postings))
	for _, p := range postings {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, ok := c.src.Clean(p)
		if !ok {
			sum.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	sum.Rows = len(rows)

	err = store.WriteAtomic(c.layout.Clean(c.src.Name()), store.CanonicalCodec, rows)
	if errors.Is(err, utils.ErrEmptyTable) {
		c.logger.Warn("No clean rows, keeping the previous clean table", logging.Fields{"source": c.src.Name().Slug()})
		return nil
	}
	return err
}

func idOrURL(id, url string) string {
	if id != "" {
		return id
	}
	return crawlstate.NormalizeID(url)
}
