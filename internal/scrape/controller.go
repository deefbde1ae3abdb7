// Package scrape implements the per-term crawl controller and the scheduler
// that fans it out over a bounded worker pool.
package scrape

import (
	"context"

	"go.uber.org/zap"

	"github.com/openpeptides/litcrawler/internal/checkpoint"
	"github.com/openpeptides/litcrawler/internal/litsource"
	"github.com/openpeptides/litcrawler/internal/match"
	"github.com/openpeptides/litcrawler/internal/metrics"
	"github.com/openpeptides/litcrawler/internal/store"
)

// PageFetcher retrieves one results page for (term, page).
type PageFetcher interface {
	FetchPage(ctx context.Context, term string, page int) (litsource.PageResult, error)
}

// Extractor retrieves and parses one article page.
type Extractor interface {
	Extract(ctx context.Context, url string) (*litsource.Record, error)
}

// FailureSink records skipped links for operators. It is never read back by
// the pipeline.
type FailureSink interface {
	Record(term, link, reason string)
}

// Pacer inserts the courtesy delay between consecutive remote requests.
type Pacer interface {
	Wait(ctx context.Context)
}

// ControllerConfig holds the crawl policy knobs.
type ControllerConfig struct {
	// BreakerThreshold is the number of consecutive link failures that
	// aborts the remainder of a term's link-processing phase.
	BreakerThreshold int
}

// Controller crawls a single search term: it paginates the search interface
// with durable checkpointing, collects a deduplicated link set, then
// extracts, matches and persists each candidate document.
type Controller struct {
	fetcher   PageFetcher
	extractor Extractor
	docs      store.DocumentStore
	tracker   *checkpoint.Tracker
	failures  FailureSink
	pacer     Pacer
	cfg       ControllerConfig
	logger    *zap.Logger
}

// NewController constructs a Controller.
func NewController(
	fetcher PageFetcher,
	extractor Extractor,
	docs store.DocumentStore,
	tracker *checkpoint.Tracker,
	failures FailureSink,
	pacer Pacer,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 3
	}
	return &Controller{
		fetcher:   fetcher,
		extractor: extractor,
		docs:      docs,
		tracker:   tracker,
		failures:  failures,
		pacer:     pacer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one full crawl invocation for term: collect links, then
// resolve and persist them. Per-link failures never abort the run; a page
// fetch failure only abandons pagination, leaving already-collected links to
// be processed.
func (c *Controller) Run(ctx context.Context, term string) error {
	links := c.collectLinks(ctx, term)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.processLinks(ctx, term, links)
	return ctx.Err()
}

// collectLinks advances the page cursor from the last checkpoint, merging
// newly seen links in first-seen order and persisting progress after every
// page. The checkpoint never moves past a failed page, so an interrupted
// run re-fetches at most that one page.
func (c *Controller) collectLinks(ctx context.Context, term string) []litsource.Link {
	page := c.tracker.NextPage(term)
	maxPages := 0
	seen := make(map[string]struct{})
	var links []litsource.Link

	for ctx.Err() == nil {
		c.pacer.Wait(ctx)
		result, err := c.fetcher.FetchPage(ctx, term, page)
		if err != nil {
			c.logger.Warn("page fetch failed, abandoning pagination",
				zap.String("term", term), zap.Int("page", page), zap.Error(err))
			break
		}
		metrics.ObservePage(term)

		for _, link := range result.Links {
			if _, dup := seen[link.URL]; dup {
				continue
			}
			seen[link.URL] = struct{}{}
			links = append(links, link)
		}

		if err := c.tracker.Record(term, page); err != nil {
			c.logger.Error("checkpoint update failed",
				zap.String("term", term), zap.Int("page", page), zap.Error(err))
		}

		if result.MaxPages > 0 {
			maxPages = result.MaxPages
		}
		if maxPages > 0 && page >= maxPages {
			c.logger.Debug("page bound reached",
				zap.String("term", term), zap.Int("page", page), zap.Int("max_pages", maxPages))
			break
		}
		if !result.HasNext {
			c.logger.Debug("no next page",
				zap.String("term", term), zap.Int("page", page))
			break
		}
		page++
	}

	c.logger.Info("link collection finished",
		zap.String("term", term), zap.Int("links", len(links)))
	return links
}

// processLinks visits collected links in discovery order, skipping anything
// already stored. Extraction failures and title mismatches both count toward
// the consecutive-failure circuit breaker; any success resets it.
func (c *Controller) processLinks(ctx context.Context, term string, links []litsource.Link) {
	failures := 0
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}

		stored, err := c.docs.HasDocument(ctx, link.URL)
		if err != nil {
			c.logger.Error("document lookup failed",
				zap.String("term", term), zap.String("link", link.URL), zap.Error(err))
			continue
		}
		if stored {
			c.logger.Debug("document already stored, skipping",
				zap.String("term", term), zap.String("link", link.URL))
			continue
		}

		c.pacer.Wait(ctx)
		rec, err := c.extractor.Extract(ctx, link.URL)
		if err != nil {
			if c.linkFailed(term, link.URL, "extraction", "extraction failed: "+err.Error(), &failures) {
				return
			}
			continue
		}
		if !match.Mentions(rec.Title, term) {
			if c.linkFailed(term, link.URL, "title_mismatch", "title does not mention term", &failures) {
				return
			}
			continue
		}
		failures = 0

		c.persist(ctx, term, rec)
	}
}

// linkFailed records one skipped link and reports whether the breaker
// tripped.
func (c *Controller) linkFailed(term, link, kind, reason string, failures *int) bool {
	c.failures.Record(term, link, reason)
	metrics.ObserveLinkFailure(term, kind)
	c.logger.Warn("link skipped",
		zap.String("term", term), zap.String("link", link), zap.String("reason", reason))

	*failures++
	if *failures >= c.cfg.BreakerThreshold {
		metrics.ObserveBreakerTrip(term)
		c.logger.Warn("circuit breaker tripped, abandoning remaining links",
			zap.String("term", term), zap.Int("consecutive_failures", *failures))
		return true
	}
	return false
}

// persist resolves the owning drug identity by term name and upserts the
// document under it. Store errors are logged and skipped; they say nothing
// about result drift, so they do not feed the breaker.
func (c *Controller) persist(ctx context.Context, term string, rec *litsource.Record) {
	drugID, err := c.docs.EnsureDrug(ctx, term)
	if err != nil {
		c.logger.Error("drug identity resolution failed",
			zap.String("term", term), zap.String("link", rec.SourceURL), zap.Error(err))
		return
	}

	doc := store.Document{
		SourceURL:   rec.SourceURL,
		PrimaryID:   rec.PrimaryID,
		SecondaryID: rec.SecondaryID,
		Title:       rec.Title,
		Sections:    toStoreSections(rec.Sections),
		Published:   rec.Published,
		DrugID:      drugID,
	}
	id, created, err := c.docs.UpsertDocument(ctx, doc)
	if err != nil {
		c.logger.Error("document upsert failed",
			zap.String("term", term), zap.String("link", rec.SourceURL), zap.Error(err))
		return
	}

	metrics.ObserveDocumentStored(term)
	c.logger.Info("document stored",
		zap.String("term", term),
		zap.String("link", rec.SourceURL),
		zap.Int64("document_id", id),
		zap.Int64("drug_id", drugID),
		zap.Bool("created", created))
}

func toStoreSections(sections []litsource.Section) []store.Section {
	if len(sections) == 0 {
		return nil
	}
	out := make([]store.Section, 0, len(sections))
	for _, s := range sections {
		out = append(out, store.Section{Name: s.Name, Text: s.Text})
	}
	return out
}
