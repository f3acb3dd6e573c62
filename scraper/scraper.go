package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/config"
	"github.com/use-agent/propscout/models"
)

// Scraper runs the search-then-detail crawl. Each Scrape call owns a fresh
// browser session, so a Scraper is safe for concurrent use.
type Scraper struct {
	launcher browser.Launcher
	cfg      config.ScraperConfig
	locators Locators

	active atomic.Int32
	total  atomic.Int64
	failed atomic.Int64
}

// New validates cfg and builds a Scraper that acquires sessions from l.
func New(l browser.Launcher, cfg config.ScraperConfig) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	locs, err := LocatorsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Scraper{launcher: l, cfg: cfg, locators: locs}, nil
}

// Stats returns a snapshot of scrape counters.
func (s *Scraper) Stats() models.ScrapeStats {
	return models.ScrapeStats{
		ActiveScrapes: int(s.active.Load()),
		TotalScrapes:  s.total.Load(),
		FailedScrapes: s.failed.Load(),
	}
}

// Limit returns the number of detail pages a request for maxProperties
// will visit: the configured default when maxProperties <= 0, clamped to
// the configured limit.
func (s *Scraper) Limit(maxProperties int) int {
	if maxProperties <= 0 {
		maxProperties = s.cfg.MaxProperties
	}
	if s.cfg.MaxPropertiesLimit > 0 && maxProperties > s.cfg.MaxPropertiesLimit {
		maxProperties = s.cfg.MaxPropertiesLimit
	}
	return maxProperties
}

// Scrape loads searchURL, collects detail links and extracts a record from
// each of the first maxProperties links, one page at a time.
//
// The session is closed on every return path. The call fails as a whole
// only when the session cannot be acquired or released, the search page
// cannot be loaded, or ctx ends; detail-page problems degrade single
// records to models.NotFound fields.
func (s *Scraper) Scrape(ctx context.Context, searchURL string, maxProperties int) (records []models.PropertyRecord, err error) {
	limit := s.Limit(maxProperties)

	s.active.Add(1)
	s.total.Add(1)
	defer func() {
		s.active.Add(-1)
		if err != nil {
			s.failed.Add(1)
		}
	}()

	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, resourceError(err, "failed to launch browser")
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Error("browser session release failed", "error", closeErr)
			if err == nil {
				records = nil
				err = models.NewScrapeError(models.ErrCodeResource, "failed to release browser session", closeErr)
			}
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, resourceError(err, "failed to open page")
	}

	if err := page.Goto(ctx, searchURL); err != nil {
		return nil, categorizeError(err, "navigation to search page failed")
	}

	links, err := CollectLinks(ctx, page, s.locators.Links, s.cfg.DetailPathSegment)
	if err != nil {
		return nil, err
	}
	slog.Info("search page scraped", "url", searchURL, "links", len(links), "limit", limit)
	if len(links) > limit {
		links = links[:limit]
	}

	records = make([]models.PropertyRecord, 0, len(links))
	for i, link := range links {
		records = append(records, ExtractDetail(ctx, page, link, s.cfg.BaseOrigin, s.locators))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, categorizeError(ctxErr, fmt.Sprintf("scrape interrupted after %d of %d properties", i+1, len(links)))
		}
	}
	return records, nil
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to HTTP status codes. ScrapeErrors pass through unchanged.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// resourceError is categorizeError for session acquisition: anything that
// is not a context error is a resource failure.
func resourceError(err error, msg string) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return categorizeError(err, msg)
	}
	return models.NewScrapeError(models.ErrCodeResource, msg, err)
}
