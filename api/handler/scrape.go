package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/propscout/cache"
	"github.com/use-agent/propscout/models"
)

// PropertyScraper is the part of scraper.Scraper the handlers need.
type PropertyScraper interface {
	Scrape(ctx context.Context, searchURL string, maxProperties int) ([]models.PropertyRecord, error)
	Limit(maxProperties int) int
	Stats() models.ScrapeStats
}

// ScrapeOptions carries the server-side defaults for the scrape endpoints.
type ScrapeOptions struct {
	// DefaultSearchURL is used by GET when no url parameter is given.
	DefaultSearchURL string

	// QueryMaxProperties is the GET default for max_properties.
	QueryMaxProperties int

	// RequestTimeout bounds a single scrape; zero means no extra bound.
	RequestTimeout time.Duration
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Flow:
//  1. Parse & validate the JSON body; url is required.
//  2. Cache lookup when max_age > 0.
//  3. Scraper.Scrape under the request timeout.
//  4. Cache store, fill timing, return 200.
func Scrape(sc PropertyScraper, cc *cache.Cache, opts ScrapeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		if req.URL == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "No URL provided to scraper", nil), start)
			return
		}

		runScrape(c, sc, cc, opts, req, start)
	}
}

// ScrapeQuery returns a handler for GET /api/v1/scrape?url=&max_properties=.
// Both parameters are optional: url falls back to the configured search URL
// and max_properties to opts.QueryMaxProperties.
func ScrapeQuery(sc PropertyScraper, cc *cache.Cache, opts ScrapeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		if req.URL == "" {
			req.URL = opts.DefaultSearchURL
		}
		if req.MaxProperties == 0 {
			req.MaxProperties = opts.QueryMaxProperties
		}

		runScrape(c, sc, cc, opts, req, start)
	}
}

func runScrape(c *gin.Context, sc PropertyScraper, cc *cache.Cache, opts ScrapeOptions, req models.ScrapeRequest, start time.Time) {
	limit := sc.Limit(req.MaxProperties)
	useCache := cc != nil && req.MaxAge > 0
	key := cache.Key(req.URL, limit)

	if useCache {
		if records, hit := cc.Get(key, req.MaxAge); hit {
			c.JSON(http.StatusOK, models.ScrapeResponse{
				Success:         true,
				TotalProperties: len(records),
				Properties:      records,
				CacheStatus:     "hit",
				Timing:          models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
			})
			return
		}
	}

	ctx := c.Request.Context()
	if opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		defer cancel()
	}

	records, err := sc.Scrape(ctx, req.URL, limit)
	if err != nil {
		respondError(c, err, start)
		return
	}

	resp := models.ScrapeResponse{
		Success:         true,
		TotalProperties: len(records),
		Properties:      records,
	}
	if useCache {
		cc.Set(key, records)
		resp.CacheStatus = "miss"
	}
	resp.Timing = models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}

	c.JSON(http.StatusOK, resp)
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, start time.Time) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ErrorResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  &models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeResource, models.ErrCodeLLMNotConfigured:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized // 401
	case models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
