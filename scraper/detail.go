package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/models"
)

// FieldResult is the outcome of extracting one field: either Text or Err.
type FieldResult struct {
	Text string
	Err  error
}

// OrNotFound collapses the result to its text, or models.NotFound on error.
func (r FieldResult) OrNotFound() string {
	if r.Err != nil {
		return models.NotFound
	}
	return r.Text
}

// ExtractField reads the textContent of the single element matched by loc.
// Zero or several matches are extraction errors wrapping browser.ErrNoMatch
// and browser.ErrAmbiguousMatch respectively.
func ExtractField(ctx context.Context, page browser.Page, loc browser.Locator) FieldResult {
	elems, err := page.Locate(ctx, loc)
	if err != nil {
		return FieldResult{Err: models.NewScrapeError(models.ErrCodeExtraction, "locator query failed", err)}
	}
	switch n := len(elems); {
	case n == 0:
		return FieldResult{Err: models.NewScrapeError(models.ErrCodeExtraction, loc.String(), browser.ErrNoMatch)}
	case n > 1:
		return FieldResult{Err: models.NewScrapeError(models.ErrCodeExtraction,
			fmt.Sprintf("%s (%d matches)", loc, n), browser.ErrAmbiguousMatch)}
	}

	text, err := elems[0].TextContent()
	if err != nil {
		return FieldResult{Err: models.NewScrapeError(models.ErrCodeExtraction, "text content failed", err)}
	}
	return FieldResult{Text: text}
}

// ExtractDetail loads origin+relativeURL on page and extracts the three
// fields independently. It never fails: a navigation error yields a record
// with every field set to models.NotFound, and each field falls back to
// models.NotFound on its own.
func ExtractDetail(ctx context.Context, page browser.Page, relativeURL, origin string, locs Locators) models.PropertyRecord {
	target := resolveDetailURL(origin, relativeURL)
	rec := models.NewPropertyRecord(target)

	if err := page.Goto(ctx, target); err != nil {
		slog.Warn("detail page navigation failed, recording placeholders",
			"url", target, "error", categorizeError(err, "navigation to detail page failed"))
		return rec
	}

	fields := []struct {
		name string
		loc  browser.Locator
		dst  *string
	}{
		{"pricing", locs.Pricing, &rec.Pricing},
		{"location", locs.Location, &rec.Location},
		{"description", locs.Description, &rec.Description},
	}
	for _, f := range fields {
		res := ExtractField(ctx, page, f.loc)
		if res.Err != nil {
			slog.Debug("field not extracted", "url", target, "field", f.name, "error", res.Err)
		}
		*f.dst = res.OrNotFound()
	}
	return rec
}

// resolveDetailURL joins origin and ref textually, so the site's href
// reaches the browser byte for byte. Only hrefs carrying their own http(s)
// scheme are used as they are; everything else, including "//host/..."
// hrefs, stays on origin.
func resolveDetailURL(origin, ref string) string {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref
	}
	origin = strings.TrimRight(origin, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return origin + ref
}
