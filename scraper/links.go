package scraper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/propscout/browser"
)

// CollectLinks reads the href of every element matched by loc on an
// already-loaded search page and returns the distinct values in the order
// they first appear. Elements without an href, or whose href lacks segment,
// are skipped. Any query failure is a navigation error.
func CollectLinks(ctx context.Context, page browser.Page, loc browser.Locator, segment string) ([]string, error) {
	elems, err := page.Locate(ctx, loc)
	if err != nil {
		return nil, categorizeError(err, "failed to query detail links")
	}

	links := make([]string, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	for _, el := range elems {
		href, ok, err := el.Attribute("href")
		if err != nil {
			return nil, categorizeError(err, "failed to read link href")
		}
		if !ok || href == "" || !strings.Contains(href, segment) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, href)
	}

	slog.Debug("detail links collected", "matched", len(elems), "links", len(links))
	return links, nil
}
