package scraper

import (
	"fmt"

	"github.com/use-agent/propscout/browser"
	"github.com/use-agent/propscout/config"
)

// Default locators for the listings site. These are the only place the
// extraction core depends on the site's markup; each one can be overridden
// through configuration when the site changes.
const (
	// DefaultLinkLocator matches detail-page anchors outside the
	// "Recommended search hits" block.
	DefaultLinkLocator = `xpath=//a[contains(@href, 'property/details') and not(ancestor::*[@aria-label='Recommended search hits'])]`

	// DefaultPriceLocator targets the price container by its generated class
	// names. It is expected to break whenever the site rebuilds its CSS.
	DefaultPriceLocator = `css=div[class*="fc84e39c"][class*="cd769dae"]`

	DefaultLocationLocator    = `css=[aria-label="Property header"]`
	DefaultDescriptionLocator = `css=[aria-label="Property description"]`
)

// Locators groups the link locator and the three field locators.
type Locators struct {
	Links       browser.Locator
	Pricing     browser.Locator
	Location    browser.Locator
	Description browser.Locator
}

// DefaultLocators returns the built-in locators.
func DefaultLocators() Locators {
	return Locators{
		Links:       browser.MustParseLocator(DefaultLinkLocator),
		Pricing:     browser.MustParseLocator(DefaultPriceLocator),
		Location:    browser.MustParseLocator(DefaultLocationLocator),
		Description: browser.MustParseLocator(DefaultDescriptionLocator),
	}
}

// LocatorsFromConfig returns DefaultLocators with any configured overrides
// applied. An override that does not compile is an error.
func LocatorsFromConfig(cfg config.ScraperConfig) (Locators, error) {
	locs := DefaultLocators()
	overrides := []struct {
		name string
		expr string
		dst  *browser.Locator
	}{
		{"link", cfg.LinkLocator, &locs.Links},
		{"price", cfg.PriceLocator, &locs.Pricing},
		{"location", cfg.LocationLocator, &locs.Location},
		{"description", cfg.DescriptionLocator, &locs.Description},
	}
	for _, o := range overrides {
		if o.expr == "" {
			continue
		}
		loc, err := browser.ParseLocator(o.expr)
		if err != nil {
			return Locators{}, fmt.Errorf("%s locator: %w", o.name, err)
		}
		*o.dst = loc
	}
	return locs, nil
}
