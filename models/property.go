package models

// NotFound is the placeholder stored in a field that could not be extracted.
const NotFound = "Not found"

// PropertyRecord holds the three text fields scraped from one detail page.
// Every field is either the raw text content of the matched element or NotFound.
type PropertyRecord struct {
	URL         string `json:"url"`
	Pricing     string `json:"pricing"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// NewPropertyRecord returns a record for url with every field set to NotFound.
func NewPropertyRecord(url string) PropertyRecord {
	return PropertyRecord{
		URL:         url,
		Pricing:     NotFound,
		Location:    NotFound,
		Description: NotFound,
	}
}

// ScrapeStats reports scraper activity for the health endpoint.
type ScrapeStats struct {
	ActiveScrapes int   `json:"active_scrapes"`
	TotalScrapes  int64 `json:"total_scrapes"`
	FailedScrapes int64 `json:"failed_scrapes"`
}
