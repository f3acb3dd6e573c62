package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the fully-qualified search-results URL. Required for POST.
	// It is passed to the browser untouched.
	URL string `json:"url" form:"url" binding:"omitempty,url"`

	// MaxProperties limits how many detail pages are visited.
	// Default: the server's configured value (5).
	MaxProperties int `json:"max_properties,omitempty" form:"max_properties" binding:"omitempty,min=1"`

	// MaxAge enables the result cache: a cached ResultList younger than
	// MaxAge milliseconds is returned without scraping. 0 disables caching.
	MaxAge int `json:"max_age,omitempty" form:"max_age" binding:"omitempty,min=0"`
}

// ParseQueryRequest is the payload for POST /api/v1/parse-query.
type ParseQueryRequest struct {
	// Query is the natural-language rental search, e.g.
	// "2BR apartment in Dubai Marina under 120k yearly". Required.
	Query string `json:"query" binding:"required"`
}

// SummarizeRequest is the payload for POST /api/v1/summarize.
type SummarizeRequest struct {
	// Data is the ResultList previously returned by the scrape endpoint.
	Data []PropertyRecord `json:"data"`

	// OriginalQuery is the user's query, used to focus the summary.
	OriginalQuery string `json:"original_query"`
}
