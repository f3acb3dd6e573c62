package models

// ScrapeResponse is the successful response for the scrape endpoints.
type ScrapeResponse struct {
	// Success is always true; failures use ErrorResponse.
	// A successful response may still contain NotFound fields.
	Success bool `json:"success"`

	// TotalProperties is len(Properties).
	TotalProperties int `json:"total_properties"`

	// Properties is the ResultList in link discovery order.
	Properties []PropertyRecord `json:"properties"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool         `json:"success"` // always false
	Error   *ErrorDetail `json:"error"`
	Timing  *TimingInfo  `json:"timing,omitempty"`
}

// TimingInfo breaks down the time spent handling a request.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// ParseQueryResponse is the response for POST /api/v1/parse-query.
type ParseQueryResponse struct {
	Success bool         `json:"success"`
	Data    *ParsedQuery `json:"data"`
}

// ParsedQuery carries the search URL resolved from a natural-language query.
type ParsedQuery struct {
	URL      string `json:"url"`
	RawQuery string `json:"raw_query"`
}

// SummarizeResponse is the response for POST /api/v1/summarize.
type SummarizeResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"` // "healthy" or "degraded"
	Uptime  string      `json:"uptime"`
	Backend string      `json:"backend"`
	Stats   ScrapeStats `json:"stats"`
	Version string      `json:"version"`
}
