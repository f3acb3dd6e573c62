package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/propscout/cache"
	"github.com/use-agent/propscout/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type scrapeCall struct {
	url string
	max int
}

type fakeScraper struct {
	mu      sync.Mutex
	calls   []scrapeCall
	records []models.PropertyRecord
	err     error
	stats   models.ScrapeStats
	limit   int
}

func (f *fakeScraper) Scrape(ctx context.Context, searchURL string, maxProperties int) ([]models.PropertyRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, scrapeCall{searchURL, maxProperties})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if maxProperties < len(f.records) {
		return f.records[:maxProperties], nil
	}
	return f.records, nil
}

func (f *fakeScraper) Limit(n int) int {
	if n <= 0 {
		return 5
	}
	if f.limit > 0 && n > f.limit {
		return f.limit
	}
	return n
}

func (f *fakeScraper) Stats() models.ScrapeStats { return f.stats }

func threeRecords() []models.PropertyRecord {
	out := make([]models.PropertyRecord, 0, 3)
	for _, u := range []string{"a", "b", "c"} {
		rec := models.NewPropertyRecord("https://www.bayut.com/property/details-" + u + ".html")
		rec.Location = "Dubai"
		out = append(out, rec)
	}
	return out
}

const defaultSearch = "https://www.bayut.com/to-rent/villas/uae/?rent_frequency=monthly"

func newEngine(sc PropertyScraper, cc *cache.Cache, qa QueryAssistant) *gin.Engine {
	opts := ScrapeOptions{DefaultSearchURL: defaultSearch, QueryMaxProperties: 3, RequestTimeout: time.Minute}
	r := gin.New()
	r.POST("/scrape", Scrape(sc, cc, opts))
	r.GET("/scrape", ScrapeQuery(sc, cc, opts))
	r.POST("/parse-query", ParseQuery(qa))
	r.POST("/summarize", Summarize(qa))
	r.GET("/health", Health(sc, "http", time.Now()))
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestScrape_Success(t *testing.T) {
	sc := &fakeScraper{records: threeRecords()}
	r := newEngine(sc, nil, nil)

	w := do(t, r, http.MethodPost, "/scrape", map[string]any{"url": defaultSearch, "max_properties": 2})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TotalProperties)
	assert.Equal(t, threeRecords()[:2], resp.Properties)
	assert.Empty(t, resp.CacheStatus)
	assert.Equal(t, []scrapeCall{{defaultSearch, 2}}, sc.calls)
}

func TestScrape_DefaultMaxProperties(t *testing.T) {
	sc := &fakeScraper{records: threeRecords()}
	r := newEngine(sc, nil, nil)

	w := do(t, r, http.MethodPost, "/scrape", map[string]any{"url": defaultSearch})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []scrapeCall{{defaultSearch, 5}}, sc.calls)
}

func TestScrape_EmptyResultIsArray(t *testing.T) {
	sc := &fakeScraper{records: []models.PropertyRecord{}}
	r := newEngine(sc, nil, nil)

	w := do(t, r, http.MethodPost, "/scrape", map[string]any{"url": defaultSearch})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, w.Body.Bytes(), "properties")))
}

func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	v, ok := m[name]
	require.True(t, ok, "missing field %q", name)
	return v
}

func TestScrape_MissingURL(t *testing.T) {
	sc := &fakeScraper{}
	r := newEngine(sc, nil, nil)

	w := do(t, r, http.MethodPost, "/scrape", map[string]any{"max_properties": 2})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[models.ErrorResponse](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
	assert.Equal(t, "No URL provided to scraper", resp.Error.Message)
	assert.Empty(t, sc.calls)
}

func TestScrape_InvalidInput(t *testing.T) {
	r := newEngine(&fakeScraper{}, nil, nil)

	for name, body := range map[string]any{
		"not a url":    map[string]any{"url": "bayut villas"},
		"negative max": map[string]any{"url": defaultSearch, "max_properties": -1},
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/scrape", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestScrape_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.NewScrapeError(models.ErrCodeNavigation, "navigation to search page failed", nil), http.StatusBadGateway, models.ErrCodeNavigation},
		{models.NewScrapeError(models.ErrCodeTimeout, "request canceled", nil), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{models.NewScrapeError(models.ErrCodeResource, "failed to launch browser", nil), http.StatusServiceUnavailable, models.ErrCodeResource},
		{errors.New("unexpected"), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r := newEngine(&fakeScraper{err: tt.err}, nil, nil)
			w := do(t, r, http.MethodPost, "/scrape", map[string]any{"url": defaultSearch})
			assert.Equal(t, tt.status, w.Code)

			resp := decode[models.ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestScrape_Cache(t *testing.T) {
	sc := &fakeScraper{records: threeRecords()}
	cc := cache.New(10)
	defer cc.Close()
	r := newEngine(sc, cc, nil)

	body := map[string]any{"url": defaultSearch, "max_properties": 3, "max_age": 60000}

	first := decode[models.ScrapeResponse](t, do(t, r, http.MethodPost, "/scrape", body))
	assert.Equal(t, "miss", first.CacheStatus)

	second := decode[models.ScrapeResponse](t, do(t, r, http.MethodPost, "/scrape", body))
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.Properties, second.Properties)
	assert.Len(t, sc.calls, 1)

	// Without max_age the cache is bypassed.
	third := decode[models.ScrapeResponse](t, do(t, r, http.MethodPost, "/scrape", map[string]any{"url": defaultSearch, "max_properties": 3}))
	assert.Empty(t, third.CacheStatus)
	assert.Len(t, sc.calls, 2)
}

func TestScrapeQuery_Defaults(t *testing.T) {
	sc := &fakeScraper{records: threeRecords()}
	r := newEngine(sc, nil, nil)

	w := do(t, r, http.MethodGet, "/scrape", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []scrapeCall{{defaultSearch, 3}}, sc.calls)

	w = do(t, r, http.MethodGet, "/scrape?url=https%3A%2F%2Fwww.bayut.com%2Fto-rent%2Fapartments%2Fdubai%2F&max_properties=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scrapeCall{"https://www.bayut.com/to-rent/apartments/dubai/", 1}, sc.calls[1])
	assert.Equal(t, 1, decode[models.ScrapeResponse](t, w).TotalProperties)
}

type fakeAssistant struct {
	url     string
	summary string
	err     error
	gotData []models.PropertyRecord
	gotQ    string
}

func (f *fakeAssistant) ResolveSearchURL(ctx context.Context, query string) (string, error) {
	f.gotQ = query
	return f.url, f.err
}

func (f *fakeAssistant) Summarize(ctx context.Context, query string, records []models.PropertyRecord) (string, error) {
	f.gotQ = query
	f.gotData = records
	return f.summary, f.err
}

func TestParseQuery(t *testing.T) {
	qa := &fakeAssistant{url: defaultSearch}
	r := newEngine(&fakeScraper{}, nil, qa)

	w := do(t, r, http.MethodPost, "/parse-query", map[string]any{"query": "villa in UAE 5k-6k monthly"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.ParseQueryResponse](t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, defaultSearch, resp.Data.URL)
	assert.Equal(t, "villa in UAE 5k-6k monthly", resp.Data.RawQuery)
}

func TestParseQuery_Blank(t *testing.T) {
	r := newEngine(&fakeScraper{}, nil, &fakeAssistant{})
	w := do(t, r, http.MethodPost, "/parse-query", map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQuery_LLMErrors(t *testing.T) {
	qa := &fakeAssistant{err: models.NewScrapeError(models.ErrCodeLLMRateLimited, "slow down", nil)}
	r := newEngine(&fakeScraper{}, nil, qa)

	w := do(t, r, http.MethodPost, "/parse-query", map[string]any{"query": "studio"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeLLMRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestLLMEndpoints_NotConfigured(t *testing.T) {
	r := newEngine(&fakeScraper{}, nil, nil)

	for _, path := range []string{"/parse-query", "/summarize"} {
		w := do(t, r, http.MethodPost, path, map[string]any{"query": "studio"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, models.ErrCodeLLMNotConfigured, decode[models.ErrorResponse](t, w).Error.Code)
	}
}

func TestSummarize(t *testing.T) {
	qa := &fakeAssistant{summary: "Three villas in Dubai."}
	r := newEngine(&fakeScraper{}, nil, qa)

	w := do(t, r, http.MethodPost, "/summarize", map[string]any{
		"data":           threeRecords(),
		"original_query": "villas in Dubai",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.SummarizeResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Three villas in Dubai.", resp.Summary)
	assert.Equal(t, "villas in Dubai", qa.gotQ)
	assert.Equal(t, threeRecords(), qa.gotData)
}

func TestHealth(t *testing.T) {
	sc := &fakeScraper{stats: models.ScrapeStats{TotalScrapes: 10, FailedScrapes: 1}}
	w := do(t, newEngine(sc, nil, nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "http", resp.Backend)
	assert.Equal(t, int64(10), resp.Stats.TotalScrapes)
	assert.Equal(t, Version, resp.Version)

	sc.stats = models.ScrapeStats{TotalScrapes: 6, FailedScrapes: 4}
	resp = decode[models.HealthResponse](t, do(t, newEngine(sc, nil, nil), http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", resp.Status)
}
