package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/propscout/models"
)

// QueryAssistant turns rental queries into search URLs and summarizes
// scraped records. llm.Client implements it.
type QueryAssistant interface {
	ResolveSearchURL(ctx context.Context, query string) (string, error)
	Summarize(ctx context.Context, query string, records []models.PropertyRecord) (string, error)
}

var errLLMNotConfigured = models.NewScrapeError(models.ErrCodeLLMNotConfigured,
	"set OPENAI_API_KEY to enable query parsing and summaries", nil)

// ParseQuery returns a handler for POST /api/v1/parse-query.
// A nil assistant answers every request with LLM_NOT_CONFIGURED.
func ParseQuery(qa QueryAssistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if qa == nil {
			respondError(c, errLLMNotConfigured, start)
			return
		}

		var req models.ParseQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}
		query := strings.TrimSpace(req.Query)
		if query == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "query must not be blank", nil), start)
			return
		}

		searchURL, err := qa.ResolveSearchURL(c.Request.Context(), query)
		if err != nil {
			respondError(c, err, start)
			return
		}

		c.JSON(http.StatusOK, models.ParseQueryResponse{
			Success: true,
			Data:    &models.ParsedQuery{URL: searchURL, RawQuery: req.Query},
		})
	}
}

// Summarize returns a handler for POST /api/v1/summarize.
// A nil assistant answers every request with LLM_NOT_CONFIGURED.
func Summarize(qa QueryAssistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if qa == nil {
			respondError(c, errLLMNotConfigured, start)
			return
		}

		var req models.SummarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), start)
			return
		}

		summary, err := qa.Summarize(c.Request.Context(), req.OriginalQuery, req.Data)
		if err != nil {
			respondError(c, err, start)
			return
		}

		c.JSON(http.StatusOK, models.SummarizeResponse{Success: true, Summary: summary})
	}
}
