package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/propscout/api/handler"
	"github.com/use-agent/propscout/cache"
	"github.com/use-agent/propscout/config"
)

// queryMaxProperties is the GET /scrape default, the limit the serverless
// entry point has always used.
const queryMaxProperties = 3

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//
// qa may be nil, in which case the LLM endpoints answer 503.
func NewRouter(sc handler.PropertyScraper, qa handler.QueryAssistant, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(sc, cfg.Browser.Backend, startTime))

	opts := handler.ScrapeOptions{
		DefaultSearchURL:   cfg.Scraper.DefaultSearchURL,
		QueryMaxProperties: queryMaxProperties,
		RequestTimeout:     cfg.Scraper.RequestTimeout,
	}
	v1.POST("/scrape", handler.Scrape(sc, cc, opts))
	v1.GET("/scrape", handler.ScrapeQuery(sc, cc, opts))

	v1.POST("/parse-query", handler.ParseQuery(qa))
	v1.POST("/summarize", handler.Summarize(qa))

	return r
}
