package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/propscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports scrape counters and degrades status once more than half of at
// least four scrapes have failed, which usually means the browser cannot
// start or the site is blocking us.
func Health(sc PropertyScraper, backend string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.TotalScrapes >= 4 && stats.FailedScrapes*2 > stats.TotalScrapes {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Backend: backend,
			Stats:   stats,
			Version: Version,
		})
	}
}
