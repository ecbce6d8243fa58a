// Package server exposes the aggregation core over HTTP.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/enzo-prism/ship-api/internal/gateway"
	"github.com/enzo-prism/ship-api/internal/usecase"
)

// NewRouter builds the gin engine with the commit feed endpoint and a
// health probe.
func NewRouter(agg *usecase.Aggregator, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// The feed is public and read-only.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/commits", handleCommits(agg, logger))
	return router
}

func handleCommits(agg *usecase.Aggregator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := agg.ParseQuery(usecase.QueryParams{
			Repo:  c.Query("repo"),
			Range: c.Query("range"),
			Since: c.Query("since"),
			Until: c.Query("until"),
			Tz:    c.Query("tz"),
			Page:  c.Query("page"),
		})
		if err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := agg.Aggregate(c.Request.Context(), query)
		if err != nil {
			status, message := classifyError(err)
			if status == http.StatusInternalServerError {
				logger.Error("aggregation failed", "error", err)
			}
			jsonError(c, status, message)
			return
		}

		maxAge, staleWhileRevalidate := 900, 900
		authValue := "none"
		if resp.Authenticated {
			maxAge, staleWhileRevalidate = 60, 300
			authValue = "token"
		}
		c.Header("Cache-Control", fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d", maxAge, staleWhileRevalidate))
		c.Header("X-Ship-Auth", authValue)
		if len(resp.Failures) > 0 || resp.Truncated {
			c.Header("X-Ship-Partial", "1")
		}
		if resp.Truncated {
			c.Header("X-Ship-Truncated", "1")
		}
		if len(resp.Failures) > 0 {
			c.Header("X-Ship-Repo-Failures", strconv.Itoa(len(resp.Failures)))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// classifyError maps aggregation failures onto the response taxonomy:
// upstream failures become 502s with friendlier messages for the auth and
// rate-limit sub-cases, anything else is a 500.
func classifyError(err error) (int, string) {
	var upstream *gateway.UpstreamError
	if errors.As(err, &upstream) {
		switch {
		case upstream.IsRateLimit():
			return http.StatusBadGateway, "GitHub API rate limit reached. Try again shortly."
		case upstream.IsAuth():
			return http.StatusBadGateway, "GitHub API authentication failed. Try again later."
		default:
			return http.StatusBadGateway, "GitHub API error: " + upstream.Message
		}
	}
	return http.StatusInternalServerError, err.Error()
}

// jsonError writes a non-cacheable error body.
func jsonError(c *gin.Context, status int, message string) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, gin.H{"error": message})
}
