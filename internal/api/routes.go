package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zulandar/loadline/internal/ledger"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/orchestrator"
)

// registerRoutes sets up all API routes.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/emails/inbound", handleInboundEmail(opts))
	v1.GET("/loads/:id", handleLoadStatus(opts))
	v1.GET("/loads/:id/eta", handleLoadETA(opts))
	v1.GET("/threads/:id/entries", handleThreadEntries(opts))
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := opts.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleInboundEmail runs the full pipeline for one broker email and
// returns the run's outcome. The mail provider's webhook points here.
func handleInboundEmail(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in orchestrator.Inbound
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
			return
		}
		if in.ThreadID == "" || in.LoadID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threadId and loadId are required"})
			return
		}

		out, err := opts.Orchestrator.ProcessEmail(c.Request.Context(), in)
		if err != nil {
			opts.Log.Error().Err(err).Str("thread", in.ThreadID).Msg("inbound email failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleLoadStatus(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := loadstate.Get(opts.DB, c.Param("id"))
		if err == loadstate.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "load not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// handleLoadETA proxies the locator service for the configured truck.
func handleLoadETA(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Locator == nil || !opts.Locator.Enabled() {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "locator not configured"})
			return
		}
		truckID := ""
		if opts.Cfg != nil {
			truckID = opts.Cfg.Truck.ID
		}
		pos, err := opts.Locator.Position(c.Request.Context(), truckID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, pos)
	}
}

func handleThreadEntries(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := ledger.Read(opts.DB, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}
