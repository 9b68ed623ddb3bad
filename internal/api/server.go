// Package api exposes the inbound-email webhook and the read-only status
// endpoints over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/zulandar/loadline/internal/config"
	"github.com/zulandar/loadline/internal/locator"
	"github.com/zulandar/loadline/internal/orchestrator"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB           *gorm.DB
	Orchestrator *orchestrator.Orchestrator
	Locator      *locator.Client
	Cfg          *config.Config
	Log          zerolog.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Orchestrator == nil {
		return fmt.Errorf("api: orchestrator is required")
	}

	port := 8080
	if opts.Cfg != nil && opts.Cfg.Server.Port > 0 {
		port = opts.Cfg.Server.Port
	}

	router := newRouter(opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	opts.Log.Info().Int("port", port).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
