// Package api serves the Pipedesk JSON API over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/zulandar/pipedesk/internal/auth"
	"github.com/zulandar/pipedesk/internal/config"
	"github.com/zulandar/pipedesk/internal/pipeline"
	"gorm.io/gorm"
)

// Server holds the dependencies shared by the API handlers.
type Server struct {
	db        *gorm.DB
	cfg       *config.Config
	issuer    *auth.Issuer
	pipelines *pipeline.Service
	log       io.Writer
}

// New returns a Server backed by db and configured by cfg.
func New(db *gorm.DB, cfg *config.Config) *Server {
	return &Server{
		db:        db,
		cfg:       cfg,
		issuer:    auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		pipelines: pipeline.NewService(db, cfg.Pipeline.DefaultStages),
	}
}

// Handler returns the routed API, wrapped with CORS when origins are
// configured.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	if s.log != nil {
		router.Use(gin.LoggerWithWriter(s.log))
	}
	router.Use(metrics)

	registerRoutes(router, s)

	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return router
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB     *gorm.DB
	Config *config.Config
	Port   int       // overrides Config.Server.Port when set
	Out    io.Writer // startup banner and request log; nil disables both
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Config == nil {
		return fmt.Errorf("api: config is required")
	}
	port := opts.Port
	if port <= 0 {
		port = opts.Config.Server.Port
	}
	if port <= 0 {
		port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	s := New(opts.DB, opts.Config)
	s.log = opts.Out

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Pipedesk API listening on http://localhost:%d\n", port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
