package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/triagebot/internal/metadata"
	"github.com/triagebot/internal/orchestrator"
)

// EventProcessor consumes inbound issue events. Implemented by the
// reconciliation orchestrator; faked in tests.
type EventProcessor interface {
	Process(ctx context.Context, event orchestrator.Event) error
}

// Freshener triggers a throttled sync of the metadata checkout.
type Freshener interface {
	EnsureFresh(ctx context.Context) error
}

// Server is the HTTP front door: webhook intake, maintainer queries and
// a health endpoint.
type Server struct {
	echo *echo.Echo
	port int

	processor EventProcessor
	syncer    Freshener
	store     *metadata.Store

	// webhookSecret signs inbound webhook bodies (HMAC-SHA1).
	webhookSecret []byte
	// repo is the full name ("owner/name") of the tracked repository;
	// push events for other repositories are ignored.
	repo string

	maintainerCache *ttlCache
}

// NewServer creates a new API server
func NewServer(port int, processor EventProcessor, syncer Freshener, store *metadata.Store, webhookSecret, repo string) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	server := &Server{
		echo:            e,
		port:            port,
		processor:       processor,
		syncer:          syncer,
		store:           store,
		webhookSecret:   []byte(webhookSecret),
		repo:            repo,
		maintainerCache: newTTLCache(60 * time.Second),
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	s.echo.POST("/webhook", s.handleWebhook)
	s.echo.GET("/maintainers", s.handleMaintainers)
}

// Start begins the API server
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
