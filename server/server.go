// Package server exposes the workflow engine over HTTP: a streaming chat
// endpoint, conversation browsing, health, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lumenchat/lumen/ai/core/llm"
	"github.com/lumenchat/lumen/ai/metrics"
	"github.com/lumenchat/lumen/ai/workflow"
	"github.com/lumenchat/lumen/internal/profile"
	"github.com/lumenchat/lumen/store"
)

// Server is the HTTP front of the workflow engine.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	engine     *workflow.Engine
	exporter   *metrics.PrometheusExporter
}

// NewServer wires the LLM gateway, workflow engine, and routes.
func NewServer(ctx context.Context, profile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	llmService, err := llm.NewService(&llm.Config{
		Provider: profile.LLMProvider,
		Model:    profile.LLMModel,
		APIKey:   profile.LLMAPIKey,
		BaseURL:  profile.LLMBaseURL,
		Timeout:  profile.LLMTimeout,
		RPS:      profile.LLMRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm service: %w", err)
	}

	// Warmup is best-effort: a cold provider only costs first-request latency.
	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		llmService.Warmup(warmupCtx)
	}()

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	engine := workflow.NewEngine(llmService, storeInstance,
		workflow.WithBus(exporter.TransitionSink()),
		workflow.WithObserver(exporter),
		workflow.WithMaxConcurrent(profile.MaxConcurrentWorkflows),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		Profile:    profile,
		Store:      storeInstance,
		echoServer: e,
		engine:     engine,
		exporter:   exporter,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	e := s.echoServer

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.POST("/chat", s.handleChat)
	apiV1.GET("/conversations", s.handleListConversations)
	apiV1.GET("/conversations/:uid/messages", s.handleListMessages)
}

// Start begins serving in the background. Listen errors after startup are
// logged, not returned.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server: failed to serve", "addr", addr, "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests, stops the engine's event bus, and
// closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server: failed to shut down http server", "error", err)
	}
	s.engine.Close()
	if err := s.Store.Close(); err != nil {
		slog.Error("server: failed to close store", "error", err)
	}
	slog.Info("server: shut down")
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.Profile.Version,
		"parked_workflows": s.engine.Registry().Len(),
	})
}
