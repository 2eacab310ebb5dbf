// Package server exposes the assistant over HTTP: the chat endpoint plus
// catalog, lead, and operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bikeshop-agent/internal/common/database"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/engine"
	"bikeshop-agent/internal/index"
	"bikeshop-agent/internal/lead"
	"bikeshop-agent/internal/retrieval"
)

// HealthChecker reports whether the embedding backend is reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

type Server struct {
	engine    *engine.Engine
	retriever *retrieval.Retriever
	idx       *index.CatalogIndex
	leadStore *lead.Store
	redis     *database.RedisClient
	postgres  *database.PostgresClient
	embedder  HealthChecker
	logger    logger.Logger
}

func New(
	eng *engine.Engine,
	retriever *retrieval.Retriever,
	idx *index.CatalogIndex,
	leadStore *lead.Store,
	redis *database.RedisClient,
	postgres *database.PostgresClient,
	embedder HealthChecker,
	log logger.Logger,
) *Server {
	return &Server{
		engine:    eng,
		retriever: retriever,
		idx:       idx,
		leadStore: leadStore,
		redis:     redis,
		postgres:  postgres,
		embedder:  embedder,
		logger:    log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Router wires all routes with the standard middleware stack.
func (s *Server) Router(requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Post("/chat", s.handleChat)
	r.Get("/products", s.handleProducts)
	r.Get("/search", s.handleSearch)
	r.Get("/leads", s.handleLeads)
	r.Get("/analytics", s.handleAnalytics)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
