package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/explain"
	"github.com/sawpanic/allostat/internal/metrics"
	"github.com/sawpanic/allostat/internal/persistence"
	"github.com/sawpanic/allostat/internal/pipeline"
)

// Service is the application surface the API exposes
type Service interface {
	AddEntry(ctx context.Context, candidate domain.Entry) (*application.Outcome, error)
	UpdateEntry(ctx context.Context, id string, candidate domain.Entry) (*application.Outcome, error)
	DeleteEntry(ctx context.Context, id string) (*application.Outcome, error)
	Backfill(ctx context.Context) (*pipeline.BackfillResult, error)
	Status(ctx context.Context) (*application.StatusReport, error)
	Explain(ctx context.Context, entryID string) (*explain.Attribution, error)
	Summary(ctx context.Context) (*explain.TrailSummary, error)
	Entries(ctx context.Context) ([]domain.Entry, error)
	Scores(ctx context.Context, tr persistence.TimeRange) ([]domain.ScoreEntry, error)
	Weights(ctx context.Context) (*domain.WeightState, error)
	Conflicts(ctx context.Context) ([]domain.ConflictPattern, error)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RPS            float64       `yaml:"rps"`   // Mutating requests per second per client
	Burst          int           `yaml:"burst"` // Burst capacity for mutating requests
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           "127.0.0.1:8080", // Local-only by default
		RPS:            5,
		Burst:          10,
		RequestTimeout: 30 * time.Second,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// Validate checks the server settings
func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", c.RPS)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// Server is the allostat JSON API
type Server struct {
	router  *mux.Router
	server  *http.Server
	service Service
	health  persistence.RepositoryHealth
	metrics *metrics.Registry
	limiter *clientLimiter
	config  ServerConfig
}

// NewServer creates the router and HTTP server
func NewServer(config ServerConfig, service Service, health persistence.RepositoryHealth, registry *metrics.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		health:  health,
		metrics: registry,
		limiter: newClientLimiter(config.RPS, config.Burst),
		config:  config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/entries", s.handleListEntries).Methods("GET")
	api.HandleFunc("/weights", s.handleWeights).Methods("GET")
	api.HandleFunc("/scores", s.handleScores).Methods("GET")
	api.HandleFunc("/scores/{id}/explain", s.handleExplain).Methods("GET")
	api.HandleFunc("/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/conflicts", s.handleConflicts).Methods("GET")

	// mutating routes share the per-client rate limit
	api.Handle("/entries", s.rateLimited(s.handleAddEntry)).Methods("POST")
	api.Handle("/entries/{id}", s.rateLimited(s.handleUpdateEntry)).Methods("PUT")
	api.Handle("/entries/{id}", s.rateLimited(s.handleDeleteEntry)).Methods("DELETE")
	api.Handle("/backfill", s.rateLimited(s.handleBackfill)).Methods("POST")

	s.router.NotFoundHandler = s.jsonContentTypeMiddleware(http.HandlerFunc(s.handleNotFound))
}

// Handler exposes the router, used by tests and embedding servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
