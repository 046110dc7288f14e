// Package server exposes the extraction pipeline over HTTP: document
// extraction, schema analysis, health and call-log inspection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/distill/internal/config"
	"github.com/jackzampolin/distill/internal/engine"
	"github.com/jackzampolin/distill/internal/llmcall"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/scorer"
)

// Server is the main distill HTTP server. Provider clients reload when the
// config file changes; in-flight extractions keep the client they started
// with.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	callStore  *llmcall.Store
	recorder   *llmcall.Recorder
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)
	registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

	cfg.ConfigManager.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		cfg.Logger.Info("provider registry reloaded from config")
	})

	store := llmcall.NewStore(llmcall.DefaultCapacity)

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		callStore: store,
		recorder:  llmcall.NewRecorder(store),
		logger:    cfg.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // extractions can run many LLM calls
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.configMgr.WatchConfig()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// CallStore returns the in-memory LLM call log.
func (s *Server) CallStore() *llmcall.Store {
	return s.callStore
}

// newEngine builds an engine from the current configuration. Called per
// request so config reloads take effect without restart.
func (s *Server) newEngine() (*engine.Engine, error) {
	cfg := s.configMgr.Get()

	client, err := s.registry.Get(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	sc := scorer.New(scorer.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		FieldWeight:         cfg.Scoring.FieldWeight,
		CompletenessWeight:  cfg.Scoring.CompletenessWeight,
		ConsistencyWeight:   cfg.Scoring.ConsistencyWeight,
		SchemaValidWeight:   cfg.Scoring.SchemaValidWeight,
		RequiredFactor:      cfg.Scoring.RequiredFactor,
		OptionalMissing:     cfg.Scoring.OptionalMissing,
	})

	opts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithRecorder(s.recorder),
	}
	if limiter := s.registry.Limiter(cfg.LLM.Provider); limiter != nil {
		opts = append(opts, engine.WithRateLimiter(limiter))
	}

	return engine.New(engine.Config{
		MaxTokensPerRequest:       cfg.MaxTokensPerRequest,
		DocumentChunkThreshold:    cfg.DocumentChunkThreshold,
		SchemaChunkThreshold:      cfg.SchemaChunkThreshold,
		OverlapTokens:             cfg.OverlapTokens,
		SinglePassDepthThreshold:  cfg.SinglePassDepthThreshold,
		SinglePassObjectThreshold: cfg.SinglePassObjectThreshold,
		MaxConcurrentCalls:        cfg.MaxConcurrentCalls,
		RequestTimeout:            cfg.RequestTimeout(),
		MaxRetries:                cfg.LLM.MaxRetries,
		RetryDelay:                cfg.RetryDelay(),
		Model:                     cfg.LLM.Model,
	}, client, sc, opts...), nil
}
