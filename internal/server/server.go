package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/forgeline/healer/internal/ciwatcher"
	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/journal"
	"github.com/forgeline/healer/internal/metrics"
	"github.com/forgeline/healer/internal/synthesizer"
)

// Config holds server configuration.
type Config struct {
	Addr string // listen address, e.g. ":8080"
}

// Deps are the shared, process-wide dependencies every submitted run's
// Orchestrator is built from. Each run still gets its own event
// broadcaster and logger, scoped to that run's identity.
type Deps struct {
	Journal    journal.Journal
	Metrics    *metrics.Collectors
	Synth      *synthesizer.Synthesizer
	Completion *completion.Client
	Watcher    *ciwatcher.Watcher
	WorkRoot   string
	OutputsDir string
	Remote     string

	// Redis, if set, relays every run's events to a pub/sub channel so a
	// second process can subscribe without sharing memory with this
	// server.
	Redis *redis.Client
}

// Server is the HTTP API gateway: it accepts run-start commands, launches
// one orchestrator per run in the background, and serves status/event
// stream queries against the in-flight and completed runs it knows about.
type Server struct {
	config   Config
	deps     Deps
	registry *Registry
	baseCtx  context.Context
	cancel   context.CancelFunc
	httpSrv  *http.Server
	logger   *zap.SugaredLogger
}

// New creates a new Server with the given config and dependencies.
func New(cfg Config, deps Deps, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		deps:     deps,
		registry: NewRegistry(),
		baseCtx:  ctx,
		cancel:   cancel,
		logger:   logger.Sugar().Named("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleSubmitRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /runs/{id}/results", s.handleGetResults)
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)

	s.httpSrv = &http.Server{
		Handler:      csrfProtect(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s
}

// ListenAndServe starts the server and blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.config.Addr)
	s.httpSrv.Addr = s.config.Addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// csrfProtect rejects cross-origin POST requests from anything but a
// localhost-family origin, the way a browser-reachable run-start endpoint
// needs to without blocking CLI/programmatic callers, which either omit
// Origin entirely or set it to match the server.
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			origin := r.Header.Get("Origin")
			if origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					http.Error(w, `{"error":"invalid Origin header"}`, http.StatusForbidden)
					return
				}
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					http.Error(w, `{"error":"cross-origin request blocked"}`, http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown cancels every in-flight run and stops the HTTP server.
func (s *Server) Shutdown() {
	s.registry.CancelAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	s.cancel()
}
