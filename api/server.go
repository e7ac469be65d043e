// Package api provides the HTTP REST server for the market-data gateway.
//
// Every data request returns 200 with a normalized envelope; degraded
// responses carry their diagnosis in meta/warning rather than an error
// status. The only client-visible failure is 400 for a missing symbol.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marketgate/internal/gateway"
	"marketgate/internal/market"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	svc    *gateway.Service
	log    *slog.Logger
}

// Options configures the server.
type Options struct {
	Service     *gateway.Service
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{svc: opts.Service, log: opts.Logger}
	s.router = s.buildRouter(opts.CORSOrigins)
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router { return s.router }

// ListenAndServe starts the server with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	s.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

func (s *Server) buildRouter(corsOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if len(corsOrigins) > 0 {
		origins = corsOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/market", s.handleMarket)
		r.Get("/market/{symbol}", s.handleMarket)
		r.Get("/kinds", s.handleKinds)
	})

	return r
}

// ErrorResponse is the body of a non-200 response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleKinds lists the canonical kinds the gateway serves.
func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"kinds":   market.SupportedKinds(),
		"default": market.DefaultKind,
	})
}

// handleMarket decodes query parameters and delegates to the gateway
// service. Symbol may arrive as a path segment or a query parameter.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		symbol = r.URL.Query().Get("symbol")
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	req := gateway.Request{
		Symbol:   symbol,
		Kind:     r.URL.Query().Get("kind"),
		Limit:    limit,
		Interval: r.URL.Query().Get("interval"),
	}

	env, err := s.svc.Handle(r.Context(), req)
	if err != nil {
		// The service's only error is a missing symbol.
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if env.Warning != "" {
		s.log.Debug("degraded response",
			"symbol", env.Symbol, "kind", env.Meta.Kind,
			"source", env.Meta.Source, "reason", env.Meta.Reason)
	}
	writeJSON(w, http.StatusOK, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}
