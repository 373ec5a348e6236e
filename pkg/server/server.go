// Package server exposes the scene graph and behaviour tracker over a
// JSON HTTP API.
//
// Routes are grouped under /scene/* and /behavior/* plus /health, /status
// and the /auth/* session endpoints. When an authenticator is configured
// every data route requires a Bearer session token.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orneryd/huginn/pkg/auth"
	"github.com/orneryd/huginn/pkg/huginn"
)

// ErrServerClosed is returned by Start after Stop.
var ErrServerClosed = errors.New("server closed")

// Config holds HTTP server settings.
type Config struct {
	// Address to bind to (default: "0.0.0.0")
	Address string
	// Port to listen on (default: 7600)
	Port int
	// ReadTimeout for requests
	ReadTimeout time.Duration
	// WriteTimeout for responses
	WriteTimeout time.Duration
	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration
	// LogRequests logs each request with status and duration
	LogRequests bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0",
		Port:         7600,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Server is the HTTP API server.
type Server struct {
	config   *Config
	analyzer *huginn.Analyzer
	auth     *auth.Authenticator

	httpServer *http.Server
	listener   net.Listener

	closed  atomic.Bool
	started time.Time

	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// New creates a server over an analyzer. The authenticator may be nil, in
// which case all routes are open.
func New(analyzer *huginn.Analyzer, authenticator *auth.Authenticator, config *Config) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		config:   config,
		analyzer: analyzer,
		auth:     authenticator,
	}, nil
}

// Start begins listening for HTTP connections. Non-blocking.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: %v", err)
		}
	}()

	log.Printf("server: listening on %s", listener.Addr())
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler builds the full route table with middleware applied. Exposed so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	mux.HandleFunc("POST /scene/nodes", s.withAuth(s.handleCreateNode))
	mux.HandleFunc("GET /scene/nodes", s.withAuth(s.handleListNodes))
	mux.HandleFunc("GET /scene/nodes/{id}", s.withAuth(s.handleGetNode))
	mux.HandleFunc("PATCH /scene/nodes/{id}", s.withAuth(s.handleUpdateNode))
	mux.HandleFunc("POST /scene/nodes/{id}/position", s.withAuth(s.handlePosition))
	mux.HandleFunc("POST /scene/nodes/{id}/rotation", s.withAuth(s.handleRotation))
	mux.HandleFunc("GET /scene/nodes/{id}/nearby", s.withAuth(s.handleNearby))
	mux.HandleFunc("GET /scene/nodes/{id}/relationships", s.withAuth(s.handleNodeRelationships))
	mux.HandleFunc("POST /scene/children", s.withAuth(s.handleAddChild))
	mux.HandleFunc("POST /scene/relationships", s.withAuth(s.handleCreateRelationship))
	mux.HandleFunc("GET /scene/relationships", s.withAuth(s.handleQueryRelationships))
	mux.HandleFunc("GET /scene/visibility", s.withAuth(s.handleVisibility))
	mux.HandleFunc("GET /scene/blocking", s.withAuth(s.handleBlocking))
	mux.HandleFunc("GET /scene/path", s.withAuth(s.handlePath))
	mux.HandleFunc("POST /scene/clear", s.withAuth(s.handleClear))

	mux.HandleFunc("POST /behavior/analysis/start", s.withAuth(s.handleStartAnalysis))
	mux.HandleFunc("POST /behavior/analysis/stop", s.withAuth(s.handleStopAnalysis))
	mux.HandleFunc("POST /behavior/observations", s.withAuth(s.handleObservation))
	mux.HandleFunc("GET /behavior/profiles", s.withAuth(s.handleListProfiles))
	mux.HandleFunc("GET /behavior/profiles/{id}", s.withAuth(s.handleGetProfile))
	mux.HandleFunc("GET /behavior/profiles/{id}/summary", s.withAuth(s.handleProfileSummary))
	mux.HandleFunc("GET /behavior/profiles/{id}/insights", s.withAuth(s.handleProfileInsights))
	mux.HandleFunc("GET /behavior/patterns", s.withAuth(s.handleListPatterns))

	var handler http.Handler = mux
	handler = s.recoveryMiddleware(handler)
	if s.config.LogRequests {
		handler = s.loggingMiddleware(handler)
	}
	return handler
}

// withAuth requires a valid session token when an authenticator is
// configured.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			handler(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "no authentication provided")
			return
		}
		if _, err := s.auth.ValidateToken(token); err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		handler(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		if r.URL.Path != "/health" {
			log.Printf("server: %s %s -> %d (%s)",
				r.Method, r.URL.Path, wrapped.status, time.Since(start))
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				log.Printf("server: panic: %v\n%s", err, buf[:n])

				s.errorCount.Add(1)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		s.errorCount.Add(1)
	}
	s.writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody unmarshals a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
