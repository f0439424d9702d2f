// Package api provides the memory map REST and websocket API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/core/suggest"
	"github.com/FocuswithJustin/memmap/internal/logging"
	"github.com/FocuswithJustin/memmap/internal/server"
)

// Version is reported by the info and health endpoints.
const Version = "0.3.0"

// Server serves one block collection over HTTP.
type Server struct {
	cfg       Config
	blocks    *memmap.Map
	suggester suggest.Suggester
	hub       *Hub
	started   time.Time
}

// NewServer creates a server over blocks. Every change to blocks is logged
// and broadcast to websocket clients once Run is active. A nil suggester
// answers every request with suggest.ErrorPlaceholder.
func NewServer(cfg Config, blocks *memmap.Map, s suggest.Suggester) *Server {
	if s == nil {
		s = suggest.Static(suggest.ErrorPlaceholder)
	}
	srv := &Server{
		cfg:       cfg,
		blocks:    blocks,
		suggester: s,
		hub:       NewHub(),
		started:   time.Now(),
	}
	blocks.Subscribe(func(ev memmap.Event) {
		logging.MapEvent(string(ev.Kind), ev.ID, blocks.Len(), "fingerprint", ev.Fingerprint)
		srv.hub.MapChanged(ev)
	})
	return srv
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run runs the websocket hub until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// Routes registers the API endpoints on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/blocks", s.handleBlocks)
	mux.HandleFunc("/blocks/", s.handleBlockByID)
	mux.HandleFunc("/derive", s.handleDerive)
	mux.HandleFunc("/layout", s.handleLayout)
	mux.HandleFunc("/overlaps", s.handleOverlaps)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/suggest", s.handleSuggest)
	mux.HandleFunc("/convert/hex", s.handleConvertHex)
	mux.HandleFunc("/convert/size", s.handleConvertSize)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// Handler wraps Routes in the full API middleware chain with request
// logging outermost. ctx bounds the rate limiter's cleanup goroutine.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return logging.CombinedMiddleware(s.Protect(ctx, s.Routes()))
}

// Protect wraps next in CORS, rate limiting, authentication and security
// headers, outermost first. It is used directly when the API is mounted
// inside another server that already logs requests.
func (s *Server) Protect(ctx context.Context, next http.Handler) http.Handler {
	handler := server.SecurityHeadersWithCSP(server.APICSPConfig(), next)

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if s.cfg.RateLimitRequests > 0 {
		limiter := NewRateLimiter(ctx, RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		handler = limiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", limiter.config.RequestsPerMinute,
			"burst_size", limiter.config.BurstSize)
	}

	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	if len(s.cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}
	return handler
}

// Start validates cfg and serves the API until ctx is cancelled.
func Start(ctx context.Context, cfg Config, blocks *memmap.Map, s suggest.Suggester) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv := NewServer(cfg, blocks, s)
	go srv.Run(ctx)

	protocol, wsProtocol := "http", "ws"
	if cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", server.AbsPath(cfg.TLS.CertFile))
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, cfg.Port,
		"websocket_protocol", wsProtocol,
		"blocks", blocks.Len())

	return server.Serve(ctx, cfg.Port, cfg.TLS, srv.Handler(ctx))
}
