// Package web provides the memory map editor web UI server.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"math/big"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/core/suggest"
	"github.com/FocuswithJustin/memmap/internal/api"
	"github.com/FocuswithJustin/memmap/internal/logging"
	"github.com/FocuswithJustin/memmap/internal/server"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Config holds server configuration.
type Config struct {
	Port int
	TLS  server.TLSConfig
	// API configures the REST API mounted under /api.
	API api.Config
}

// Server serves the editor page, its form posts and static assets, with the
// REST API mounted under /api.
type Server struct {
	cfg       Config
	blocks    *memmap.Map
	suggester suggest.Suggester
	api       *api.Server
	templates *template.Template
	static    *staticCache
}

// NewServer parses the embedded templates and creates a server over blocks.
func NewServer(cfg Config, blocks *memmap.Map, s suggest.Suggester) (*Server, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	static, err := newStaticCache(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to load static files: %w", err)
	}
	if s == nil {
		s = suggest.Static(suggest.ErrorPlaceholder)
	}

	return &Server{
		cfg:       cfg,
		blocks:    blocks,
		suggester: s,
		api:       api.NewServer(cfg.API, blocks, s),
		templates: tmpl,
		static:    static,
	}, nil
}

// templateFuncs are the helpers available to every template.
var templateFuncs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
	"hex": func(v *big.Int) string {
		return memmap.ToHex(v, true)
	},
	"size": memmap.FormatSize,
	"bytes": func(v *big.Int) string {
		if v == nil {
			return "0"
		}
		// BigComma divides its argument in place.
		return humanize.BigComma(new(big.Int).Set(v))
	},
	"typeClass": func(t memmap.Type) string {
		return "type-" + string(t)
	},
	// dict builds a map from key-value pairs for passing to templates.
	// Usage: {{template "name" dict "key1" val1 "key2" val2}}
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
}

// Routes registers the UI endpoints and the mounted API on a new mux.
// ctx bounds the API's background goroutines.
func (s *Server) Routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/blocks/commit", s.handleCommit)
	mux.HandleFunc("/blocks/delete", s.handleDelete)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/export.md", s.handleExport)
	mux.HandleFunc("/static/", s.handleStatic)
	mux.Handle("/api/", http.StripPrefix("/api", s.api.Protect(ctx, s.api.Routes())))

	return mux
}

// Handler wraps Routes in request logging and the page security headers.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return logging.CombinedMiddleware(server.SecurityHeadersWithCSP(server.WebUICSPConfig(), s.Routes(ctx)))
}

// Start validates cfg and serves the UI until ctx is cancelled.
func Start(ctx context.Context, cfg Config, blocks *memmap.Map, s suggest.Suggester) error {
	if err := cfg.TLS.Validate(); err != nil {
		return err
	}
	if err := cfg.API.Validate(); err != nil {
		return err
	}

	srv, err := NewServer(cfg, blocks, s)
	if err != nil {
		return err
	}
	go srv.api.Run(ctx)

	protocol := "http"
	if cfg.TLS.Enabled {
		protocol = "https"
		logging.Info("TLS enabled", "cert_file", server.AbsPath(cfg.TLS.CertFile))
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("web_ui", protocol, cfg.Port,
		"api_prefix", "/api",
		"blocks", blocks.Len())

	return server.Serve(ctx, cfg.Port, cfg.TLS, srv.Handler(ctx))
}
