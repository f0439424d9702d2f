package api

import (
	"fmt"

	"github.com/FocuswithJustin/memmap/internal/server"
)

// Config holds server configuration.
type Config struct {
	Port              int
	RateLimitRequests int              // Requests per minute (0 = disabled)
	RateLimitBurst    int              // Burst size
	Auth              AuthConfig       // Authentication configuration
	TLS               server.TLSConfig // TLS configuration
	AllowedOrigins    []string         // CORS and websocket origins (empty = allow all)
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if err := ValidateAuthConfig(c.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}
	return c.TLS.Validate()
}
