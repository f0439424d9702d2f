package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/FocuswithJustin/memmap/internal/logging"
)

// minAPIKeyLength is the shortest key ValidateAuthConfig accepts.
const minAPIKeyLength = 16

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// publicPaths never require a key. They expose no block data: service info,
// the change feed (ids and fingerprints only) and the pure conversions the
// editor page calls on every keystroke.
var publicPaths = map[string]bool{
	"/":             true,
	"/health":       true,
	"/ws":           true,
	"/derive":       true,
	"/convert/hex":  true,
	"/convert/size": true,
}

// AuthMiddleware rejects requests for block data that do not carry the
// configured key, either as X-API-Key or as an Authorization bearer token.
// With auth disabled it returns next unchanged.
func AuthMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	if !cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		var reason, message string
		switch key := requestAPIKey(r); {
		case key == "":
			reason, message = "missing API key", "Missing X-API-Key header"
		case !constantTimeCompare(key, cfg.APIKey):
			reason, message = "invalid API key", "Invalid API key"
		default:
			next.ServeHTTP(w, r)
			return
		}

		logging.SecurityEvent("unauthorized_request", "auth",
			"method", r.Method,
			"path", r.URL.Path,
			"reason", reason)
		w.Header().Set("WWW-Authenticate", `Bearer realm="memmap"`)
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
	})
}

// requestAPIKey returns the key a request presents. X-API-Key wins over a
// bearer token.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// ValidateAuthConfig rejects an enabled config whose key is missing or short.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled (%s)", APIKeyHint())
	}
	if len(cfg.APIKey) < minAPIKeyLength {
		return fmt.Errorf("API key must be at least %d characters (got %d; %s)", minAPIKeyLength, len(cfg.APIKey), APIKeyHint())
	}
	return nil
}

// APIKeyHint shows how to generate a suitable key.
func APIKeyHint() string {
	return "try: export MEMMAP_API_KEY=$(openssl rand -base64 32)"
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
