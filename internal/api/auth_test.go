package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cfg := AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}

	tests := []struct {
		name   string
		cfg    AuthConfig
		path   string
		header string
		value  string
		wantOK bool
	}{
		{"disabled", AuthConfig{}, "/blocks", "", "", true},
		{"public root", cfg, "/", "", "", true},
		{"public health", cfg, "/health", "", "", true},
		{"public websocket", cfg, "/ws", "", "", true},
		{"public derive", cfg, "/derive", "", "", true},
		{"public size conversion", cfg, "/convert/size", "", "", true},
		{"missing key", cfg, "/blocks", "", "", false},
		{"export needs key", cfg, "/export", "", "", false},
		{"wrong key", cfg, "/blocks", "X-API-Key", "fedcba9876543210", false},
		{"valid key", cfg, "/blocks", "X-API-Key", "0123456789abcdef", true},
		{"valid bearer", cfg, "/blocks", "Authorization", "Bearer 0123456789abcdef", true},
		{"wrong bearer", cfg, "/blocks", "Authorization", "Bearer nope", false},
		{"basic scheme ignored", cfg, "/blocks", "Authorization", "Basic 0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(tt.cfg, ok).ServeHTTP(w, req)

			if tt.wantOK && w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", w.Code)
			}
			if !tt.wantOK {
				if w.Code != http.StatusUnauthorized {
					t.Errorf("expected status 401, got %d", w.Code)
				}
				if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
					t.Errorf("expected a bearer challenge, got %q", w.Header().Get("WWW-Authenticate"))
				}
			}
		})
	}
}

func TestRequestAPIKeyPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/blocks", nil)
	req.Header.Set("X-API-Key", "from-header")
	req.Header.Set("Authorization", "Bearer from-token")
	if got := requestAPIKey(req); got != "from-header" {
		t.Errorf("requestAPIKey() = %q, want from-header", got)
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{}, false},
		{"enabled without key", AuthConfig{Enabled: true}, true},
		{"short key", AuthConfig{Enabled: true, APIKey: "short"}, true},
		{"valid", AuthConfig{Enabled: true, APIKey: "0123456789abcdef"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuthConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuthConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), APIKeyHint()) {
				t.Errorf("expected key hint in %q", err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Port: 8081}).Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
	if err := (Config{Port: 70000}).Validate(); err == nil {
		t.Error("expected error for out of range port")
	}
	if err := (Config{Auth: AuthConfig{Enabled: true}}).Validate(); err == nil {
		t.Error("expected error for auth without key")
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !constantTimeCompare("abc", "abc") {
		t.Error("expected equal strings to match")
	}
	if constantTimeCompare("abc", "abd") || constantTimeCompare("abc", "abcd") {
		t.Error("expected different strings not to match")
	}
}
