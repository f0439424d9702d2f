// Package suggest proposes one-sentence descriptions for memory regions.
//
// Suggestions are best effort: a Suggester never returns an error. A failed
// call yields ErrorPlaceholder and an empty answer yields EmptyPlaceholder.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/internal/logging"
)

// Placeholders returned instead of a suggestion.
const (
	EmptyPlaceholder = "No description generated."
	ErrorPlaceholder = "Error generating description."
)

// DefaultModel is the text model asked for suggestions.
const DefaultModel = "gemini-3-flash-preview"

// DefaultTimeout bounds a single suggestion call.
const DefaultTimeout = 15 * time.Second

// Suggester proposes a description for a region.
type Suggester interface {
	Suggest(ctx context.Context, name string, t memmap.Type) string
}

// IsPlaceholder reports whether s is one of the fixed fallback answers.
func IsPlaceholder(s string) bool {
	return s == EmptyPlaceholder || s == ErrorPlaceholder
}

// Prompt returns the instruction sent to the model for a region.
func Prompt(name string, t memmap.Type) string {
	return fmt.Sprintf("Provide a professional, technical one-sentence description for a memory region named \"%s\" of type \"%s\" in an embedded system memory map.", name, t)
}

// Config configures the Gemini suggester. The API key is always passed in
// explicitly; this package never reads the environment.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// generateFunc sends a prompt to a model and returns its text answer.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// Gemini asks a Gemini model for suggestions.
type Gemini struct {
	model    string
	timeout  time.Duration
	generate generateFunc
}

// NewGemini creates a Gemini suggester.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewValidation("api_key", "a Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating Gemini client")
	}
	return newGemini(cfg, func(ctx context.Context, model, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}), nil
}

func newGemini(cfg Config, generate generateFunc) *Gemini {
	g := &Gemini{model: cfg.Model, timeout: cfg.Timeout, generate: generate}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	return g
}

// Suggest implements Suggester.
func (g *Gemini) Suggest(ctx context.Context, name string, t memmap.Type) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.generate(ctx, g.model, Prompt(name, t))
	if err != nil {
		logging.SuggestError(ctx, name, string(t), err)
		return ErrorPlaceholder
	}
	if text = strings.TrimSpace(text); text == "" {
		return EmptyPlaceholder
	}
	return text
}

// Static answers every request with the same text. It stands in when no
// model is configured.
type Static string

// Suggest implements Suggester.
func (s Static) Suggest(_ context.Context, _ string, _ memmap.Type) string {
	if s == "" {
		return EmptyPlaceholder
	}
	return string(s)
}
