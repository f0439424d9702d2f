package suggest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	coreerrors "github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
)

func TestPrompt(t *testing.T) {
	got := Prompt("SRAM_L", memmap.TypeSRAM)
	want := `Provide a professional, technical one-sentence description for a memory region named "SRAM_L" of type "SRAM" in an embedded system memory map.`
	if got != want {
		t.Errorf("Prompt() = %q, want %q", got, want)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		_, err := NewGemini(context.Background(), Config{APIKey: key})
		if !errors.Is(err, coreerrors.ErrInvalidInput) {
			t.Errorf("NewGemini(%q) error = %v, want a validation error", key, err)
		}
	}
}

func TestGeminiSuggest(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		want   string
	}{
		{"answer", "  Internal SRAM for the low bank.\n", nil, "Internal SRAM for the low bank."},
		{"empty answer", "   ", nil, EmptyPlaceholder},
		{"failure", "", errors.New("quota exceeded"), ErrorPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotModel, gotPrompt string
			g := newGemini(Config{}, func(ctx context.Context, model, prompt string) (string, error) {
				gotModel, gotPrompt = model, prompt
				return tt.answer, tt.err
			})

			if got := g.Suggest(context.Background(), "SRAM_L", memmap.TypeSRAM); got != tt.want {
				t.Errorf("Suggest() = %q, want %q", got, tt.want)
			}
			if gotModel != DefaultModel {
				t.Errorf("model = %q, want %q", gotModel, DefaultModel)
			}
			if !strings.Contains(gotPrompt, `"SRAM_L"`) {
				t.Errorf("prompt %q does not name the region", gotPrompt)
			}
		})
	}
}

func TestGeminiTimeout(t *testing.T) {
	g := newGemini(Config{Model: "custom", Timeout: 20 * time.Millisecond}, func(ctx context.Context, model, prompt string) (string, error) {
		if model != "custom" {
			t.Errorf("model = %q, want custom", model)
		}
		<-ctx.Done()
		return "", ctx.Err()
	})

	start := time.Now()
	if got := g.Suggest(context.Background(), "Flash", memmap.TypeFlash); got != ErrorPlaceholder {
		t.Errorf("Suggest() = %q, want the error placeholder", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not applied, took %v", elapsed)
	}
}

func TestNewGeminiDefaults(t *testing.T) {
	g := newGemini(Config{}, nil)
	if g.model != DefaultModel || g.timeout != DefaultTimeout {
		t.Errorf("unexpected defaults model=%q timeout=%v", g.model, g.timeout)
	}
}

func TestStatic(t *testing.T) {
	if got := Static("fixed").Suggest(context.Background(), "x", memmap.TypeSRAM); got != "fixed" {
		t.Errorf("Suggest() = %q", got)
	}
	if got := Static("").Suggest(context.Background(), "x", memmap.TypeSRAM); got != EmptyPlaceholder {
		t.Errorf("empty Static should answer with the empty placeholder, got %q", got)
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !IsPlaceholder(EmptyPlaceholder) || !IsPlaceholder(ErrorPlaceholder) {
		t.Error("expected placeholders to be recognized")
	}
	if IsPlaceholder("Main program flash.") {
		t.Error("a real answer is not a placeholder")
	}
}

// countingSuggester records how often it is asked.
type countingSuggester struct {
	calls  atomic.Int32
	answer string
}

func (c *countingSuggester) Suggest(_ context.Context, name string, t memmap.Type) string {
	c.calls.Add(1)
	if c.answer != "" {
		return c.answer
	}
	return name + " as " + string(t)
}

func TestCached(t *testing.T) {
	next := &countingSuggester{}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	first := c.Suggest(ctx, "Flash", memmap.TypeFlash)
	second := c.Suggest(ctx, "Flash", memmap.TypeFlash)
	if first != "Flash as FLASH" || second != first {
		t.Errorf("unexpected answers %q, %q", first, second)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}

	if got := c.Suggest(ctx, "Flash", memmap.TypeSRAM); got != "Flash as SRAM" {
		t.Errorf("type should be part of the key, got %q", got)
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("expected two upstream calls, got %d", n)
	}
}

func TestCachedSkipsPlaceholders(t *testing.T) {
	next := &countingSuggester{answer: ErrorPlaceholder}
	c := NewCached(next, time.Minute)

	c.Suggest(context.Background(), "Flash", memmap.TypeFlash)
	c.Suggest(context.Background(), "Flash", memmap.TypeFlash)
	if n := next.calls.Load(); n != 2 {
		t.Errorf("placeholder answers must not be cached, got %d upstream calls", n)
	}
}

func TestNewCachedDefaultTTL(t *testing.T) {
	c := NewCached(Static("x"), 0)
	if c.cache == nil {
		t.Fatal("expected a cache")
	}
	if got := c.Suggest(context.Background(), "a", memmap.TypeSRAM); got != "x" {
		t.Errorf("Suggest() = %q", got)
	}
}
