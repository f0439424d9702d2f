// Command memmap is the memory map editor: it serves the browser UI and the
// REST API, and exposes the block codecs and importers on the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/core/suggest"
	"github.com/FocuswithJustin/memmap/internal/api"
	"github.com/FocuswithJustin/memmap/internal/archive"
	"github.com/FocuswithJustin/memmap/internal/importer"
	"github.com/FocuswithJustin/memmap/internal/logging"
	"github.com/FocuswithJustin/memmap/internal/server"
	"github.com/FocuswithJustin/memmap/internal/validation"
	"github.com/FocuswithJustin/memmap/internal/web"
)

const version = api.Version

// stdout receives command output. Logs go to stderr.
var stdout io.Writer = os.Stdout

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel     string        `help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogFormat    string        `help:"Log format (json, text)" default:"text" enum:"json,text"`
	GeminiAPIKey string        `name:"gemini-api-key" help:"Gemini API key for description suggestions" env:"GEMINI_API_KEY"`
	GeminiModel  string        `help:"Gemini model for description suggestions" default:"gemini-3-flash-preview"`
	SuggestLimit time.Duration `help:"Timeout for one suggestion call" default:"15s"`
}

// suggester builds the description suggester from the Gemini flags. Without
// a key it returns nil and callers fall back to the placeholder answer.
func (g *Globals) suggester(ctx context.Context) (suggest.Suggester, error) {
	if strings.TrimSpace(g.GeminiAPIKey) == "" {
		return nil, nil
	}
	gem, err := suggest.NewGemini(ctx, suggest.Config{
		APIKey:  g.GeminiAPIKey,
		Model:   g.GeminiModel,
		Timeout: g.SuggestLimit,
	})
	if err != nil {
		return nil, err
	}
	return suggest.NewCached(gem, suggest.DefaultCacheTTL), nil
}

// commands is the command line of memmap.
type commands struct {
	Globals

	Web     WebCmd     `cmd:"" help:"Start the browser editor with the API mounted under /api"`
	API     APICmd     `cmd:"" name:"api" help:"Start the REST API server"`
	Table   TableCmd   `cmd:"" help:"Import a Markdown, SVD or .xz file and print the Markdown table"`
	Layout  LayoutCmd  `cmd:"" help:"Print the address layout of a file as terminal bars"`
	Check   CheckCmd   `cmd:"" help:"Report overlapping blocks and unmapped gaps"`
	Derive  DeriveCmd  `cmd:"" help:"Compute the missing field from two of start, end and size"`
	Hex     HexCmd     `cmd:"" help:"Convert an address to hex, human size and exact bytes"`
	Size    SizeCmd    `cmd:"" help:"Convert a human size to hex, human size and exact bytes"`
	Suggest SuggestCmd `cmd:"" help:"Ask for a description of a region"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

var CLI commands

// ServeFlags are shared by the web and api commands.
type ServeFlags struct {
	TLSCert        string   `name:"tls-cert" help:"TLS certificate file (enables HTTPS with --tls-key)" type:"path"`
	TLSKey         string   `name:"tls-key" help:"TLS private key file" type:"path"`
	APIKey         string   `name:"api-key" help:"Require this X-API-Key on API requests" env:"MEMMAP_API_KEY"`
	RateLimit      int      `help:"API requests per minute per client (0 disables)" default:"0"`
	RateBurst      int      `help:"API rate limit burst size" default:"10"`
	AllowedOrigins []string `help:"Origins allowed for CORS and websockets (empty allows all)" sep:","`
	Import         string   `help:"Load blocks from a Markdown, SVD or .xz file at startup" type:"existingfile"`
}

func (f ServeFlags) apiConfig(port int) api.Config {
	return api.Config{
		Port:              port,
		RateLimitRequests: f.RateLimit,
		RateLimitBurst:    f.RateBurst,
		Auth:              api.AuthConfig{Enabled: f.APIKey != "", APIKey: f.APIKey},
		TLS:               f.tls(),
		AllowedOrigins:    f.AllowedOrigins,
	}
}

func (f ServeFlags) tls() server.TLSConfig {
	return server.TLSConfig{
		Enabled:  f.TLSCert != "" || f.TLSKey != "",
		CertFile: f.TLSCert,
		KeyFile:  f.TLSKey,
	}
}

// initialMap creates the served block collection, seeded from --import.
func (f ServeFlags) initialMap() (*memmap.Map, error) {
	blocks := memmap.NewMap()
	if f.Import == "" {
		return blocks, nil
	}
	loaded, err := readBlocks(f.Import)
	if err != nil {
		return nil, err
	}
	blocks.Replace(loaded)
	return blocks, nil
}

// WebCmd starts the browser UI.
type WebCmd struct {
	Port int `help:"HTTP server port" default:"8080"`
	ServeFlags
}

func (c *WebCmd) Run(g *Globals) error {
	blocks, err := c.initialMap()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := g.suggester(ctx)
	if err != nil {
		return err
	}
	cfg := web.Config{
		Port: c.Port,
		TLS:  c.tls(),
		API:  c.apiConfig(c.Port),
	}
	return web.Start(ctx, cfg, blocks, s)
}

// APICmd starts the REST API only.
type APICmd struct {
	Port int `help:"HTTP server port" default:"8081"`
	ServeFlags
}

func (c *APICmd) Run(g *Globals) error {
	blocks, err := c.initialMap()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := g.suggester(ctx)
	if err != nil {
		return err
	}
	return api.Start(ctx, c.apiConfig(c.Port), blocks, s)
}

// TableCmd normalizes a document into the Markdown export.
type TableCmd struct {
	Path   string `arg:"" help:"Markdown, SVD or .xz file" type:"existingfile"`
	Output string `short:"o" help:"Write the table to this file instead of stdout (.xz compresses)" type:"path"`
}

func (c *TableCmd) Run() error {
	blocks, err := readBlocks(c.Path)
	if err != nil {
		return err
	}
	table := memmap.RenderTable(blocks)

	if c.Output == "" {
		fmt.Fprint(stdout, table)
		return nil
	}
	if err := validation.ValidatePath(c.Output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if err := archive.WriteFile(c.Output, []byte(table)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d blocks to %s\n", len(blocks), c.Output)
	return nil
}

// LayoutCmd draws the layout plan as horizontal bars.
type LayoutCmd struct {
	Path  string `arg:"" help:"Markdown, SVD or .xz file" type:"existingfile"`
	Width int    `help:"Output width in columns (defaults to the terminal width)"`
}

func (c *LayoutCmd) Run() error {
	blocks, err := readBlocks(c.Path)
	if err != nil {
		return err
	}
	width := c.Width
	if width <= 0 {
		width = terminalWidth()
	}
	renderLayout(stdout, memmap.Plan(blocks, memmap.DefaultLayoutOptions), width)
	return nil
}

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 80

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// labelWidth is the column taken by the block name and range on each row.
const labelWidth = 44

func renderLayout(w io.Writer, l memmap.Layout, width int) {
	if len(l.Rows) == 0 {
		fmt.Fprintln(w, "No memory blocks defined.")
		return
	}
	barMax := width - labelWidth - 12
	if barMax < 10 {
		barMax = 10
	}
	fmt.Fprintf(w, "Total range: %s\n", memmap.FormatSize(l.TotalRange))
	for _, row := range l.Rows {
		if row.Kind == memmap.RowGap {
			fmt.Fprintf(w, "%*s ~ unmapped gap: %s\n", labelWidth, "", memmap.FormatSize(row.Gap))
			continue
		}
		b := row.Block
		n := int(math.Round(row.Fraction * float64(barMax)))
		if n < 1 {
			n = 1
		}
		label := fmt.Sprintf("%-16.16s %s-%s", b.Name, memmap.ToHex(b.Start, true), memmap.ToHex(b.EndAddress(), true))
		fmt.Fprintf(w, "%-*s %s %s\n", labelWidth, label, strings.Repeat("#", n), memmap.FormatSize(b.Size))
	}
}

// CheckCmd reports overlaps and gaps between blocks.
type CheckCmd struct {
	Path   string `arg:"" help:"Markdown, SVD or .xz file" type:"existingfile"`
	Strict bool   `help:"Exit with an error when blocks overlap"`
}

func (c *CheckCmd) Run() error {
	blocks, err := readBlocks(c.Path)
	if err != nil {
		return err
	}
	sorted := memmap.SortByStart(blocks)
	overlaps := memmap.FindOverlaps(sorted)

	for _, p := range overlaps {
		fmt.Fprintf(stdout, "overlap: %s [%s-%s] and %s [%s-%s]\n",
			p.First.Name, memmap.ToHex(p.First.Start, true), memmap.ToHex(p.First.EndAddress(), true),
			p.Second.Name, memmap.ToHex(p.Second.Start, true), memmap.ToHex(p.Second.EndAddress(), true))
	}
	gaps := 0
	for i := 1; i < len(sorted); i++ {
		gap := memmap.GapBeforeNext(sorted[i-1], sorted[i])
		if gap.Sign() <= 0 {
			continue
		}
		gaps++
		fmt.Fprintf(stdout, "gap: %s between %s and %s\n",
			memmap.FormatSize(gap), sorted[i-1].Name, sorted[i].Name)
	}
	fmt.Fprintf(stdout, "%d blocks, %d overlapping pairs, %d gaps\n", len(sorted), len(overlaps), gaps)

	if c.Strict && len(overlaps) > 0 {
		return fmt.Errorf("%d overlapping block pairs", len(overlaps))
	}
	return nil
}

// DeriveCmd runs the field derivation on the given inputs.
type DeriveCmd struct {
	Start string `help:"Start address (hex)"`
	End   string `help:"End address (hex, inclusive)"`
	Size  string `help:"Size (e.g. 1KB, 0x400)"`
}

func (c *DeriveCmd) Run() error {
	d := memmap.Derive(c.Start, c.End, c.Size)
	switch {
	case d.Conflict:
		fmt.Fprintln(stdout, "conflict: start, end and size are all set; clear one of them")
	case d.Target == memmap.FieldNone:
		fmt.Fprintf(stdout, "%d of 3 fields set; two are needed\n", d.Count())
	default:
		fmt.Fprintf(stdout, "%s = %s\n", d.Target, d.Value)
	}
	return nil
}

// HexCmd converts an address.
type HexCmd struct {
	Value string `arg:"" help:"Hex value, with or without 0x"`
}

func (c *HexCmd) Run() error {
	printConversion(stdout, c.Value, memmap.ParseHex(c.Value))
	return nil
}

// SizeCmd converts a human-readable size.
type SizeCmd struct {
	Value string `arg:"" help:"Size such as 1.5KB, 64 MB or 0x400"`
}

func (c *SizeCmd) Run() error {
	printConversion(stdout, c.Value, memmap.ParseHumanSize(c.Value))
	return nil
}

func printConversion(w io.Writer, input string, n *big.Int) {
	fmt.Fprintf(w, "input:   %s\n", input)
	fmt.Fprintf(w, "hex:     %s\n", memmap.ToHex(n, true))
	fmt.Fprintf(w, "human:   %s\n", memmap.FormatSize(n))
	fmt.Fprintf(w, "compact: %s\n", memmap.CompactSize(n))
	fmt.Fprintf(w, "bytes:   %s\n", humanize.BigComma(new(big.Int).Set(n)))
}

// SuggestCmd asks the model for one description.
type SuggestCmd struct {
	Name string `arg:"" help:"Region name"`
	Type string `arg:"" optional:"" help:"Region type (SRAM, FLASH, Reserved, Peripheral, Stack, Heap, MMIO)" default:"SRAM"`
}

func (c *SuggestCmd) Run(g *Globals) error {
	t, ok := memmap.ParseType(c.Type)
	if !ok {
		return fmt.Errorf("unknown region type %q", c.Type)
	}
	ctx := context.Background()
	s, err := g.suggester(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("no Gemini API key: set --gemini-api-key or GEMINI_API_KEY")
	}
	fmt.Fprintln(stdout, s.Suggest(ctx, c.Name, t))
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "memmap version %s\n", version)
	return nil
}

// readBlocks loads and decodes a document from disk.
func readBlocks(path string) ([]memmap.Block, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	res, err := importer.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if hint := validation.FormatFromPath(path); hint != validation.FormatUnknown && hint != res.Format && !res.Compressed {
		logging.Warn("file extension does not match content",
			"path", path,
			"extension_format", string(hint),
			"detected_format", string(res.Format))
	}
	logging.ImportResult(context.Background(), string(res.Format), len(res.Blocks),
		"path", path,
		"compressed", res.Compressed)
	if len(res.Blocks) == 0 {
		logging.Warn("no blocks found", "path", path)
	}
	return res.Blocks, nil
}

func newParser(cli *commands, options ...kong.Option) (*kong.Kong, error) {
	return kong.New(cli, append([]kong.Option{
		kong.Name("memmap"),
		kong.Description("Memory map editor for embedded system address layouts"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, options...)...)
}

func main() {
	parser, err := newParser(&CLI)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logging.InitLoggerTo(os.Stderr, logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))

	err = ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
