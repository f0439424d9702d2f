package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/core/suggest"
	"github.com/FocuswithJustin/memmap/internal/archive"
	"github.com/FocuswithJustin/memmap/internal/importer"
	"github.com/FocuswithJustin/memmap/internal/logging"
	"github.com/FocuswithJustin/memmap/internal/server"
	"github.com/FocuswithJustin/memmap/internal/validation"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total       int    `json:"total,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// BlockInfo is the wire form of a block. Addresses and sizes are strings so
// values beyond 2^53 survive JSON clients.
type BlockInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StartAddress string `json:"start_address"`
	EndAddress   string `json:"end_address"`
	Size         string `json:"size"`
	SizeHuman    string `json:"size_human"`
	SizeBytes    string `json:"size_bytes"`
	Type         string `json:"type"`
	Description  string `json:"description"`
}

// NewBlockInfo converts a block to its wire form.
func NewBlockInfo(b memmap.Block) BlockInfo {
	return BlockInfo{
		ID:           b.ID,
		Name:         b.Name,
		StartAddress: memmap.ToHex(b.Start, true),
		EndAddress:   memmap.ToHex(b.EndAddress(), true),
		Size:         memmap.ToHex(b.Size, true),
		SizeHuman:    memmap.FormatSize(b.Size),
		SizeBytes:    b.Size.String(),
		Type:         string(b.Type),
		Description:  b.Description,
	}
}

func blockInfos(blocks []memmap.Block) []BlockInfo {
	out := make([]BlockInfo, len(blocks))
	for i, b := range blocks {
		out[i] = NewBlockInfo(b)
	}
	return out
}

// DeriveRequest is the request body of POST /derive.
type DeriveRequest struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
	Size  string `json:"size"`
}

// DeriveResult reports which address field is computed from the others.
type DeriveResult struct {
	Active    []string `json:"active"`
	Count     int      `json:"count"`
	Target    string   `json:"target,omitempty"`
	Value     string   `json:"value,omitempty"`
	Conflict  bool     `json:"conflict"`
	CanCommit bool     `json:"can_commit"`
}

// NewDeriveResult converts a derivation to its wire form.
func NewDeriveResult(d memmap.Derivation, name string) DeriveResult {
	active := make([]string, len(d.Active))
	for i, f := range d.Active {
		active[i] = f.String()
	}
	res := DeriveResult{
		Active:    active,
		Count:     d.Count(),
		Value:     d.Value,
		Conflict:  d.Conflict,
		CanCommit: d.CanCommit(name),
	}
	if d.Target != memmap.FieldNone {
		res.Target = d.Target.String()
	}
	return res
}

// LayoutRowInfo is one row of the layout plan.
type LayoutRowInfo struct {
	Kind     string     `json:"kind"`
	Block    *BlockInfo `json:"block,omitempty"`
	Gap      string     `json:"gap,omitempty"`
	GapBytes string     `json:"gap_bytes,omitempty"`
	Height   float64    `json:"height,omitempty"`
	Fraction float64    `json:"fraction,omitempty"`
}

// LayoutInfo is the wire form of a layout plan.
type LayoutInfo struct {
	TotalRange string          `json:"total_range"`
	Rows       []LayoutRowInfo `json:"rows"`
}

// NewLayoutInfo converts a layout plan to its wire form.
func NewLayoutInfo(l memmap.Layout) LayoutInfo {
	info := LayoutInfo{
		TotalRange: memmap.FormatSize(l.TotalRange),
		Rows:       make([]LayoutRowInfo, 0, len(l.Rows)),
	}
	for _, row := range l.Rows {
		r := LayoutRowInfo{Kind: string(row.Kind)}
		switch row.Kind {
		case memmap.RowGap:
			r.Gap = memmap.FormatSize(row.Gap)
			r.GapBytes = row.Gap.String()
		default:
			b := NewBlockInfo(row.Block)
			r.Block = &b
			r.Height = row.Height
			r.Fraction = row.Fraction
		}
		info.Rows = append(info.Rows, r)
	}
	return info
}

// OverlapInfo names two blocks whose ranges intersect.
type OverlapInfo struct {
	First  BlockInfo `json:"first"`
	Second BlockInfo `json:"second"`
}

// ImportResult is returned by POST /import.
type ImportResult struct {
	Format     string `json:"format"`
	Compressed bool   `json:"compressed"`
	Mode       string `json:"mode"`
	Imported   int    `json:"imported"`
	Total      int    `json:"total"`
	Advisory   string `json:"advisory,omitempty"`
}

// SuggestRequest is the request body of POST /suggest.
type SuggestRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SuggestResult carries one description suggestion.
type SuggestResult struct {
	Description string `json:"description"`
	Placeholder bool   `json:"placeholder"`
}

// ConvertResult shows a value through every codec.
type ConvertResult struct {
	Input   string `json:"input"`
	Hex     string `json:"hex"`
	Human   string `json:"human"`
	Compact string `json:"compact"`
	Bytes   string `json:"bytes"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Blocks  int    `json:"blocks"`
	Clients int    `json:"clients"`
}

const maxJSONBody = 64 << 10

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "Memory Map API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /blocks",
			"POST /blocks",
			"GET /blocks/:id",
			"PUT /blocks/:id",
			"DELETE /blocks/:id",
			"GET /blocks/:id/edit",
			"GET /blocks/:id/next",
			"POST /derive",
			"GET /layout",
			"GET /overlaps",
			"GET /export",
			"POST /import",
			"POST /suggest",
			"GET /convert/hex",
			"GET /convert/size",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:  "healthy",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Blocks:  s.blocks.Len(),
		Clients: s.hub.ClientCount(),
	})
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBlocks(w, r)
	case http.MethodPost:
		var d memmap.Draft
		if !decodeJSON(w, r, &d) {
			return
		}
		d.ID = ""
		s.commit(w, r, d, http.StatusCreated)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	blocks := s.blocks.Blocks()
	fingerprint := memmap.Fingerprint(blocks)
	if notModified(w, r, fingerprint) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Data:    blockInfos(blocks),
		Meta: &APIMeta{
			Total:       len(blocks),
			Fingerprint: fingerprint,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request, d memmap.Draft, status int) {
	if err := validation.ValidateDraft(d); err != nil {
		respondErr(w, err)
		return
	}
	block, err := s.blocks.Commit(d)
	if err != nil {
		respondErr(w, err)
		return
	}
	logging.InfoContext(r.Context(), "block committed", "block_id", block.ID, "name", block.Name)
	respond(w, status, NewBlockInfo(block))
}

// handleBlockByID serves /blocks/{id}, /blocks/{id}/edit and /blocks/{id}/next.
func (s *Server) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/blocks/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	switch action {
	case "":
	case "edit", "next":
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
			return
		}
		var (
			d   memmap.Draft
			err error
		)
		if action == "edit" {
			d, err = s.blocks.EditDraft(id)
		} else {
			d, err = s.blocks.NextDraft(id)
		}
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, d)
		return
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := s.blocks.Get(id)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, NewBlockInfo(b))
	case http.MethodPut:
		var d memmap.Draft
		if !decodeJSON(w, r, &d) {
			return
		}
		d.ID = id
		s.commit(w, r, d, http.StatusOK)
	case http.MethodDelete:
		if err := s.blocks.Remove(id); err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET, PUT and DELETE are allowed")
	}
}

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	var req DeriveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respond(w, http.StatusOK, NewDeriveResult(memmap.Derive(req.Start, req.End, req.Size), req.Name))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	respond(w, http.StatusOK, NewLayoutInfo(memmap.Plan(s.blocks.Blocks(), memmap.DefaultLayoutOptions)))
}

func (s *Server) handleOverlaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	pairs := memmap.FindOverlaps(s.blocks.Blocks())
	out := make([]OverlapInfo, len(pairs))
	for i, p := range pairs {
		out[i] = OverlapInfo{First: NewBlockInfo(p.First), Second: NewBlockInfo(p.Second)}
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	blocks := s.blocks.Blocks()
	fingerprint := memmap.Fingerprint(blocks)
	table := memmap.RenderTable(blocks)

	switch compress := r.URL.Query().Get("compress"); compress {
	case "":
		if notModified(w, r, fingerprint) {
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, table)
	case "xz":
		w.Header().Set("Content-Type", "application/x-xz")
		w.Header().Set("Content-Disposition", `attachment; filename="memory-map.md.xz"`)
		w.Header().Set("X-Map-Fingerprint", fingerprint)
		if err := archive.Compress(w, []byte(table)); err != nil {
			logging.ErrorContext(r.Context(), "xz export failed", "error", err)
		}
	default:
		respondErr(w, errors.NewUnsupported("compression "+compress, "only xz is supported"))
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "replace"
	}
	if mode != "replace" && mode != "append" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "mode must be replace or append")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !server.ValidateContentType(ct, server.AllowedImportContentTypes) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Unsupported content type "+ct)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, validation.MaxImportSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}
	if len(data) > validation.MaxImportSize {
		respondError(w, http.StatusRequestEntityTooLarge, "INVALID_IMPORT",
			fmt.Sprintf("Import exceeds %d bytes", validation.MaxImportSize))
		return
	}

	res, err := importer.Decode(data)
	if err != nil {
		respondErr(w, err)
		return
	}
	logging.ImportResult(r.Context(), string(res.Format), len(res.Blocks), "mode", mode, "compressed", res.Compressed)

	out := ImportResult{
		Format:     string(res.Format),
		Compressed: res.Compressed,
		Mode:       mode,
		Imported:   len(res.Blocks),
	}
	switch {
	case len(res.Blocks) == 0:
		out.Advisory = "no blocks found; the map was left unchanged"
	case mode == "append":
		s.blocks.Append(res.Blocks)
	default:
		s.blocks.Replace(res.Blocks)
	}
	out.Total = s.blocks.Len()
	respond(w, http.StatusOK, out)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	var req SuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := server.LimitStringLength(server.SanitizeUserInput(req.Name), validation.MaxNameLength)
	if name == "" {
		respondErr(w, errors.NewValidation("name", "block name is required"))
		return
	}

	desc := s.suggester.Suggest(r.Context(), name, memmap.TypeOrDefault(req.Type))
	respond(w, http.StatusOK, SuggestResult{Description: desc, Placeholder: suggest.IsPlaceholder(desc)})
}

func (s *Server) handleConvertHex(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, memmap.ParseHex)
}

func (s *Server) handleConvertSize(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, memmap.ParseHumanSize)
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request, parse func(string) *big.Int) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	value := r.URL.Query().Get("value")
	v := parse(value)
	respond(w, http.StatusOK, ConvertResult{
		Input:   value,
		Hex:     memmap.ToHex(v, true),
		Human:   memmap.FormatSize(v),
		Compact: memmap.CompactSize(v),
		Bytes:   v.String(),
	})
}

// notModified sets the ETag for fingerprint and answers 304 when the client
// already holds it.
func notModified(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	etag := `"` + fingerprint + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Map-Fingerprint", fingerprint)
	if match := r.Header.Get("If-None-Match"); match != "" {
		for _, candidate := range strings.Split(match, ",") {
			if c := strings.TrimSpace(candidate); c == etag || c == "*" {
				w.WriteHeader(http.StatusNotModified)
				return true
			}
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("Invalid JSON body: %v", err))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, data any) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// respondErr reports a core error with the status matching its code.
func respondErr(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "NOT_FOUND":
		status = http.StatusNotFound
	case "INVALID_DRAFT", "INVALID_IMPORT":
		status = http.StatusBadRequest
	case "UNSUPPORTED_FORMAT":
		status = http.StatusUnsupportedMediaType
	}
	respondError(w, status, code, err.Error())
}
