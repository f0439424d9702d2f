package web

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/internal/archive"
	"github.com/FocuswithJustin/memmap/internal/importer"
	"github.com/FocuswithJustin/memmap/internal/logging"
	"github.com/FocuswithJustin/memmap/internal/server"
	"github.com/FocuswithJustin/memmap/internal/validation"
)

// fieldState describes how one address input is shown.
type fieldState struct {
	Value   string
	Derived bool
}

// formState is the editor form as rendered.
type formState struct {
	Draft     memmap.Draft
	Start     fieldState
	End       fieldState
	Size      fieldState
	Conflict  bool
	CanCommit bool
	Editing   bool
}

// indexData is passed to index.html.
type indexData struct {
	Title       string
	Error       string
	Message     string
	Form        formState
	Types       []memmap.Type
	Blocks      []memmap.Block
	Layout      memmap.Layout
	Overlaps    []memmap.OverlapPair
	Markdown    string
	Fingerprint string
	Import      string
}

func newFormState(d memmap.Draft) formState {
	if d.Type == "" {
		d.Type = string(memmap.DefaultType)
	}
	derivation := memmap.Derive(d.Start, d.End, d.Size)
	f := formState{
		Draft:     d,
		Start:     fieldState{Value: d.Start},
		End:       fieldState{Value: d.End},
		Size:      fieldState{Value: d.Size},
		Conflict:  derivation.Conflict,
		CanCommit: derivation.CanCommit(d.Name),
		Editing:   d.ID != "",
	}
	switch derivation.Target {
	case memmap.FieldStart:
		f.Start = fieldState{Value: derivation.Value, Derived: true}
	case memmap.FieldEnd:
		f.End = fieldState{Value: derivation.Value, Derived: true}
	case memmap.FieldSize:
		f.Size = fieldState{Value: derivation.Value, Derived: true}
	}
	return f
}

func (s *Server) render(w http.ResponseWriter, status int, data indexData) {
	blocks := s.blocks.Blocks()
	data.Title = "Memory Map"
	data.Types = memmap.Types
	data.Blocks = blocks
	data.Layout = memmap.Plan(blocks, memmap.DefaultLayoutOptions)
	data.Overlaps = memmap.FindOverlaps(blocks)
	data.Markdown = memmap.RenderTable(blocks)
	data.Fingerprint = memmap.Fingerprint(blocks)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logging.Error("template rendering failed",
			"template", "index.html",
			"error", err)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	data := indexData{Message: q.Get("msg")}
	draft := memmap.Draft{}
	var err error
	switch {
	case q.Get("edit") != "":
		draft, err = s.blocks.EditDraft(q.Get("edit"))
	case q.Get("next") != "":
		draft, err = s.blocks.NextDraft(q.Get("next"))
	}
	if err != nil {
		data.Error = err.Error()
		draft = memmap.Draft{}
	}
	data.Form = newFormState(draft)
	s.render(w, http.StatusOK, data)
}

func draftFromForm(r *http.Request) memmap.Draft {
	return memmap.Draft{
		ID:          r.PostFormValue("id"),
		Name:        r.PostFormValue("name"),
		Start:       r.PostFormValue("start"),
		End:         r.PostFormValue("end"),
		Size:        r.PostFormValue("size"),
		Type:        r.PostFormValue("type"),
		Description: r.PostFormValue("description"),
	}
}

// handleCommit commits the editor form, or fills in a suggested description
// when the Suggest button was pressed.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	d := draftFromForm(r)

	if r.PostFormValue("action") == "suggest" {
		name := server.LimitStringLength(server.SanitizeUserInput(d.Name), validation.MaxNameLength)
		if name == "" {
			s.render(w, http.StatusBadRequest, indexData{Error: "Enter a region name first", Form: newFormState(d)})
			return
		}
		d.Description = s.suggester.Suggest(r.Context(), name, memmap.TypeOrDefault(d.Type))
		s.render(w, http.StatusOK, indexData{Form: newFormState(d)})
		return
	}

	err := validation.ValidateDraft(d)
	var block memmap.Block
	if err == nil {
		block, err = s.blocks.Commit(d)
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Code(err) == "NOT_FOUND" {
			status = http.StatusNotFound
		}
		s.render(w, status, indexData{Error: err.Error(), Form: newFormState(d)})
		return
	}

	logging.InfoContext(r.Context(), "block committed", "block_id", block.ID, "name", block.Name)
	http.Redirect(w, r, "/?msg="+url.QueryEscape("Saved "+block.Name), http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PostFormValue("id")
	if err := s.blocks.Remove(id); err != nil {
		s.render(w, http.StatusNotFound, indexData{Error: err.Error(), Form: newFormState(memmap.Draft{})})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleImport imports a pasted Markdown table.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxImportSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Import too large", http.StatusRequestEntityTooLarge)
		return
	}
	text := r.PostFormValue("markdown")

	res, err := importer.Decode([]byte(text))
	if err != nil {
		s.render(w, http.StatusBadRequest, indexData{Error: err.Error(), Form: newFormState(memmap.Draft{}), Import: text})
		return
	}
	logging.ImportResult(r.Context(), string(res.Format), len(res.Blocks), "source", "web")

	if len(res.Blocks) == 0 {
		s.render(w, http.StatusOK, indexData{
			Message: "No table rows found; the map was left unchanged.",
			Form:    newFormState(memmap.Draft{}),
			Import:  text,
		})
		return
	}
	if r.PostFormValue("mode") == "append" {
		s.blocks.Append(res.Blocks)
	} else {
		s.blocks.Replace(res.Blocks)
	}
	msg := "Imported " + strconv.Itoa(len(res.Blocks)) + " blocks"
	http.Redirect(w, r, "/?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

// handleExport downloads the Markdown table, xz-compressed with ?compress=xz.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	table := s.blocks.Markdown()

	if r.URL.Query().Get("compress") == "xz" {
		w.Header().Set("Content-Type", "application/x-xz")
		w.Header().Set("Content-Disposition", `attachment; filename="memory-map.md.xz"`)
		if err := archive.Compress(w, []byte(table)); err != nil {
			logging.ErrorContext(r.Context(), "xz export failed", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="memory-map.md"`)
	fmt.Fprint(w, table)
}
