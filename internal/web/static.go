package web

import (
	"encoding/hex"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/zeebo/blake3"
)

// staticFile is one embedded asset held in memory.
type staticFile struct {
	content     []byte
	etag        string
	contentType string
}

// staticCache holds every embedded static asset, read once at startup.
type staticCache struct {
	files map[string]staticFile
}

func newStaticCache(fsys fs.FS, dir string) (*staticCache, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	c := &staticCache{files: make(map[string]staticFile, len(entries))}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		sum := blake3.Sum256(content)
		contentType := mime.TypeByExtension(path.Ext(e.Name()))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.files[e.Name()] = staticFile{
			content:     content,
			etag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
			contentType: contentType,
		}
	}
	return c, nil
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/static/")
	f, ok := s.static.files[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == f.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", f.etag)
	w.Write(f.content)
}
