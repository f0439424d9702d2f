package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Compress writes data to w as a single xz stream.
func Compress(w io.Writer, data []byte) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if _, err := xzw.Write(data); err != nil {
		xzw.Close()
		return fmt.Errorf("xz compress: %w", err)
	}
	return xzw.Close()
}

// WriteFile writes data to path, xz-compressed when the path ends in ".xz".
// Parent directories are created as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		err = Compress(f, data)
	} else {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
