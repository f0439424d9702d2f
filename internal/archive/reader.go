// Package archive compresses and decompresses memory map documents with xz.
package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Decompress inflates an xz stream, refusing output larger than limit bytes.
func Decompress(data []byte, limit int64) ([]byte, error) {
	xzr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}

	var out bytes.Buffer
	n, err := io.Copy(&out, io.LimitReader(xzr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("xz decompress: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("decompressed document exceeds %d bytes", limit)
	}
	return out.Bytes(), nil
}
