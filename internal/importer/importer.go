// Package importer turns uploaded or on-disk documents into blocks. It
// accepts the Markdown export, CMSIS-SVD files and xz-compressed copies of
// either.
package importer

import (
	"bytes"

	"github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/core/svd"
	"github.com/FocuswithJustin/memmap/internal/archive"
	"github.com/FocuswithJustin/memmap/internal/validation"
)

// Result is the outcome of one import.
type Result struct {
	Format     validation.ImportFormat
	Compressed bool
	Blocks     []memmap.Block
}

// Decode sniffs data and parses it. An import that yields no blocks is not
// an error; callers report it as advisory.
func Decode(data []byte) (Result, error) {
	var res Result
	if len(data) > validation.MaxImportSize {
		return res, errors.NewValidation("document", "import exceeds maximum size")
	}

	format := validation.DetectImportFormat(data)
	if format == validation.FormatXZ {
		inflated, err := archive.Decompress(data, validation.MaxImportSize)
		if err != nil {
			return res, errors.NewParse("xz", "", err)
		}
		res.Compressed = true
		data = inflated
		format = validation.DetectImportFormat(data)
	}
	res.Format = format

	switch format {
	case validation.FormatMarkdown:
		res.Blocks = memmap.ParseTable(string(data))
	case validation.FormatSVD:
		blocks, err := svd.Parse(bytes.NewReader(data))
		if err != nil {
			return res, err
		}
		res.Blocks = blocks
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			res.Format = validation.FormatMarkdown
			res.Blocks = []memmap.Block{}
			return res, nil
		}
		return res, errors.NewUnsupported("import format", "expected a Markdown table, an SVD file or an xz stream of either")
	}
	return res, nil
}
