// Package validation provides input validation for file arguments, block
// drafts and import documents, guarding against path tricks, table-breaking
// names and resource exhaustion.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	coreerrors "github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
)

// Security limits to prevent DoS attacks (CWE-400).
const (
	// MaxImportSize is the maximum accepted import document size (16 MB).
	MaxImportSize = 16 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxNameLength is the maximum block name length.
	MaxNameLength = 128
	// MaxDescriptionLength is the maximum block description length.
	MaxDescriptionLength = 1024
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
)

// ValidatePath performs path validation for CLI file arguments.
// It checks length limits and rejects null bytes and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateDraft checks the free-text fields of a draft. A pipe or a line
// break in the name or description would corrupt the Markdown export, so
// both are rejected. Address fields are not checked: they never fail to parse.
func ValidateDraft(d memmap.Draft) error {
	if err := checkCell("name", d.Name, MaxNameLength); err != nil {
		return err
	}
	return checkCell("description", d.Description, MaxDescriptionLength)
}

func checkCell(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return coreerrors.NewValidation(field, fmt.Sprintf("must be at most %d bytes", maxLen))
	}
	if strings.ContainsAny(value, "|\r\n") {
		return coreerrors.NewValidation(field, "must not contain '|' or line breaks")
	}
	return nil
}

// ImportFormat is the detected kind of an import document.
type ImportFormat string

const (
	// FormatMarkdown is a Markdown table as produced by the exporter.
	FormatMarkdown ImportFormat = "markdown"
	// FormatSVD is a CMSIS-SVD XML device description.
	FormatSVD ImportFormat = "svd"
	// FormatXZ is an xz-compressed document of either kind.
	FormatXZ ImportFormat = "xz"
	// FormatUnknown is anything else.
	FormatUnknown ImportFormat = "unknown"
)

var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// DetectImportFormat classifies the first bytes of an import document.
func DetectImportFormat(buf []byte) ImportFormat {
	if bytes.HasPrefix(buf, xzMagic) {
		return FormatXZ
	}
	trimmed := bytes.TrimLeft(buf, " \t\r\n\xef\xbb\xbf")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		if bytes.Contains(buf, []byte("<device")) {
			return FormatSVD
		}
		return FormatUnknown
	}
	if isLikelyText(buf) {
		return FormatMarkdown
	}
	return FormatUnknown
}

// FormatFromPath guesses the format from a file extension; .xz wins over the
// inner extension.
func FormatFromPath(path string) ImportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return FormatXZ
	case ".svd", ".xml":
		return FormatSVD
	case ".md", ".markdown", ".txt":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}

// isLikelyText checks if the buffer contains likely text content.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 bytes (>= 0x80) are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
