package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	coreerrors "github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/internal/archive"
	"github.com/FocuswithJustin/memmap/internal/validation"
)

const table = `| Region | Start Address | End Address | Size | Type | Description |
| :--- | :--- | :--- | :--- | :--- | :--- |
| Flash | 0x08000000 | 0x0807FFFF | 512 KB | FLASH | Program flash |
| SRAM1 | 0x20000000 | 0x2000FFFF | 64 KB | SRAM | Main RAM |
`

const svdDoc = `<?xml version="1.0"?>
<device><name>MCU</name><peripherals>
<peripheral><name>GPIOA</name><baseAddress>0x40020000</baseAddress>
<addressBlock><offset>0</offset><size>0x400</size></addressBlock></peripheral>
</peripherals></device>`

func xzBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := archive.Compress(&buf, []byte(s)); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name           string
		data           []byte
		wantFormat     validation.ImportFormat
		wantCompressed bool
		wantBlocks     int
	}{
		{"markdown", []byte(table), validation.FormatMarkdown, false, 2},
		{"svd", []byte(svdDoc), validation.FormatSVD, false, 1},
		{"xz markdown", xzBytes(t, table), validation.FormatMarkdown, true, 2},
		{"xz svd", xzBytes(t, svdDoc), validation.FormatSVD, true, 1},
		{"prose only", []byte("nothing to see here"), validation.FormatMarkdown, false, 0},
		{"empty", nil, validation.FormatMarkdown, false, 0},
		{"whitespace", []byte(" \n\t"), validation.FormatMarkdown, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if res.Format != tt.wantFormat || res.Compressed != tt.wantCompressed || len(res.Blocks) != tt.wantBlocks {
				t.Errorf("got format=%s compressed=%v blocks=%d", res.Format, res.Compressed, len(res.Blocks))
			}
			if res.Blocks == nil {
				t.Error("expected a non-nil block slice")
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	res, err := Decode([]byte(table))
	if err != nil {
		t.Fatal(err)
	}
	if got := memmap.RenderTable(res.Blocks); got != table {
		t.Errorf("re-export differs:\n%s\nwant\n%s", got, table)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode string
		wantIs   error
	}{
		{"binary", []byte{0x00, 0x01, 0x02, 0x03}, "UNSUPPORTED_FORMAT", coreerrors.ErrUnsupported},
		{"non-svd xml", []byte(`<html><body/></html>`), "UNSUPPORTED_FORMAT", coreerrors.ErrUnsupported},
		{"broken svd", []byte(`<device><peripherals></device>`), "INVALID_IMPORT", coreerrors.ErrInvalidInput},
		{"broken xz", append([]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, []byte("garbage")...), "INVALID_IMPORT", nil},
		{"too large", bytes.Repeat([]byte("a"), validation.MaxImportSize+1), "INVALID_DRAFT", coreerrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := coreerrors.Code(err); got != tt.wantCode {
				t.Errorf("Code() = %s, want %s (%v)", got, tt.wantCode, err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected errors.Is(err, %v), got %v", tt.wantIs, err)
			}
		})
	}
}

func TestDecodeXZOfUnknownContent(t *testing.T) {
	_, err := Decode(xzBytes(t, "\x00\x00\x00binary"))
	if !errors.Is(err, coreerrors.ErrUnsupported) {
		t.Errorf("expected unsupported, got %v", err)
	}
	if !strings.Contains(err.Error(), "import format") {
		t.Errorf("unexpected message %q", err)
	}
}
