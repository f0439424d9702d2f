package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"table", []byte("| Region | Start Address |\n| Flash | 0x08000000 |\n")},
		{"empty", []byte{}},
		{"repetitive", bytes.Repeat([]byte("| SRAM | 0x20000000 |\n"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Compress(&buf, tt.data); err != nil {
				t.Fatalf("Compress failed: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
				t.Error("expected xz magic")
			}

			out, err := Decompress(buf.Bytes(), int64(len(tt.data))+1)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(tt.data))
			}
		})
	}
}

func TestDecompressLimit(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 4096)
	var buf bytes.Buffer
	if err := Compress(&buf, data); err != nil {
		t.Fatal(err)
	}

	if _, err := Decompress(buf.Bytes(), 4096); err != nil {
		t.Errorf("exact limit should pass: %v", err)
	}
	_, err := Decompress(buf.Bytes(), 4095)
	if err == nil || !strings.Contains(err.Error(), "exceeds 4095 bytes") {
		t.Errorf("expected a size error, got %v", err)
	}
}

func TestDecompressInvalid(t *testing.T) {
	if _, err := Decompress([]byte("not xz at all"), 1024); err == nil {
		t.Error("expected an error for non-xz input")
	}

	var buf bytes.Buffer
	if err := Compress(&buf, bytes.Repeat([]byte("abc"), 100)); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]
	if _, err := Decompress(truncated, 1024); err == nil {
		t.Error("expected an error for a truncated stream")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	table := []byte("| Region |\n")

	plain := filepath.Join(dir, "nested", "map.md")
	if err := WriteFile(plain, table); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := os.ReadFile(plain)
	if err != nil || !bytes.Equal(got, table) {
		t.Errorf("plain file = %q, %v", got, err)
	}

	compressed := filepath.Join(dir, "map.md.XZ")
	if err := WriteFile(compressed, table); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	raw, err := os.ReadFile(compressed)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompress(raw, 1024)
	if err != nil || !bytes.Equal(out, table) {
		t.Errorf("compressed file decoded to %q, %v", out, err)
	}
}

func TestWriteFileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(filepath.Join(blocker, "map.md"), []byte("x")); err == nil {
		t.Error("expected an error when the parent is a file")
	}
}
