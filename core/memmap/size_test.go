package memmap

import (
	"math/big"
	"strings"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0 B"},
		{"1", "1 B"},
		{"1023", "1023 B"},
		{"1024", "1 KB"},
		{"1025", "1 KB"},
		{"1536", "1.50 KB"},
		{"1535", "1.50 KB"},
		{"2047", "2 KB"},
		{"524288", "512 KB"},
		{"1048570", "1023.99 KB"},
		// Rounding can reach 1024 within a unit.
		{"1048575", "1024 KB"},
		{"1048576", "1 MB"},
		{"1572864", "1.50 MB"},
		{"1073741824", "1 GB"},
		{"1099511627776", "1 TB"},
		{"1125899906842624", "1024 TB"},
		{"1152921504606846976", "1048576 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatSize(bi(tt.in)); got != tt.want {
				t.Errorf("FormatSize(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := FormatSize(nil); got != "0 B" {
		t.Errorf("FormatSize(nil) = %q", got)
	}
}

func TestFormatSizeUnitSelection(t *testing.T) {
	for _, n := range []int64{1, 100, 1000, 1023} {
		if got := FormatSize(big.NewInt(n)); !strings.HasSuffix(got, " B") {
			t.Errorf("FormatSize(%d) = %q, expected unit B", n, got)
		}
	}
	for _, n := range []int64{1024, 1 << 20, 1 << 40} {
		if got := FormatSize(big.NewInt(n)); strings.HasSuffix(got, " B") {
			t.Errorf("FormatSize(%d) = %q, expected a unit above B", n, got)
		}
	}
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	if got := FormatSize(huge); !strings.HasSuffix(got, " TB") {
		t.Errorf("FormatSize(2^100) = %q, expected TB", got)
	}
}

func TestCompactSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{1536, "1.50KB"},
		{4096, "4KB"},
		{64 << 20, "64MB"},
	}
	for _, tt := range tests {
		if got := CompactSize(big.NewInt(tt.in)); got != tt.want {
			t.Errorf("CompactSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"0", "0"},
		{"1024", "1024"},
		{"1KB", "1024"},
		{"1kb", "1024"},
		{"1K", "1024"},
		{"1 KB", "1024"},
		{"512 MB", "536870912"},
		{"1\u00a0KB", "1024"},
		{"2\u2009MB", "2097152"},
		{"1\tK", "1024"},
		{"1.5MB", "1572864"},
		{"1.5KB", "1536"},
		{"0.1KB", "102"},
		{"1.5", "1"},
		{"2.5g", "2684354560"},
		{"16B", "16"},
		{"1TB", "1099511627776"},
		{"4096TB", "4503599627370496"},
		// Exact scaling: no float rounding for large magnitudes.
		{"1.000000000000000001TB", "1099511627776"},
		{"8388607.99999999TB", "9223372036854764812"},
		// Anything else is read as hex.
		{"0x400", "1024"},
		{"400h", "1024"},
		{"abc", "2748"},
		{"zz", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseHumanSize(tt.in).String(); got != tt.want {
				t.Errorf("ParseHumanSize(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSizeRoundTripWholeUnits(t *testing.T) {
	for _, n := range []int64{1, 1023, 1024, 4096, 64 << 10, 1 << 20, 3 << 30} {
		v := big.NewInt(n)
		if got := ParseHumanSize(FormatSize(v)); got.Cmp(v) != 0 {
			t.Errorf("ParseHumanSize(FormatSize(%d)) = %s", n, got)
		}
		if got := ParseHumanSize(CompactSize(v)); got.Cmp(v) != 0 {
			t.Errorf("ParseHumanSize(CompactSize(%d)) = %s", n, got)
		}
	}
}
