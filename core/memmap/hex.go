// Package memmap provides the address arithmetic behind the memory map editor:
// hexadecimal and human-readable size codecs, derivation of the third address
// field, range utilities, Markdown table import/export and the in-memory block
// collection.
//
// Addresses and sizes are arbitrary-precision non-negative integers so that
// 64-bit address spaces (and beyond) are represented exactly.
package memmap

import (
	"math/big"
	"strings"
)

// MinHexDigits is the minimum number of hex digits rendered by ToHex
// (the 32-bit address convention).
const MinHexDigits = 8

// ToHex renders v as uppercase hexadecimal, zero-padded to at least
// MinHexDigits digits, with a "0x" prefix when withPrefix is true.
// Negative values are outside the address domain and render with a leading "-".
func ToHex(v *big.Int, withPrefix bool) string {
	if v == nil {
		v = new(big.Int)
	}
	sign := ""
	digits := strings.ToUpper(new(big.Int).Abs(v).Text(16))
	if v.Sign() < 0 {
		sign = "-"
	}
	if pad := MinHexDigits - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	if withPrefix {
		return sign + "0x" + digits
	}
	return sign + digits
}

// ParseHex parses hexadecimal text. A leading "0x"/"0X" is optional and every
// character outside [0-9a-fA-F] is discarded, so separators such as "_" may
// appear anywhere. Text without any hex digit parses as 0.
func ParseHex(text string) *big.Int {
	if len(text) >= 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		text = text[2:]
	}

	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		if isHexDigit(text[i]) {
			sb.WriteByte(text[i])
		}
	}

	v, ok := new(big.Int).SetString(sb.String(), 16)
	if !ok {
		return new(big.Int)
	}
	return v
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
