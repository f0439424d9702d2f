package memmap

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// sizeUnits are the display units of FormatSize, each 1024 times the previous.
var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

var kibi = big.NewInt(1024)

// unitShift maps an accepted unit suffix to its power of 1024.
var unitShift = map[string]uint{
	"B": 0,
	"K": 1, "KB": 1,
	"M": 2, "MB": 2,
	"G": 3, "GB": 3,
	"T": 4, "TB": 4,
}

// sizeGrammar is the participle grammar for human sizes such as "1KB",
// "512 MB" or "2.5g". Whitespace is only permitted between number and unit.
//
//nolint:govet // participle grammar tags are not standard struct tags
type sizeGrammar struct {
	Number string `parser:"@Number"`
	Space  string `parser:"@Whitespace?"`
	Unit   string `parser:"@Unit?"`
}

var sizeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]+)?`},
	{Name: "Unit", Pattern: `(?i:[KMGT]B?|B)`},
	// Includes Unicode spaces such as U+00A0.
	{Name: "Whitespace", Pattern: `[\s\v\p{Zs}\x{FEFF}\x{2028}\x{2029}]+`},
})

var sizeParser = participle.MustBuild[sizeGrammar](
	participle.Lexer(sizeLexer),
)

// FormatSize renders a byte count with the largest binary unit (up to TB)
// that keeps the scaled value below 1024. The value is rounded half-up to two
// decimals and a trailing ".00" is dropped: 1024 -> "1 KB", 1536 -> "1.50 KB".
func FormatSize(bytes *big.Int) string {
	if bytes == nil || bytes.Sign() == 0 {
		return "0 B"
	}

	unit := 0
	divisor := big.NewInt(1)
	next := new(big.Int).Set(kibi)
	for unit < len(sizeUnits)-1 && bytes.Cmp(next) >= 0 {
		divisor.Set(next)
		next.Mul(next, kibi)
		unit++
	}

	// hundredths = floor(bytes*100/divisor + 1/2)
	num := new(big.Int).Mul(bytes, big.NewInt(200))
	num.Add(num, divisor)
	den := new(big.Int).Lsh(divisor, 1)
	hundredths := new(big.Int).Quo(num, den)

	whole, frac := new(big.Int).QuoRem(hundredths, big.NewInt(100), new(big.Int))
	text := fmt.Sprintf("%s.%02d", whole.String(), frac.Int64())
	text = strings.TrimSuffix(text, ".00")
	return text + " " + sizeUnits[unit]
}

// CompactSize is FormatSize with all whitespace removed ("1.50KB"), the form
// used when a size is redisplayed in an editable field.
func CompactSize(bytes *big.Int) string {
	return stripSpace(FormatSize(bytes))
}

// ParseHumanSize parses a byte count written as "<number>[ ]<unit>" where the
// unit is one of B, K, KB, M, MB, G, GB, T, TB (any case, default B). The
// result is floored to a whole number of bytes. Text that does not follow
// this shape is parsed as hexadecimal instead, so "0x400" is 1024.
func ParseHumanSize(text string) *big.Int {
	if text == "" {
		return new(big.Int)
	}

	parsed, err := sizeParser.ParseString("", text)
	if err != nil {
		return ParseHex(text)
	}

	value, ok := new(big.Rat).SetString(parsed.Number)
	if !ok {
		return ParseHex(text)
	}

	unit := strings.ToUpper(parsed.Unit)
	if unit == "" {
		unit = "B"
	}
	multiplier := new(big.Int).Lsh(big.NewInt(1), 10*unitShift[unit])
	value.Mul(value, new(big.Rat).SetInt(multiplier))

	// Non-negative, so truncating division is the floor.
	return new(big.Int).Quo(value.Num(), value.Denom())
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
