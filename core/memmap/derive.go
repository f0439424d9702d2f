package memmap

import (
	"math/big"
	"strings"
)

// Field identifies one of the three address inputs of the editor.
type Field int

// Address fields. FieldNone means no field is derived.
const (
	FieldNone Field = iota
	FieldStart
	FieldEnd
	FieldSize
)

// String returns the lower-case field name used in JSON and HTML ids.
func (f Field) String() string {
	switch f {
	case FieldStart:
		return "start"
	case FieldEnd:
		return "end"
	case FieldSize:
		return "size"
	default:
		return ""
	}
}

// Derivation is the classification of one set of address inputs.
type Derivation struct {
	// Active lists the non-blank fields in start, end, size order.
	Active []Field
	// Target is the field computed from the other two, or FieldNone.
	Target Field
	// Value is the computed text for Target.
	Value string
	// Conflict is set when start, end and size are all filled in.
	Conflict bool
}

// Derive decides which address field, if any, is computed from the other two
// and computes it. Exactly two non-blank fields are needed for a derivation;
// three is a conflict. Unparseable text counts as 0, so garbage input yields a
// degenerate result rather than an error.
func Derive(start, end, size string) Derivation {
	var d Derivation
	if !isBlank(start) {
		d.Active = append(d.Active, FieldStart)
	}
	if !isBlank(end) {
		d.Active = append(d.Active, FieldEnd)
	}
	if !isBlank(size) {
		d.Active = append(d.Active, FieldSize)
	}
	d.Conflict = len(d.Active) == 3
	if len(d.Active) != 2 {
		return d
	}

	s := ParseHex(start)
	e := ParseHex(end)
	sz := ParseHumanSize(size)
	one := big.NewInt(1)

	switch {
	case !d.has(FieldEnd):
		v := new(big.Int).Add(s, sz)
		d.Target, d.Value = FieldEnd, ToHex(v.Sub(v, one), true)
	case !d.has(FieldSize):
		d.Target, d.Value = FieldSize, CompactSize(rangeSize(s, e))
	default:
		v := new(big.Int)
		if e.Cmp(new(big.Int).Sub(sz, one)) >= 0 {
			v.Sub(e, sz).Add(v, one)
		}
		d.Target, d.Value = FieldStart, ToHex(v, true)
	}
	return d
}

// Count returns the number of non-blank fields.
func (d Derivation) Count() int {
	return len(d.Active)
}

// CanCommit reports whether a block named name may be committed from these
// inputs: two or more fields, no conflict and a non-blank name.
func (d Derivation) CanCommit(name string) bool {
	return len(d.Active) >= 2 && !d.Conflict && !isBlank(name)
}

func (d Derivation) has(f Field) bool {
	for _, a := range d.Active {
		if a == f {
			return true
		}
	}
	return false
}

// Resolve returns the start and size a block is committed with. A derived
// start is taken from the derivation; a derived size is recomputed exactly
// from the address range instead of re-parsing its rounded display text.
func Resolve(start, end, size string) (*big.Int, *big.Int) {
	d := Derive(start, end, size)
	s := ParseHex(start)
	if d.Target == FieldStart {
		s = ParseHex(d.Value)
	}
	if d.Target == FieldSize {
		return s, rangeSize(s, ParseHex(end))
	}
	return s, ParseHumanSize(size)
}

// rangeSize is end-start+1, or 0 for an inverted range.
func rangeSize(start, end *big.Int) *big.Int {
	if end.Cmp(start) < 0 {
		return new(big.Int)
	}
	v := new(big.Int).Sub(end, start)
	return v.Add(v, big.NewInt(1))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
