package memmap

import (
	"math/big"
	"sort"

	"github.com/google/uuid"
)

// Type classifies a memory region.
type Type string

// Region types.
const (
	TypeReserved   Type = "Reserved"
	TypeSRAM       Type = "SRAM"
	TypeFlash      Type = "FLASH"
	TypePeripheral Type = "Peripheral"
	TypeStack      Type = "Stack"
	TypeHeap       Type = "Heap"
	TypeMMIO       Type = "MMIO"
)

// Types lists every region type in the order offered by the editor.
var Types = []Type{TypeSRAM, TypeFlash, TypeReserved, TypePeripheral, TypeStack, TypeHeap, TypeMMIO}

// DefaultType is used when a type is missing or unrecognised.
const DefaultType = TypeSRAM

// ParseType reports whether s names a region type (exact match).
func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// TypeOrDefault returns the type named by s, or DefaultType.
func TypeOrDefault(s string) Type {
	if t, ok := ParseType(s); ok {
		return t
	}
	return DefaultType
}

// Block is a named, typed, contiguous span of address space.
type Block struct {
	ID          string
	Name        string
	Start       *big.Int
	Size        *big.Int
	Type        Type
	Description string
}

// NewBlock creates a block with a fresh id. A blank description becomes
// "<name> region".
func NewBlock(name string, start, size *big.Int, t Type, description string) Block {
	if description == "" {
		description = DefaultDescription(name)
	}
	return Block{
		ID:          uuid.New().String(),
		Name:        name,
		Start:       new(big.Int).Set(orZero(start)),
		Size:        new(big.Int).Set(orZero(size)),
		Type:        t,
		Description: description,
	}
}

// DefaultDescription is the description given to blocks created without one.
func DefaultDescription(name string) string {
	return name + " region"
}

// Clone returns a copy of b that shares no big.Int values with it.
func (b Block) Clone() Block {
	b.Start = new(big.Int).Set(orZero(b.Start))
	b.Size = new(big.Int).Set(orZero(b.Size))
	return b
}

// Range returns the half-open span [Start, Start+Size).
func (b Block) Range() Range {
	return Range{Start: b.Start, Size: b.Size}
}

// EndAddress returns the inclusive end address Start+Size-1. It is only
// meaningful for blocks with a non-zero size.
func (b Block) EndAddress() *big.Int {
	end := new(big.Int).Add(orZero(b.Start), orZero(b.Size))
	return end.Sub(end, big.NewInt(1))
}

// NextStart returns the first address after the block, Start+Size.
func NextStart(b Block) *big.Int {
	return new(big.Int).Add(orZero(b.Start), orZero(b.Size))
}

// GapBeforeNext returns the unmapped space between prev and next, which must
// be given in ascending address order. Zero means the blocks abut, a negative
// value means they overlap.
func GapBeforeNext(prev, next Block) *big.Int {
	return new(big.Int).Sub(orZero(next.Start), NextStart(prev))
}

// Range is a half-open address interval [Start, Start+Size).
type Range struct {
	Start *big.Int
	Size  *big.Int
}

// Overlaps reports whether the half-open intervals a and b intersect.
func Overlaps(a, b Range) bool {
	aEnd := new(big.Int).Add(orZero(a.Start), orZero(a.Size))
	bEnd := new(big.Int).Add(orZero(b.Start), orZero(b.Size))
	return orZero(a.Start).Cmp(bEnd) < 0 && orZero(b.Start).Cmp(aEnd) < 0
}

// OverlapPair names two blocks whose ranges intersect.
type OverlapPair struct {
	First  Block
	Second Block
}

// FindOverlaps returns every intersecting pair of blocks, in ascending start
// order. It only reports; nothing in this package rejects overlapping blocks.
func FindOverlaps(blocks []Block) []OverlapPair {
	sorted := SortByStart(blocks)
	var pairs []OverlapPair
	for i := range sorted {
		end := NextStart(sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			// Later blocks start at or after sorted[j]; none can reach back.
			if orZero(sorted[j].Start).Cmp(end) >= 0 {
				break
			}
			if Overlaps(sorted[i].Range(), sorted[j].Range()) {
				pairs = append(pairs, OverlapPair{First: sorted[i], Second: sorted[j]})
			}
		}
	}
	return pairs
}

// SortByStart returns a copy of blocks in ascending start order. Blocks with
// equal start addresses keep their relative order.
func SortByStart(blocks []Block) []Block {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return orZero(sorted[i].Start).Cmp(orZero(sorted[j].Start)) < 0
	})
	return sorted
}

var zero = new(big.Int)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}
