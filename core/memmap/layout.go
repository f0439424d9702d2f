package memmap

import (
	"math"
	"math/big"
)

// LayoutOptions controls the proportional layout.
type LayoutOptions struct {
	// MinHeight is the smallest height a block row is drawn with.
	MinHeight float64
	// Scale is the height of a block spanning the whole mapped range.
	Scale float64
}

// DefaultLayoutOptions matches the browser preview.
var DefaultLayoutOptions = LayoutOptions{MinHeight: 40, Scale: 800}

// RowKind distinguishes block rows from gap rows.
type RowKind string

// Layout row kinds.
const (
	RowBlock RowKind = "block"
	RowGap   RowKind = "gap"
)

// LayoutRow is one entry of the visual layout, top to bottom.
type LayoutRow struct {
	Kind RowKind
	// Block is set for block rows.
	Block Block
	// Gap is the unmapped byte count of a gap row.
	Gap *big.Int
	// Height is the drawn height of a block row.
	Height float64
	// Fraction is the block size relative to the total range.
	Fraction float64
}

// Layout is the planned visual layout of a block list.
type Layout struct {
	// TotalRange spans from the lowest start to the end of the last block.
	TotalRange *big.Int
	Rows       []LayoutRow
}

// Plan lays blocks out in ascending address order. Each block is drawn with a
// height proportional to its share of the total range, never below
// MinHeight, and a gap row precedes any block that does not abut its
// predecessor.
func Plan(blocks []Block, opts LayoutOptions) Layout {
	if opts.Scale <= 0 {
		opts = DefaultLayoutOptions
	}
	sorted := SortByStart(blocks)
	layout := Layout{TotalRange: new(big.Int)}
	if len(sorted) == 0 {
		return layout
	}

	last := sorted[len(sorted)-1]
	layout.TotalRange.Sub(NextStart(last), orZero(sorted[0].Start))
	divisor := layout.TotalRange
	if divisor.Sign() == 0 {
		divisor = big.NewInt(1)
	}

	for i, b := range sorted {
		if i > 0 {
			if gap := GapBeforeNext(sorted[i-1], b); gap.Sign() > 0 {
				layout.Rows = append(layout.Rows, LayoutRow{Kind: RowGap, Gap: gap})
			}
		}
		fraction := ratio(orZero(b.Size), divisor)
		layout.Rows = append(layout.Rows, LayoutRow{
			Kind:     RowBlock,
			Block:    b,
			Fraction: fraction,
			Height:   math.Max(opts.MinHeight, fraction*opts.Scale),
		})
	}
	return layout
}

func ratio(a, b *big.Int) float64 {
	f, _ := new(big.Rat).SetFrac(a, b).Float64()
	return f
}
