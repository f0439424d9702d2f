// Package svd imports CMSIS-SVD device descriptions as memory map blocks.
//
// Each peripheral becomes one Peripheral block spanning all of its address
// blocks. Peripherals declared with derivedFrom inherit the address blocks and
// description of their base peripheral when they do not declare their own.
package svd

import (
	"io"
	"math/big"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/memmap/core/errors"
	"github.com/FocuswithJustin/memmap/core/memmap"
)

var (
	peripheralsExpr  = xpath.MustCompile("//device/peripherals/peripheral")
	addressBlockExpr = xpath.MustCompile("addressBlock")
)

// addressBlock is one <addressBlock> of a peripheral, relative to its base.
type addressBlock struct {
	offset *big.Int
	size   *big.Int
}

type peripheral struct {
	name        string
	description string
	base        *big.Int
	derivedFrom string
	blocks      []addressBlock
}

// Parse reads an SVD document and returns one block per peripheral that has a
// base address and at least one address block, sorted by start address.
func Parse(r io.Reader) ([]memmap.Block, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.NewParse("SVD", "", err)
	}

	nodes := xmlquery.QuerySelectorAll(doc, peripheralsExpr)
	byName := make(map[string]*peripheral, len(nodes))
	var order []*peripheral
	for _, n := range nodes {
		p := readPeripheral(n)
		if p.name == "" {
			continue
		}
		byName[p.name] = p
		order = append(order, p)
	}

	var blocks []memmap.Block
	for _, p := range order {
		if base := byName[p.derivedFrom]; base != nil && base != p {
			if len(p.blocks) == 0 {
				p.blocks = base.blocks
			}
			if p.description == "" {
				p.description = base.description
			}
		}
		if p.base == nil || len(p.blocks) == 0 {
			continue
		}
		start, size := span(p.base, p.blocks)
		blocks = append(blocks, memmap.NewBlock(p.name, start, size, memmap.TypePeripheral, p.description))
	}
	return memmap.SortByStart(blocks), nil
}

func readPeripheral(n *xmlquery.Node) *peripheral {
	p := &peripheral{
		name:        childText(n, "name"),
		description: collapseSpace(childText(n, "description")),
		derivedFrom: n.SelectAttr("derivedFrom"),
	}
	if v, ok := ParseNumber(childText(n, "baseAddress")); ok {
		p.base = v
	}
	for _, ab := range xmlquery.QuerySelectorAll(n, addressBlockExpr) {
		offset, okOffset := ParseNumber(childText(ab, "offset"))
		size, okSize := ParseNumber(childText(ab, "size"))
		if okOffset && okSize {
			p.blocks = append(p.blocks, addressBlock{offset: offset, size: size})
		}
	}
	return p
}

// span covers every address block: from the lowest offset to the highest
// offset+size, relative to base.
func span(base *big.Int, blocks []addressBlock) (*big.Int, *big.Int) {
	lo := new(big.Int).Set(blocks[0].offset)
	hi := new(big.Int).Add(blocks[0].offset, blocks[0].size)
	for _, b := range blocks[1:] {
		if b.offset.Cmp(lo) < 0 {
			lo.Set(b.offset)
		}
		if end := new(big.Int).Add(b.offset, b.size); end.Cmp(hi) > 0 {
			hi = end
		}
	}
	start := new(big.Int).Add(base, lo)
	return start, hi.Sub(hi, lo)
}

// ParseNumber parses an SVD scaledNonNegativeInteger: decimal, "0x" hex or
// "#" binary, with an optional k, m, g or t suffix scaling by powers of 1024.
func ParseNumber(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return nil, false
	}

	var shift uint
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "#"):
		base, s = 2, s[1:]
	}
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		case 't', 'T':
			shift = 40
		}
		if shift > 0 {
			s = s[:n-1]
		}
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v.Lsh(v, shift), true
}

func childText(n *xmlquery.Node, name string) string {
	if c := n.SelectElement(name); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
