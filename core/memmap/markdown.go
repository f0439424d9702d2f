package memmap

import (
	"math/big"
	"regexp"
	"strings"
)

// TableHeader and TableSeparator are the first two lines of an exported table.
const (
	TableHeader    = "| Region | Start Address | End Address | Size | Type | Description |"
	TableSeparator = "| :--- | :--- | :--- | :--- | :--- | :--- |"
)

// minTableCells is the number of non-empty cells a data row needs:
// name, start, end, size and type.
const minTableCells = 5

var separatorLine = regexp.MustCompile(`^[|:\-\s]+$`)

// RenderTable renders blocks as a GitHub-flavoured Markdown table in
// ascending start order. ParseTable reads this output back.
func RenderTable(blocks []Block) string {
	var sb strings.Builder
	sb.WriteString(TableHeader + "\n")
	sb.WriteString(TableSeparator + "\n")
	for _, b := range SortByStart(blocks) {
		sb.WriteString("| " + b.Name)
		sb.WriteString(" | " + ToHex(b.Start, true))
		sb.WriteString(" | " + ToHex(b.EndAddress(), true))
		sb.WriteString(" | " + FormatSize(b.Size))
		sb.WriteString(" | " + string(b.Type))
		sb.WriteString(" | " + b.Description + " |\n")
	}
	return sb.String()
}

// ParseTable extracts blocks from a pipe-delimited Markdown table with the
// columns of RenderTable. It is tolerant: header, separator and blank lines
// are ignored, rows with fewer than five non-empty cells are skipped, and an
// unknown type becomes SRAM. When the end address is not below the start
// address the size is recomputed from the range; the size column is only
// used otherwise. Every block gets a fresh id. The result is sorted by start
// address; it is empty when no row qualifies.
func ParseTable(text string) []Block {
	blocks := []Block{}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" || isHeaderLine(line) || separatorLine.MatchString(line) {
			continue
		}

		cells := splitCells(line)
		if len(cells) < minTableCells {
			continue
		}

		name := cells[0]
		start := ParseHex(cells[1])
		end := ParseHex(cells[2])

		var size *big.Int
		if end.Cmp(start) >= 0 {
			size = rangeSize(start, end)
		} else {
			size = ParseHumanSize(cells[3])
		}

		description := strings.Join(cells[minTableCells:], " | ")
		blocks = append(blocks, NewBlock(name, start, size, TypeOrDefault(cells[4]), description))
	}
	return SortByStart(blocks)
}

func isHeaderLine(line string) bool {
	return strings.Contains(line, "Region") && strings.Contains(line, "Start Address")
}

// splitCells splits a row on "|", trims every cell and drops empty ones.
func splitCells(line string) []string {
	var cells []string
	for _, c := range strings.Split(line, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}
