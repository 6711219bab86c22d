package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

// plainTable prints rows aligned in columns with no borders or header, in
// the style of kubectl --no-headers.
type plainTable struct {
	out     io.Writer
	rows    [][]string
	widths  []int
	padding int
}

func newPlainTable(out io.Writer, columns int) *plainTable {
	return &plainTable{out: out, widths: make([]int, columns), padding: 3}
}

// append adds a row, padding or cutting it to the column count.
func (t *plainTable) append(row []string) {
	normalized := make([]string, len(t.widths))
	for i := range normalized {
		if i >= len(row) {
			continue
		}
		normalized[i] = row[i]
		if w := text.StringWidthWithoutEscSequences(row[i]); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, normalized)
}

func (t *plainTable) render() {
	for _, row := range t.rows {
		var sb strings.Builder
		for i, cell := range row {
			sb.WriteString(cell)
			if i < len(row)-1 {
				gap := t.widths[i] - text.StringWidthWithoutEscSequences(cell) + t.padding
				sb.WriteString(strings.Repeat(" ", gap))
			}
		}
		fmt.Fprintln(t.out, strings.TrimRight(sb.String(), " "))
	}
}
