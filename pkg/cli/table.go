package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// columnGap is the number of spaces between columns
const columnGap = 2

// Table renders column-aligned output. Rows are buffered until Flush so
// that column widths can be fitted to the terminal; cells in columns that
// had to shrink are word-wrapped onto continuation lines. Empty tables
// produce no output.
type Table struct {
	out      io.Writer
	headers  []string
	rows     [][]string
	prefix   string
	maxWidth int
}

// NewTable creates a table on stdout with the given column headers, fitted
// to the terminal width when stdout is a terminal.
func NewTable(headers ...string) *Table {
	return &Table{
		out:      os.Stdout,
		headers:  headers,
		maxWidth: TerminalWidth(),
	}
}

// WithWriter redirects output to w
func (t *Table) WithWriter(w io.Writer) *Table {
	t.out = w
	return t
}

// WithMaxWidth overrides the width the table is fitted to (0 = unlimited)
func (t *Table) WithMaxWidth(width int) *Table {
	t.maxWidth = width
	return t
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
// Useful for indenting sub-tables within larger output.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row buffers a row. Missing trailing cells are rendered empty.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Flush writes the table. If no rows were added, nothing is printed.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i := range widths {
			if i < len(row) && visualLen(row[i]) > widths[i] {
				widths[i] = visualLen(row[i])
			}
		}
	}
	if t.maxWidth > 0 {
		widths = capWidths(widths, t.headers, t.maxWidth, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.writeLine(widths, t.headers)
	t.writeLine(widths, dividers)
	for _, row := range t.rows {
		t.writeRow(widths, row)
	}
}

// writeRow wraps every cell to its column and emits as many lines as the
// tallest cell needs.
func (t *Table) writeRow(widths []int, row []string) {
	cells := make([][]string, len(widths))
	height := 1
	for i := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cells[i] = wrapCell(cell, widths[i])
		if len(cells[i]) > height {
			height = len(cells[i])
		}
	}
	for line := 0; line < height; line++ {
		values := make([]string, len(widths))
		for i := range widths {
			if line < len(cells[i]) {
				values[i] = cells[i][line]
			}
		}
		t.writeLine(widths, values)
	}
}

func (t *Table) writeLine(widths []int, values []string) {
	var b strings.Builder
	b.WriteString(t.prefix)
	for i, v := range values {
		b.WriteString(v)
		if i == len(values)-1 {
			break
		}
		b.WriteString(strings.Repeat(" ", max(0, widths[i]-visualLen(v))+columnGap))
	}
	fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

// visualLen is the printed width of s, ignoring ANSI escape sequences
func visualLen(s string) int {
	return utf8.RuneCountInString(ansiEscape.ReplaceAllString(s, ""))
}

// capWidths shrinks the widest columns until the table fits termWidth.
// No column is reduced below the width of its header.
func capWidths(widths []int, headers []string, termWidth, prefix int) []int {
	out := make([]int, len(widths))
	copy(out, widths)

	minWidths := make([]int, len(headers))
	for i, h := range headers {
		minWidths[i] = visualLen(h)
	}

	for {
		total := prefix + columnGap*(len(out)-1)
		for _, w := range out {
			total += w
		}
		excess := total - termWidth
		if excess <= 0 {
			return out
		}

		widest := -1
		for i, w := range out {
			if w > minWidths[i] && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			return out
		}
		out[widest] -= min(excess, out[widest]-minWidths[widest])
	}
}

// wrapCell word-wraps s to width, hard-breaking words longer than width.
// A cell that already fits is returned unchanged, escape sequences included.
func wrapCell(s string, width int) []string {
	if visualLen(s) <= width || width <= 0 {
		return []string{s}
	}

	var lines []string
	var cur []rune
	for _, word := range strings.Fields(ansiEscape.ReplaceAllString(s, "")) {
		w := []rune(word)
		if len(cur) > 0 && len(cur)+1+len(w) <= width {
			cur = append(cur, ' ')
			cur = append(cur, w...)
			continue
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = nil
		}
		for len(w) > width {
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		cur = w
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
