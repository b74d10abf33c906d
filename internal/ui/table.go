package ui

import (
	"fmt"
	"strings"
)

// Alignment specifies how text is aligned within a column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Column defines a table column with a header, width, and alignment.
type Column struct {
	Header string
	Width  int
	Align  Alignment
}

// Table renders tabular data with consistent formatting.
type Table struct {
	columns []Column
	rows    [][]string
	indent  int
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns: columns,
		indent:  2,
	}
}

// AddRow adds a row of values to the table. Cells beyond the column count
// are dropped; missing cells render empty.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// formatCell truncates and pads a cell value to its column.
func formatCell(value string, col Column) string {
	if len(value) > col.Width {
		if col.Width <= 3 {
			value = value[:col.Width]
		} else {
			value = value[:col.Width-3] + "..."
		}
	}

	if col.Align == AlignRight {
		return fmt.Sprintf("%*s", col.Width, value)
	}
	return fmt.Sprintf("%-*s", col.Width, value)
}

// Render returns the formatted table as a string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder
	indent := strings.Repeat(" ", t.indent)
	gap := "  "

	b.WriteString(indent)
	for i, col := range t.columns {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(Header(formatCell(col.Header, col)))
	}
	b.WriteString("\n")

	for _, row := range t.rows {
		b.WriteString(indent)
		for i, col := range t.columns {
			if i > 0 {
				b.WriteString(gap)
			}
			value := ""
			if i < len(row) {
				value = row[i]
			}
			b.WriteString(formatCell(value, col))
		}
		b.WriteString("\n")
	}

	return b.String()
}
