package ui

import (
	"strings"
	"testing"
)

func TestTableRender(t *testing.T) {
	table := NewTable(
		Column{Header: "NAME", Width: 10},
		Column{Header: "SIZE", Width: 8, Align: AlignRight},
	)
	table.AddRow("alpha", "1.2 GiB")
	table.AddRow("beta")

	out := table.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Render() produced %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "NAME") || !strings.Contains(lines[0], "SIZE") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "alpha") {
		t.Errorf("row line = %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], "1.2 GiB") {
		t.Errorf("right-aligned cell not flush: %q", lines[1])
	}
}

func TestTableTruncatesLongCells(t *testing.T) {
	table := NewTable(Column{Header: "ID", Width: 8})
	table.AddRow("a-very-long-identifier")

	out := table.Render()
	if !strings.Contains(out, "a-ver...") {
		t.Errorf("long cell not truncated with ellipsis:\n%s", out)
	}
	if strings.Contains(out, "identifier") {
		t.Errorf("long cell rendered in full:\n%s", out)
	}
}

func TestTableEmpty(t *testing.T) {
	if out := (&Table{}).Render(); out != "" {
		t.Errorf("Render() on an empty table = %q, want empty", out)
	}
}
