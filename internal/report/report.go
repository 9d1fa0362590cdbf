// Package report renders run summaries as terminal tables.
package report

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Count is one labelled number in a summary table.
type Count struct {
	Label string
	Value int
}

// NewTable returns a rounded table writer that renders to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// Counts renders a two-column table of counts under title.
func Counts(w io.Writer, title string, counts []Count) {
	t := NewTable(w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Metric", "Count"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Label, c.Value})
	}
	t.Render()
}

// Files renders per-file counts in the given order.
func Files(w io.Writer, title string, paths []string, counts map[string]int) {
	t := NewTable(w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"File", "URLs"})
	total := 0
	for _, p := range paths {
		t.AppendRow(table.Row{p, counts[p]})
		total += counts[p]
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
}
