package pipeline

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// TableWriter renders records as a terminal table.
type TableWriter struct {
	out      io.Writer
	maxWidth int
	mu       sync.Mutex
	rendered int
}

// NewTableWriter renders into out, wrapping long descriptions at maxWidth
// columns (0 disables wrapping).
func NewTableWriter(out io.Writer, maxWidth int) *TableWriter {
	return &TableWriter{out: out, maxWidth: maxWidth}
}

// Write renders one table per call, numbering rows after earlier calls.
func (tw *TableWriter) Write(records []models.BookRecord) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(tw.out)
	header := table.Row{"#"}
	for _, c := range tableColumns() {
		header = append(header, c.title)
	}
	t.AppendHeader(header)
	if tw.maxWidth > 0 {
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Title", WidthMax: tw.maxWidth},
			{Name: "Description", WidthMax: tw.maxWidth},
		})
	}

	for _, r := range records {
		tw.rendered++
		row := table.Row{tw.rendered}
		for _, c := range tableColumns() {
			row = append(row, c.value(r))
		}
		t.AppendRow(row)
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// Close is a no-op; the table is flushed on every Write.
func (tw *TableWriter) Close() error {
	return nil
}

// Validate ensures at least one row was rendered.
func (tw *TableWriter) Validate() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.rendered == 0 {
		return fmt.Errorf("table is empty")
	}
	return nil
}

// tableColumns drops the cover URL, which is too wide to be useful in a
// terminal.
func tableColumns() []column {
	out := make([]column, 0, len(columns))
	for _, c := range columns {
		if c.name != "cover_url" {
			out = append(out, c)
		}
	}
	return out
}
