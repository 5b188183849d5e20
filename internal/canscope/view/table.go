package view

import (
	"io"

	"github.com/gosuri/uitable"

	"github.com/autopeer-io/canscope/internal/monitor"
)

func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	return table
}

// RenderLog writes the trace entries as an aligned table.
func RenderLog(w io.Writer, entries []*monitor.LogEntry) error {
	table := newTable()
	table.AddRow(LogHeader...)
	for _, e := range entries {
		table.AddRow(LogRow(e)...)
	}
	_, err := io.WriteString(w, table.String()+"\n")
	return err
}

// RenderMonitor writes the monitor rows as an aligned table.
func RenderMonitor(w io.Writer, rows []monitor.MonitorEntry) error {
	table := newTable()
	table.AddRow(MonitorHeader...)
	for _, r := range rows {
		table.AddRow(MonitorRow(r)...)
	}
	_, err := io.WriteString(w, table.String()+"\n")
	return err
}
