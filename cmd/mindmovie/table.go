package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// renderTable prints rows under a header using the shared table style.
func renderTable(out io.Writer, header table.Row, rows []table.Row) {
	writer := table.NewWriter()
	writer.SetOutputMirror(out)
	writer.SetStyle(table.StyleRounded)
	writer.AppendHeader(header)
	for _, row := range rows {
		writer.AppendRow(row)
	}
	writer.Render()
}
