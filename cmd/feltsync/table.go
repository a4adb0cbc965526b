package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders rows under headers using a rounded box style. Columns
// named in rightAligned are right-justified, which the CLI uses for counts
// and identifiers.
func renderTable(headers []string, rows [][]string, rightAligned ...string) string {
	if len(headers) == 0 {
		return ""
	}

	rightSet := make(map[string]bool, len(rightAligned))
	for _, name := range rightAligned {
		rightSet[name] = true
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	configs := make([]table.ColumnConfig, 0, len(headers))
	for i, name := range headers {
		header[i] = name
		align := text.AlignLeft
		if rightSet[name] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}
