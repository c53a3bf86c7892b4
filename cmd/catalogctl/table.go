package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column 表格欄位；numeric 欄位靠右對齊
type column struct {
	title   string
	numeric bool
}

func textColumn(title string) column { return column{title: title} }
func numericColumn(title string) column { return column{title: title, numeric: true} }

// scoreCell 信心值與相似度一律顯示三位小數
func scoreCell(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// daysCell 保存天數，未知時顯示 "-"
func daysCell(days *int) string {
	if days == nil {
		return "-"
	}
	return strconv.Itoa(*days)
}

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		header = append(header, col.title)
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.numeric {
			cfg.Align = text.AlignRight
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
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
