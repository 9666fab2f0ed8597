package cmd

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// printer renders command results as a table or as indented JSON.
type printer struct {
	w      io.Writer
	format string
}

func (g *globals) printer(w io.Writer) (*printer, error) {
	switch g.output {
	case formatTable, formatJSON:
		return &printer{w: w, format: g.output}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", g.output)
	}
}

// print writes payload as JSON, or header and rows as a table.
func (p *printer) print(payload any, header table.Row, rows []table.Row) error {
	if p.format == formatJSON {
		data, err := sonic.ConfigStd.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.SetColumnConfigs(numericColumns(header))
	_, err := fmt.Fprintln(p.w, t.Render())
	return err
}

// numericColumns right-aligns every column after the first.
func numericColumns(header table.Row) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(header))
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	return configs
}
