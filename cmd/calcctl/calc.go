package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/sqlcalc"
	"github.com/hugr-lab/sqlcalc/table"
)

func newCalcCmd() *cobra.Command {
	var (
		paramFile string
		schema    string
	)
	cmd := &cobra.Command{
		Use:   "calc <rows>",
		Short: "Filter and project rows with a calc parameter document",
		Long: `Run the calc engine over rows given as a JSON array of arrays, one cell per
--schema column. The parameter document is JSON or MessagePack.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseSchema(schema)
			if err != nil {
				return err
			}
			data, err := readArg(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read rows: %w", err)
			}
			in, err := buildTable(fields, data)
			if err != nil {
				return err
			}
			param, err := os.ReadFile(paramFile)
			if err != nil {
				return fmt.Errorf("read params: %w", err)
			}

			logger, err := loggerFromCmd(cmd)
			if err != nil {
				return err
			}
			rt, err := sqlcalc.New(sqlcalc.Config{Logger: logger})
			if err != nil {
				return err
			}
			c, err := rt.DecodeCalc(param)
			if err != nil {
				return err
			}
			if err := c.Compile(in.Schema()); err != nil {
				return err
			}
			out, err := c.Process(in)
			if err != nil {
				return err
			}
			return printTable(newPrinter(cmd), out)
		},
	}
	cmd.Flags().StringVar(&paramFile, "param", "", "calc parameter file (JSON or MessagePack)")
	cmd.Flags().StringVar(&schema, "schema", "", "input columns as name:TYPE,...")
	_ = cmd.MarkFlagRequired("param")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// parseSchema parses "a:BIGINT,tags:ARRAY(VARCHAR)". Commas inside
// parentheses do not split.
func parseSchema(s string) (table.Schema, error) {
	var (
		out   table.Schema
		depth int
		start int
	)
	add := func(part string) error {
		name, typ, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" {
			return fmt.Errorf("invalid column %q: want name:TYPE", part)
		}
		ct, err := table.ParseType(typ)
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		out = append(out, table.Field{Name: name, Type: ct})
		return nil
	}
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				if err := add(s[start:i]); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if err := add(s[start:]); err != nil {
		return nil, err
	}
	return out, nil
}

func buildTable(fields table.Schema, data []byte) (*table.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	t := table.New()
	cols := make([]table.Column, len(fields))
	for i, f := range fields {
		col, err := t.DeclareColumn(f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	for i, r := range t.AllocateRows(len(rows)) {
		if len(rows[i]) != len(cols) {
			return nil, fmt.Errorf("row %d: got %d cells, want %d", i, len(rows[i]), len(cols))
		}
		for j, col := range cols {
			v, err := cellValue(rows[i][j], col.Type())
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col.Name(), err)
			}
			if err := col.SetValue(r, v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, col.Name(), err)
			}
		}
	}
	return t, nil
}

func cellValue(cell any, ct table.ColumnType) (table.Value, error) {
	var v table.Value
	switch x := cell.(type) {
	case nil:
		return table.ZeroValue(ct), nil
	case bool:
		v = table.BoolValue(x)
	case json.Number:
		v = table.StringValue(x.String())
	case string:
		v = table.StringValue(x)
	case []any:
		elems := make([]table.Value, len(x))
		for i, e := range x {
			ev, err := cellValue(e, table.Single(ct.Value))
			if err != nil {
				return table.Value{}, err
			}
			elems[i] = ev
		}
		return table.MultiValue(ct.Value, elems), nil
	default:
		return table.Value{}, fmt.Errorf("unsupported cell %T", cell)
	}
	return v.Convert(ct)
}

func printTable(p *printer, t *table.Table) error {
	names := t.Schema().Names()
	live := t.LiveRows()
	rows := make([][]string, len(live))
	for i, r := range live {
		line := make([]string, t.ColumnCount())
		for j, col := range t.Columns() {
			line[j] = col.Value(r).String()
		}
		rows[i] = line
	}
	if p.isJSON() {
		return p.json(map[string]any{"columns": names, "rows": rows})
	}
	p.table(names, rows)
	return nil
}
