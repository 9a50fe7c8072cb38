package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/sqlcalc"
	"github.com/hugr-lab/sqlcalc/condition"
	"github.com/hugr-lab/sqlcalc/remote"
)

func newSQLCmd() *cobra.Command {
	var (
		mapping  []string
		query    remote.Query
		keys     []string
		token    string
		key      string
		timeout  int
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "sql <condition>",
		Short: "Render a condition as parameterized remote SQL",
		Long: `Render a condition as a parameterized SQL fragment. With --db and --table
the full remote SELECT is built and packed into a transport request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			columnMapping, err := parseMapping(mapping)
			if err != nil {
				return err
			}

			if query.Database == "" && query.Table == "" {
				text, params, err := condition.RenderRemoteSQL(n, condition.RemoteSQLOptions{ColumnMapping: columnMapping})
				if err != nil {
					return err
				}
				return printStatement(newPrinter(cmd), remote.Statement{SQL: text, Params: params})
			}

			logger, err := loggerFromCmd(cmd)
			if err != nil {
				return err
			}
			config := sqlcalc.Config{
				Logger:          logger,
				RemoteTimeoutMs: timeout,
				CompressRemote:  compress,
			}
			if token != "" || key != "" {
				config.RemoteAuth = &remote.Auth{Token: token, Key: key}
			}
			rt, err := sqlcalc.New(config)
			if err != nil {
				return err
			}

			query.Condition = n
			query.ColumnMapping = columnMapping
			req, err := rt.NewRemoteQuery(query, keys)
			if err != nil {
				return err
			}
			return printRequest(newPrinter(cmd), req)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&mapping, "map", nil, "column mapping as from=to")
	f.StringVar(&query.Database, "db", "", "remote database")
	f.StringVar(&query.Table, "table", "", "remote table")
	f.StringSliceVar(&query.Columns, "columns", nil, "columns to select (default all)")
	f.StringVar(&query.PKField, "pk", "", "primary key field for key lookups")
	f.IntVar(&query.Limit, "limit", remote.DefaultLimit, "row limit")
	f.StringSliceVar(&keys, "keys", nil, "primary key values")
	f.StringVar(&token, "token", "", "auth token")
	f.StringVar(&key, "key", "", "auth signing key")
	f.IntVar(&timeout, "timeout", 0, "remote timeout in milliseconds")
	f.BoolVar(&compress, "compress", false, "zstd-compress the request body")
	return cmd
}

func printStatement(p *printer, stmt remote.Statement) error {
	if stmt.Params == nil {
		stmt.Params = []any{}
	}
	if p.isJSON() {
		return p.json(map[string]any{"sql": stmt.SQL, "params": stmt.Params})
	}
	params, err := json.Marshal(stmt.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	p.kv([][2]string{
		{"SQL", stmt.SQL},
		{"Params", string(params)},
	})
	return nil
}

func printRequest(p *printer, req *remote.Request) error {
	if p.isJSON() {
		return p.json(map[string]any{
			"query":      req.Query,
			"kvpair":     req.KVPair,
			"compressed": req.Compressed,
			"body_bytes": len(req.Body),
		})
	}
	p.kv([][2]string{
		{"Query", req.Query},
		{"KV pair", req.KVPair},
		{"Compressed", strconv.FormatBool(req.Compressed)},
		{"Body bytes", strconv.Itoa(len(req.Body))},
	})
	return nil
}
