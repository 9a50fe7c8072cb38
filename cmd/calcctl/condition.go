package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/sqlcalc/condition"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <condition>",
		Short: "Parse a condition and print its AND/OR/NOT tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			tree := "<none>"
			if n != nil {
				tree = n.String()
			}
			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(map[string]string{"tree": tree})
			}
			_, err = fmt.Fprintln(p.w, tree)
			return err
		},
	}
}

func newAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <condition>",
		Short: "List function-shaped column aliases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			aliases, err := condition.ExtractAliases(n)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(aliases)
			}
			var rows [][]string
			for _, token := range slices.Sorted(maps.Keys(aliases)) {
				rows = append(rows, []string{token, aliases[token]})
			}
			p.table([]string{"TOKEN", "COLUMN"}, rows)
			return nil
		},
	}
}

func newKeysCmd() *cobra.Command {
	var field, index string
	cmd := &cobra.Command{
		Use:   "keys <condition>",
		Short: "Extract point-lookup keys for a key field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			res, err := condition.ExtractKeys(n, field, index)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(map[string]any{
					"has_query":   res.HasQuery,
					"need_filter": res.NeedFilter,
					"keys":        res.Keys,
				})
			}
			p.kv([][2]string{
				{"Has query", strconv.FormatBool(res.HasQuery)},
				{"Need filter", strconv.FormatBool(res.NeedFilter)},
				{"Keys", strings.Join(res.Keys, ", ")},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "key field name")
	cmd.Flags().StringVar(&index, "index", "", "secondary index field name")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

func newUpdateKeysCmd() *cobra.Command {
	return newRowsCmd("update-keys", "Extract exact rows for an UPDATE", condition.ExtractUpdateRows)
}

func newDeleteKeysCmd() *cobra.Command {
	return newRowsCmd("delete-keys", "Extract exact rows for a DELETE", condition.ExtractDeleteRows)
}

func newRowsCmd(use, short string, extract func(condition.Node, []string) ([]condition.KeyRow, error)) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   use + " <condition>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			rows, err := extract(n, fields)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(rows)
			}
			header := slices.Sorted(slices.Values(fields))
			header = slices.Compact(header)
			out := make([][]string, 0, len(rows))
			for _, row := range rows {
				line := make([]string, len(header))
				for i, f := range header {
					line[i] = row[f]
				}
				out = append(out, line)
			}
			p.table(header, out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "fields every row must assign")
	_ = cmd.MarkFlagRequired("fields")
	return cmd
}

func newJoinCmd() *cobra.Command {
	var left, right []string
	cmd := &cobra.Command{
		Use:   "join <condition>",
		Short: "Extract equi-join column pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := conditionArg(cmd, args)
			if err != nil {
				return err
			}
			keys, err := condition.ExtractJoinKeys(n, left, right)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)
			if p.isJSON() {
				return p.json(map[string][]string{
					"left_keys":  keys.LeftKeys(),
					"right_keys": keys.RightKeys(),
				})
			}
			rows := make([][]string, len(keys.Pairs()))
			for i, jp := range keys.Pairs() {
				rows[i] = []string{jp.Left, jp.Right}
			}
			p.table([]string{"LEFT", "RIGHT"}, rows)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&left, "left", nil, "left input columns")
	cmd.Flags().StringSliceVar(&right, "right", nil, "right input columns")
	_ = cmd.MarkFlagRequired("left")
	_ = cmd.MarkFlagRequired("right")
	return cmd
}
