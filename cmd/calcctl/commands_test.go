package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConditionCommands(t *testing.T) {
	const cond = `{"op":"AND","params":[{"op":"=","params":["$id","7"]},{"op":">","params":["$sum(price)",3]}]}`

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "parse",
			args: []string{"parse", cond},
			want: []string{"AND"},
		},
		{
			name: "alias",
			args: []string{"alias", cond},
			want: []string{"TOKEN", "_sum_price_", "sum(price)"},
		},
		{
			name: "keys",
			args: []string{"keys", "--field", "id", cond},
			want: []string{"Has query:", "true", "7"},
		},
		{
			name: "sql fragment",
			args: []string{"sql", cond},
			want: []string{"SQL:", "`id`", "?"},
		},
		{
			name: "sql request",
			args: []string{"sql", "--db", "db", "--table", "docs", "--limit", "5", cond},
			want: []string{"FROM `db`.`docs`", "LIMIT 5", "format:json"},
		},
		{
			name: "update keys",
			args: []string{"update-keys", "--fields", "id", `{"op":"=","params":["$id","7"]}`},
			want: []string{"id", "7"},
		},
		{
			name: "join",
			args: []string{"join", "--left", "a", "--right", "b", `{"op":"=","params":["$b","$a"]}`},
			want: []string{"LEFT", "a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestKeysJSON(t *testing.T) {
	out, err := run(t, "keys", "-o", "json", "--field", "id",
		`{"op":"in","params":["$id","a","b"]}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got struct {
		HasQuery bool     `json:"has_query"`
		Keys     []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !got.HasQuery || strings.Join(got.Keys, ",") != "a,b" {
		t.Errorf("got %+v", got)
	}
}

func TestJoinJSON(t *testing.T) {
	out, err := run(t, "join", "-o", "json", "--left", "l.id,l.k", "--right", "r.id,r.k",
		`{"op":"AND","params":[{"op":"=","params":["$r.k","$l.k"]},{"op":"=","params":["$l.id","$r.id"]}]}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got struct {
		Left  []string `json:"left_keys"`
		Right []string `json:"right_keys"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if strings.Join(got.Left, ",") != "l.k,l.id" || strings.Join(got.Right, ",") != "r.k,r.id" {
		t.Errorf("got %+v", got)
	}
}

func TestCalcCommand(t *testing.T) {
	dir := t.TempDir()
	param := filepath.Join(dir, "param.json")
	doc := `{
		"output_fields": ["id", "twice"],
		"output_field_types": ["BIGINT", "BIGINT"],
		"condition": "{\"op\":\">\",\"params\":[\"$id\",1]}",
		"output_exprs": "{\"twice\":\"id * 2\"}"
	}`
	if err := os.WriteFile(param, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "calc", "-o", "json", "--param", param, "--schema", "id:BIGINT,tags:ARRAY(VARCHAR)",
		`[[1,["x"]],[2,["y","z"]],[3,[]]]`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if strings.Join(got.Columns, ",") != "id,twice" {
		t.Errorf("columns = %v", got.Columns)
	}
	if len(got.Rows) != 2 || got.Rows[0][1] != "4" || got.Rows[1][1] != "6" {
		t.Errorf("rows = %v", got.Rows)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad json", []string{"parse", "{"}},
		{"missing field flag", []string{"keys", `{"op":"=","params":["$id",1]}`}},
		{"no join pairs", []string{"join", "--left", "a", "--right", "b", `{"op":">","params":["$a",1]}`}},
		{"bad schema", []string{"calc", "--param", "x", "--schema", "id", "[]"}},
		{"bad log level", []string{"sql", "--log-level", "loud", "--db", "d", "--table", "t", `{"op":"=","params":["$a",1]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseSchema(t *testing.T) {
	s, err := parseSchema("a:BIGINT, m:MULTISET(DOUBLE),s:VARCHAR(10)")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.Names(), ","); got != "a,m,s" {
		t.Errorf("names = %s", got)
	}
	if !s[1].Type.Multi {
		t.Errorf("m type = %s", s[1].Type)
	}
}
