package expr

import (
	"errors"
	"testing"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

func testTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New()
	id, _ := table.DeclareScalar[int64](tbl, "id")
	price, _ := table.DeclareScalar[float64](tbl, "price")
	name, _ := table.DeclareScalar[string](tbl, "name")
	tags, _ := table.DeclareMulti[string](tbl, "tags")
	sum, _ := table.DeclareScalar[int64](tbl, "_sum_id_")

	names := []string{"alpha", "Beta", "gamma"}
	for i, r := range tbl.AllocateRows(3) {
		id.Set(r, int64(i+1))
		price.Set(r, float64(i)*1.5)
		name.Set(r, names[i])
		tags.Set(r, []string{names[i], "common"})
		sum.Set(r, int64(10*(i+1)))
	}
	return tbl
}

func evalAll(t *testing.T, e Expression, tbl *table.Table) []table.Value {
	t.Helper()
	ev, err := e.Bind(tbl)
	if err != nil {
		t.Fatalf("Bind(%s) failed: %v", e, err)
	}
	out := make([]table.Value, tbl.RowCount())
	for pos := range out {
		v, err := ev(tbl.RowAt(pos))
		if err != nil {
			t.Fatalf("eval %s at row %d failed: %v", e, pos, err)
		}
		out[pos] = v
	}
	return out
}

func texts(vs []table.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func TestCompileString(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	tests := []struct {
		src  string
		typ  table.ColumnType
		want []string
	}{
		{"id * 2 + 1", table.Single(table.Int64), []string{"3", "5", "7"}},
		{"price > 1 AND id != 3", table.Single(table.Int8), []string{"0", "1", "0"}},
		{"NOT id = 1 OR name = 'alpha'", table.Single(table.Int8), []string{"1", "1", "1"}},
		{"id IN (1, 3)", table.Single(table.Int8), []string{"1", "0", "1"}},
		{"id NOT IN (1, 3)", table.Single(table.Int8), []string{"0", "1", "0"}},
		{"contain(tags, 'Beta|gamma')", table.Single(table.Int8), []string{"0", "1", "1"}},
		{"notcontain(name, 'alpha')", table.Single(table.Int8), []string{"0", "1", "1"}},
		{"lower(name)", table.Single(table.String), []string{"alpha", "beta", "gamma"}},
		{"length(tags)", table.Single(table.Int64), []string{"2", "2", "2"}},
		{"CAST(id AS VARCHAR)", table.Single(table.String), []string{"1", "2", "3"}},
		{"-id % 2", table.Single(table.Int64), []string{"-1", "0", "-1"}},
		{"tags = 'common'", table.Single(table.Int8), []string{"1", "1", "1"}},
		{"$id >= 2", table.Single(table.Int8), []string{"0", "1", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := engine.CompileString(tt.src)
			if err != nil {
				t.Fatalf("CompileString failed: %v", err)
			}
			if e.Type() != tt.typ {
				t.Errorf("expected type %s, got %s", tt.typ, e.Type())
			}
			got := texts(evalAll(t, e, tbl))
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	for _, src := range []string{
		"",
		"id +",
		"missing = 1",
		"name = 1",
		"name + 1",
		"unknown(id)",
		"QUERY(name, 'x')",
		"CAST(id AS GEOMETRY)",
		"CAST('abc' AS BIGINT)",
		"1 / 0",
		"id = 1)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := engine.CompileString(src)
			if err == nil {
				t.Fatalf("expected error for %q", src)
			}
			if !errors.Is(err, calcerr.ErrCompile) {
				t.Errorf("expected compile error, got %v", err)
			}
		})
	}
}

func TestConstantFolding(t *testing.T) {
	engine := NewEngine(nil, Options{})

	e, err := engine.CompileString("(1 + 2) * 3")
	if err != nil {
		t.Fatalf("CompileString failed: %v", err)
	}
	v, ok := IntConstant(e)
	if !ok || v != 9 {
		t.Errorf("expected folded 9, got %v (%v)", v, ok)
	}
	if e.String() != "((1 + 2) * 3)" {
		t.Errorf("folded expression should keep its text, got %q", e.String())
	}

	e, err = engine.CompileString("1 > 2")
	if err != nil {
		t.Fatalf("CompileString failed: %v", err)
	}
	if v, ok := IntConstant(e); !ok || v != 0 {
		t.Errorf("expected folded 0, got %v (%v)", v, ok)
	}

	e, err = engine.CompileString("'abc'")
	if err != nil {
		t.Fatalf("CompileString failed: %v", err)
	}
	if _, ok := IntConstant(e); ok {
		t.Error("string constant must not be an integer constant")
	}
}

func TestCompileJSON(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	tests := []struct {
		name string
		json string
		want []string
	}{
		{
			name: "comparison",
			json: `{"op":">","type":"OTHER","params":["$price",1]}`,
			want: []string{"0", "1", "1"},
		},
		{
			name: "in list",
			json: `{"op":"IN","params":["$name","alpha","gamma"]}`,
			want: []string{"1", "0", "1"},
		},
		{
			name: "cast",
			json: `{"op":"=","params":[{"op":"CAST","cast_type":"BIGINT","params":["$price"]},1]}`,
			want: []string{"0", "1", "0"},
		},
		{
			name: "ha_in with separator",
			json: `{"op":"ha_in","type":"UDF","params":["$id","1,3",","]}`,
			want: []string{"1", "0", "1"},
		},
		{
			name: "nested logic",
			json: `{"op":"AND","params":[{"op":">=","params":["$id",2]},{"op":"NOT","params":[{"op":"=","params":["$name","gamma"]}]}]}`,
			want: []string{"0", "1", "0"},
		},
		{
			name: "case",
			json: `{"op":"CASE","params":[{"op":"=","params":["$id",1]},"one",{"op":"=","params":["$id",2]},"two","many"]}`,
			want: []string{"one", "two", "many"},
		},
		{
			name: "aggregate alias",
			json: `{"op":"+","params":["$sum(id)",1]}`,
			want: []string{"11", "21", "31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := engine.CompileJSONBytes([]byte(tt.json))
			if err != nil {
				t.Fatalf("CompileJSONBytes failed: %v", err)
			}
			got := texts(evalAll(t, e, tbl))
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestCompileJSONErrors(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	for _, src := range []string{
		`{"params":[1]}`,
		`{"op":"=","params":["$id"]}`,
		`{"op":"ITEM","params":["$tags","host"]}`,
		`{"op":"CAST","params":["$id"]}`,
		`{"op":"CASE","params":[]}`,
		`[1,2]`,
		`null`,
	} {
		if _, err := engine.CompileJSONBytes([]byte(src)); !errors.Is(err, calcerr.ErrCompile) {
			t.Errorf("%s: expected compile error, got %v", src, err)
		}
	}

	if _, err := engine.CompileJSONBytes([]byte(`{"op":`)); !errors.Is(err, calcerr.ErrParse) {
		t.Errorf("expected parse error for malformed JSON, got %v", err)
	}
}

func TestCaseDefaultElse(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	cond, _ := engine.CompileString("id = 2")
	then, _ := engine.CompileString("price")
	e, err := NewCase([]When{{Cond: cond, Then: then}}, nil)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	got := texts(evalAll(t, e, tbl))
	if got[0] != "0" || got[1] != "1.5" || got[2] != "0" {
		t.Errorf("unexpected CASE result %v", got)
	}
}

func TestLogicalString(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	a, _ := engine.CompileString("id = 1")
	b, _ := engine.CompileString("price > 2")
	e, err := NewLogical(true, a, b)
	if err != nil {
		t.Fatalf("NewLogical failed: %v", err)
	}
	if e.String() != "((id = 1) AND (price > 2))" {
		t.Errorf("unexpected text %q", e.String())
	}
}

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"sum(id)":    "_sum_id_",
		"avg(attr2)": "_avg_attr2_",
		"count(*)":   "_count_",
		"id":         "_id_",
	}
	for in, want := range tests {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLowerToCEL(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	tests := []struct {
		src  string
		want string
	}{
		{"price > 1 AND id != 3", "((c0 > double(1)) && (c1 != 3))"},
		{"id IN (1, 3)", "((c0 == 1) || (c0 == 3))"},
		{"tags = 'common'", "c0.exists(e1, (e1 == \"common\"))"},
		{"notcontain(name, 'a|b')", "(!contain(c0, \"a|b\"))"},
		{"(id > 1) + 1", "(((c0 > 1) ? 1 : 0) + 1)"},
		{"CAST(id AS VARCHAR)", "cast_string(c0, \"VARCHAR\")"},
		{"id = 1 OR id", "((c0 == 1) || truthy(c0))"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := engine.CompileString(tt.src)
			if err != nil {
				t.Fatalf("CompileString failed: %v", err)
			}
			if got := e.lower(newLowering()); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEvalError(t *testing.T) {
	tbl := testTable(t)
	engine := NewEngine(tbl.Schema(), Options{})

	e, err := engine.CompileString("id / (id - 1)")
	if err != nil {
		t.Fatalf("CompileString failed: %v", err)
	}
	ev, err := e.Bind(tbl)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if v, err := ev(tbl.RowAt(1)); err != nil || v.String() != "2" {
		t.Fatalf("expected 2 at row 1, got %v (%v)", v, err)
	}
	_, err = ev(tbl.RowAt(0))
	if !errors.Is(err, calcerr.ErrEval) {
		t.Fatalf("expected evaluation error at row 0, got %v", err)
	}
}

func TestFoldBuiltins(t *testing.T) {
	engine := NewEngine(nil, Options{})

	tests := []struct {
		src  string
		want string
	}{
		{"upper('abc')", "ABC"},
		{"abs(-7) + 1", "8"},
		{"contain('b', 'a|b')", "1"},
		{"CAST('12' AS BIGINT) * 2", "24"},
		{"length('héllo')", "5"},
		{"2.5 * 2", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := engine.CompileString(tt.src)
			if err != nil {
				t.Fatalf("CompileString failed: %v", err)
			}
			v, ok := e.Constant()
			if !ok {
				t.Fatalf("expected %s to fold", tt.src)
			}
			if v.String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, v.String())
			}
		})
	}
}
