package calc

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/condition"
	"github.com/hugr-lab/sqlcalc/table"
)

// newTable builds a dense table with a int64, b string and z int64 (all
// zero) columns.
func newTable(t *testing.T, n int) *table.Table {
	t.Helper()
	tbl := table.New()
	rows := tbl.AllocateRows(n)
	a, err := table.DeclareScalar[int64](tbl, "a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := table.DeclareScalar[string](tbl, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := table.DeclareScalar[int64](tbl, "z"); err != nil {
		t.Fatal(err)
	}
	for i, r := range rows {
		a.Set(r, int64(i+1))
		b.Set(r, string(rune('p'+i%3)))
	}
	return tbl
}

func compiled(t *testing.T, param InitParam, schema table.Schema) *Calc {
	t.Helper()
	c, err := New(param, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Compile(schema); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return c
}

func int64s(t *testing.T, tbl *table.Table, name string) []int64 {
	t.Helper()
	col, ok := table.ScalarOf[int64](tbl, name)
	if !ok {
		t.Fatalf("column %s is not int64", name)
	}
	var out []int64
	for _, r := range tbl.LiveRows() {
		out = append(out, col.Get(r))
	}
	return out
}

func TestDecodeInitParam(t *testing.T) {
	want := InitParam{
		OutputFields:     []string{"a", "x"},
		OutputFieldTypes: []string{"", "BIGINT"},
		Condition:        `{"op":">","params":["$a",1]}`,
		OutputExprs:      `{"x":"a * 2"}`,
		ReuseInputs:      true,
		MatchType:        "MATCH_SUB_DOC",
	}

	t.Run("json", func(t *testing.T) {
		p, err := DecodeInitParam([]byte(` {"output_fields":["a","x"],"output_field_types":["","BIGINT"],
			"condition":"{\"op\":\">\",\"params\":[\"$a\",1]}","output_exprs":"{\"x\":\"a * 2\"}",
			"reuse_inputs":true,"match_type":"MATCH_SUB_DOC"}`))
		if err != nil {
			t.Fatalf("DecodeInitParam failed: %v", err)
		}
		assertParam(t, p, want)
	})

	t.Run("msgpack", func(t *testing.T) {
		data, err := EncodeInitParam(want)
		if err != nil {
			t.Fatal(err)
		}
		p, err := DecodeInitParam(data)
		if err != nil {
			t.Fatalf("DecodeInitParam failed: %v", err)
		}
		assertParam(t, p, want)
	})

	t.Run("errors", func(t *testing.T) {
		for _, in := range []string{
			``,
			`{"output_fields":`,
			`{"output_fields":["a"],"output_field_types":["INT","INT"]}`,
			`{"output_fields":["a","a"]}`,
		} {
			if _, err := DecodeInitParam([]byte(in)); !errors.Is(err, calcerr.ErrParse) {
				t.Errorf("%q: expected parse error, got %v", in, err)
			}
		}
	})
}

func assertParam(t *testing.T, got, want InitParam) {
	t.Helper()
	if !slices.Equal(got.OutputFields, want.OutputFields) ||
		!slices.Equal(got.OutputFieldTypes, want.OutputFieldTypes) ||
		got.Condition != want.Condition || got.OutputExprs != want.OutputExprs ||
		got.ReuseInputs != want.ReuseInputs || got.MatchType != want.MatchType {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if !got.HasSubDocuments() {
		t.Error("expected sub-document match type")
	}
}

func TestCompileOutputs(t *testing.T) {
	tbl := newTable(t, 3)
	c := compiled(t, InitParam{
		OutputFields:     []string{"b", "twice", "label", "d", "a"},
		OutputFieldTypes: []string{"", "", "", "DOUBLE", "double"},
		OutputExprs: `{"twice":"a * 2",
			"label":{"op":"CASE","params":[{"op":">","params":["$a",1]},"big","small"]},
			"a":""}`,
	}, tbl.Schema())

	out := c.Output()
	if len(out) != 5 {
		t.Fatalf("expected 5 outputs, got %d", len(out))
	}
	if out[0].Source != "b" || out[0].Expr != nil {
		t.Errorf("b: expected pass-through, got %+v", out[0])
	}
	if out[1].Type != table.Single(table.Int64) || out[1].Expr == nil {
		t.Errorf("twice: expected int64 expression, got %+v", out[1])
	}
	if out[2].Type != table.Single(table.String) {
		t.Errorf("label: expected string, got %s", out[2].Type)
	}
	if v, ok := out[3].Expr.Constant(); !ok || v.Type() != table.Single(table.Double) {
		t.Errorf("d: expected double default constant, got %+v", out[3])
	}
	if out[4].Type != table.Single(table.Double) || out[4].Expr == nil {
		t.Errorf("a: expected cast to double, got %+v", out[4])
	}

	res, err := c.Process(tbl)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := int64s(t, res, "twice"); !slices.Equal(got, []int64{2, 4, 6}) {
		t.Errorf("twice: expected [2 4 6], got %v", got)
	}
	label := res.Column("label")
	var labels []string
	for _, r := range res.LiveRows() {
		labels = append(labels, label.Value(r).String())
	}
	if !slices.Equal(labels, []string{"small", "big", "big"}) {
		t.Errorf("label: expected [small big big], got %v", labels)
	}
	af, ok := table.ScalarOf[float64](res, "a")
	if !ok || af.Get(res.RowAt(2)) != 3 {
		t.Errorf("a: expected float64 column with 3 at row 2")
	}
}

func TestCompileErrors(t *testing.T) {
	schema := newTable(t, 1).Schema()
	tests := []struct {
		name  string
		param InitParam
		kind  calcerr.Kind
	}{
		{"bad condition json", InitParam{Condition: `{"op":`}, calcerr.KindParse},
		{"unknown column", InitParam{Condition: `{"op":"=","params":["$nope",1]}`}, calcerr.KindCompile},
		{"no expr no type", InitParam{OutputFields: []string{"ghost"}}, calcerr.KindCompile},
		{"bad expr", InitParam{OutputFields: []string{"x"}, OutputExprs: `{"x":"a +"}`}, calcerr.KindCompile},
		{"bad exprs json", InitParam{OutputFields: []string{"x"}, OutputExprs: `[1]`}, calcerr.KindParse},
		{"constant fold failure", InitParam{OutputFields: []string{"x"}, OutputExprs: `{"x":"1 / 0"}`}, calcerr.KindCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.param, Options{})
			if err != nil {
				t.Fatal(err)
			}
			err = c.Compile(schema)
			if err == nil {
				t.Fatal("expected error")
			}
			if calcerr.KindOf(err) != tt.kind {
				t.Errorf("expected kind %v, got %v (%v)", tt.kind, calcerr.KindOf(err), err)
			}
			if c.State() != StateFailed {
				t.Errorf("expected failed state, got %s", c.State())
			}
			if err := c.Filter(newTable(t, 1), 0, 1, false); !errors.Is(err, ErrState) {
				t.Errorf("expected state error after failure, got %v", err)
			}
		})
	}
}

func TestConstantFilter(t *testing.T) {
	tests := []struct {
		name       string
		condition  string
		start, end int
		want       []int64
	}{
		{"zero", `0`, 0, 6, nil},
		{"negative", `"-3"`, 0, 6, nil},
		{"folded false", `{"op":">","params":[1,2]}`, 0, 6, nil},
		{"positive", `1`, 0, 6, []int64{1, 2, 3, 4, 5, 6}},
		{"folded true", `{"op":"<","params":[1,2]}`, 0, 6, []int64{1, 2, 3, 4, 5, 6}},
		{"zero sub-range", `0`, 1, 3, []int64{1, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTable(t, 6)
			c := compiled(t, InitParam{Condition: tt.condition}, tbl.Schema())
			if err := c.Filter(tbl, tt.start, tt.end, false); err != nil {
				t.Fatalf("Filter failed: %v", err)
			}
			if tbl.RowCount() != len(tt.want) {
				t.Errorf("expected %d rows, got %d", len(tt.want), tbl.RowCount())
			}
			if got := int64s(t, tbl, "a"); !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if c.Stats().RowsEvaluated != 0 {
				t.Errorf("constant filter evaluated %d rows", c.Stats().RowsEvaluated)
			}
		})
	}
}

func TestFilterRows(t *testing.T) {
	tbl := newTable(t, 6)
	c := compiled(t, InitParam{Condition: `{"op":"OR","params":[
		{"op":">","params":["$a",4]},
		"b = 'p'"
	]}`}, tbl.Schema())

	if _, ok := c.Condition().(*condition.Or); !ok {
		t.Errorf("expected an OR condition, got %v", c.Condition())
	}
	if f := c.FilterExpr(); f == nil || f.Type() != table.Single(table.Int8) {
		t.Errorf("expected an int8 filter, got %v", f)
	}

	if err := c.Filter(tbl, 0, tbl.RowCount(), false); err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if got := int64s(t, tbl, "a"); !slices.Equal(got, []int64{1, 4, 5, 6}) {
		t.Errorf("expected [1 4 5 6], got %v", got)
	}
	if c.Stats().RowsEvaluated != 6 || c.Stats().RowsDeleted != 2 {
		t.Errorf("unexpected stats %+v", c.Stats())
	}
}

func TestLazyFilterRanges(t *testing.T) {
	tbl := newTable(t, 6)
	c := compiled(t, InitParam{
		Condition:    `{"op":"!=","params":["$a",2]}`,
		OutputFields: []string{"a"},
	}, tbl.Schema())

	if err := c.Filter(tbl, 0, 3, true); err != nil {
		t.Fatal(err)
	}
	if err := c.Filter(tbl, 3, 6, true); err != nil {
		t.Fatal(err)
	}
	if tbl.RowCount() != 6 || tbl.PendingDeletes() != 1 {
		t.Fatalf("expected 6 rows with 1 pending, got %d/%d", tbl.RowCount(), tbl.PendingDeletes())
	}

	out, err := c.Project(tbl)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if got := int64s(t, out, "a"); !slices.Equal(got, []int64{1, 3, 4, 5, 6}) {
		t.Errorf("expected [1 3 4 5 6], got %v", got)
	}
	if c.State() != StateDone {
		t.Errorf("expected done, got %s", c.State())
	}
}

func TestLazyFilterNoopProject(t *testing.T) {
	tbl := newTable(t, 6)
	c := compiled(t, InitParam{
		Condition:    `{"op":">","params":["$a",3]}`,
		OutputFields: []string{"a", "b", "z"},
	}, tbl.Schema())

	if err := c.Filter(tbl, 0, tbl.RowCount(), true); err != nil {
		t.Fatal(err)
	}
	if tbl.PendingDeletes() != 3 {
		t.Fatalf("expected 3 pending deletions, got %d", tbl.PendingDeletes())
	}

	out, err := c.Project(tbl)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if out != tbl {
		t.Fatal("expected the input table back")
	}
	if out.RowCount() != 3 || out.PendingDeletes() != 0 {
		t.Errorf("expected 3 compacted rows, got %d/%d", out.RowCount(), out.PendingDeletes())
	}
	if got := int64s(t, out, "a"); !slices.Equal(got, []int64{4, 5, 6}) {
		t.Errorf("expected [4 5 6], got %v", got)
	}
}

func TestFilterRangeError(t *testing.T) {
	tbl := newTable(t, 2)
	c := compiled(t, InitParam{}, tbl.Schema())
	if err := c.Filter(tbl, 1, 5, false); !errors.Is(err, calcerr.ErrShape) {
		t.Errorf("expected shape error, got %v", err)
	}
}

func TestProjectNoop(t *testing.T) {
	tbl := newTable(t, 4)
	before := tbl.Columns()[0]
	c := compiled(t, InitParam{OutputFields: []string{"a", "b", "z"}}, tbl.Schema())

	out, err := c.Process(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if out != tbl {
		t.Error("expected the input table back")
	}
	if out.RowCount() != 4 || out.Columns()[0] != before {
		t.Error("row count or column identity changed")
	}
	if c.Stats().Projected {
		t.Error("no-op projection must not build a table")
	}
}

func TestProjectSubDocuments(t *testing.T) {
	tbl := newTable(t, 4)
	c := compiled(t, InitParam{OutputFields: []string{"a", "b", "z"}, MatchType: "sub_doc"}, tbl.Schema())
	out, err := c.Process(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if out == tbl || !c.Stats().Projected {
		t.Error("sub-documents must disable the no-op path")
	}
}

func TestProjectReuseInputs(t *testing.T) {
	for _, reuse := range []bool{false, true} {
		tbl := newTable(t, 3)
		c := compiled(t, InitParam{OutputFields: []string{"b", "a"}, ReuseInputs: reuse}, tbl.Schema())
		out, err := c.Process(tbl)
		if err != nil {
			t.Fatal(err)
		}
		shared := out.Column("a") == tbl.Column("a")
		if shared != reuse {
			t.Errorf("reuse=%v: column shared=%v", reuse, shared)
		}
		if got := int64s(t, out, "a"); !slices.Equal(got, []int64{1, 2, 3}) {
			t.Errorf("reuse=%v: expected [1 2 3], got %v", reuse, got)
		}
	}
}

func TestProjectFailureKeepsInput(t *testing.T) {
	tbl := newTable(t, 3)
	c := compiled(t, InitParam{
		OutputFields: []string{"a", "q"},
		OutputExprs:  `{"q":"a / z"}`,
	}, tbl.Schema())

	out, err := c.Project(tbl)
	if !errors.Is(err, calcerr.ErrEval) {
		t.Fatalf("expected evaluation error, got %v", err)
	}
	if st, _ := status.FromError(err); st.Code() != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", st.Code())
	}
	if out != nil {
		t.Error("expected nil output on failure")
	}
	if tbl.RowCount() != 3 || tbl.ColumnCount() != 3 || tbl.Column("q") != nil {
		t.Error("input table was modified")
	}
	if got := int64s(t, tbl, "a"); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("input data changed: %v", got)
	}
}

func TestStateOrder(t *testing.T) {
	tbl := newTable(t, 1)
	c, err := New(InitParam{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Filter(tbl, 0, 1, false); !errors.Is(err, ErrState) {
		t.Errorf("filter before compile: expected ErrState, got %v", err)
	}
	if err := c.Compile(tbl.Schema()); err != nil {
		t.Fatal(err)
	}
	if err := c.Compile(tbl.Schema()); !errors.Is(err, ErrState) {
		t.Errorf("second compile: expected ErrState, got %v", err)
	}
	if _, err := c.Project(tbl); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Project(tbl); !errors.Is(err, ErrState) {
		t.Errorf("project after done: expected ErrState, got %v", err)
	}
}

func TestAliasedColumns(t *testing.T) {
	tbl := table.New()
	rows := tbl.AllocateRows(3)
	sum, err := table.DeclareScalar[int64](tbl, "_sum_id_")
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range rows {
		sum.Set(r, int64(i*10))
	}

	c := compiled(t, InitParam{
		Condition:    `{"op":">","params":["$sum(id)",5]}`,
		OutputFields: []string{"_sum_id_"},
	}, tbl.Schema())
	out, err := c.Process(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if got := int64s(t, out, "_sum_id_"); !slices.Equal(got, []int64{10, 20}) {
		t.Errorf("expected [10 20], got %v", got)
	}
}

func TestRunBatches(t *testing.T) {
	batches := []*table.Table{newTable(t, 3), newTable(t, 5), newTable(t, 1)}
	factory := NewFactory(InitParam{
		Condition:    `{"op":">=","params":["$a",2]}`,
		OutputFields: []string{"a"},
	}, Options{})

	out, err := RunBatches(context.Background(), factory, batches)
	if err != nil {
		t.Fatalf("RunBatches failed: %v", err)
	}
	want := []int{2, 4, 0}
	for i, tbl := range out {
		if tbl.RowCount() != want[i] {
			t.Errorf("batch %d: expected %d rows, got %d", i, want[i], tbl.RowCount())
		}
	}

	bad := NewFactory(InitParam{Condition: `{"op":"=","params":["$missing",1]}`}, Options{})
	if _, err := RunBatches(context.Background(), bad, batches); !errors.Is(err, calcerr.ErrCompile) {
		t.Errorf("expected compile error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunBatches(ctx, factory, batches); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProcessRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64},
		{Name: "b", Type: arrow.BinaryTypes.String},
	}, nil)
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3, 4}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"w", "x", "y", "z"}, nil)
	rec := builder.NewRecordBatch()
	defer rec.Release()

	c, err := New(InitParam{
		Condition:    `{"op":"IN","params":["$b","x","z"]}`,
		OutputFields: []string{"a", "a10"},
		OutputExprs:  `{"a10":"a * 10"}`,
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := ProcessRecord(c, rec, mem)
	if err != nil {
		t.Fatalf("ProcessRecord failed: %v", err)
	}
	defer out.Release()

	if out.NumRows() != 2 || out.NumCols() != 2 {
		t.Fatalf("expected 2x2 batch, got %dx%d", out.NumRows(), out.NumCols())
	}
	a10 := out.Column(1).(*array.Int64)
	if a10.Value(0) != 20 || a10.Value(1) != 40 {
		t.Errorf("expected [20 40], got [%d %d]", a10.Value(0), a10.Value(1))
	}
}
