// Package expr compiles syntax strings and JSON expression trees into typed
// expressions that evaluate row by row against a columnar table.
//
// Type checking happens here; evaluation is lowered to CEL. Bind turns an
// expression into a CEL program with one variable per referenced column and
// runs it once per row.
//
// Expressions whose inputs are all literals are folded to a constant when
// they are built, using the CEL constant-folding optimizer. A folded
// expression reports its value through Constant and is never re-evaluated
// per row.
package expr

import (
	"strconv"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

// Evaluator computes an expression for one physical row.
type Evaluator func(r table.Row) (table.Value, error)

// Expression is a compiled, typed expression.
type Expression interface {
	// Type is the result type.
	Type() table.ColumnType
	// String renders the expression for diagnostics and cache keys.
	String() string
	// Constant returns the folded value when the expression does not depend
	// on any row.
	Constant() (table.Value, bool)
	// Bind resolves column references against t.
	Bind(t *table.Table) (Evaluator, error)

	lower(lw *lowering) string
}

type constExpr struct {
	v    table.Value
	text string
}

// Constant returns an expression that always yields v.
func Constant(v table.Value) Expression {
	return &constExpr{v: v, text: literalText(v)}
}

// DefaultConstant returns the default value of ct: zero for numerics and an
// empty string for strings.
func DefaultConstant(ct table.ColumnType) Expression {
	return Constant(table.ZeroValue(ct))
}

func (c *constExpr) Type() table.ColumnType        { return c.v.Type() }
func (c *constExpr) String() string                { return c.text }
func (c *constExpr) Constant() (table.Value, bool) { return c.v, true }

func (c *constExpr) Bind(*table.Table) (Evaluator, error) {
	v := c.v
	return func(table.Row) (table.Value, error) { return v, nil }, nil
}

func literalText(v table.Value) string {
	t := v.Type()
	if t.Multi {
		parts := make([]string, len(v.Elems()))
		for i, e := range v.Elems() {
			parts[i] = literalText(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if t.Value == table.String {
		return quoteString(v.String())
	}
	return v.String()
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type columnExpr struct {
	name string
	typ  table.ColumnType
}

func (c *columnExpr) Type() table.ColumnType      { return c.typ }
func (c *columnExpr) String() string              { return c.name }
func (*columnExpr) Constant() (table.Value, bool) { return table.Value{}, false }

// Bind reads the column directly; no program is needed for a bare reference.
func (c *columnExpr) Bind(t *table.Table) (Evaluator, error) {
	col, err := bindColumn(t, c.name, c.typ)
	if err != nil {
		return nil, err
	}
	return func(r table.Row) (table.Value, error) {
		return col.Value(r), nil
	}, nil
}

func bindColumn(t *table.Table, name string, ct table.ColumnType) (table.Column, error) {
	if t == nil {
		return nil, calcerr.Compile("bind", "column %q needs a table", name)
	}
	col := t.Column(name)
	if col == nil {
		return nil, calcerr.Compile("bind", "column %q not found", name)
	}
	if col.Type() != ct {
		return nil, calcerr.Compile("bind", "column %q is %s, compiled as %s", name, col.Type(), ct)
	}
	return col, nil
}

type binaryExpr struct {
	op   string
	l, r Expression
	typ  table.ColumnType
}

func (b *binaryExpr) Type() table.ColumnType      { return b.typ }
func (b *binaryExpr) String() string              { return "(" + b.l.String() + " " + b.op + " " + b.r.String() + ")" }
func (*binaryExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (b *binaryExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(b, t) }

type negExpr struct {
	x   Expression
	typ table.ColumnType
}

func (n *negExpr) Type() table.ColumnType      { return n.typ }
func (n *negExpr) String() string              { return "-" + n.x.String() }
func (*negExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (n *negExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(n, t) }

type logicalExpr struct {
	and  bool
	l, r Expression
	text string
}

func (l *logicalExpr) Type() table.ColumnType      { return table.Single(table.Int8) }
func (l *logicalExpr) String() string              { return l.text }
func (*logicalExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (l *logicalExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(l, t) }

type notExpr struct {
	x Expression
}

func (n *notExpr) Type() table.ColumnType      { return table.Single(table.Int8) }
func (n *notExpr) String() string              { return "NOT " + n.x.String() }
func (*notExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (n *notExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(n, t) }

type inExpr struct {
	x      Expression
	list   []Expression
	negate bool
}

func (in *inExpr) Type() table.ColumnType { return table.Single(table.Int8) }

func (in *inExpr) String() string {
	items := make([]string, len(in.list))
	for i, e := range in.list {
		items[i] = e.String()
	}
	op := " IN "
	if in.negate {
		op = " NOT IN "
	}
	return "(" + in.x.String() + op + "(" + strings.Join(items, ", ") + "))"
}

func (*inExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (in *inExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(in, t) }

type castExpr struct {
	x  Expression
	to table.ColumnType
}

func (c *castExpr) Type() table.ColumnType      { return c.to }
func (c *castExpr) String() string              { return "CAST(" + c.x.String() + " AS " + c.to.SQLName() + ")" }
func (*castExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (c *castExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(c, t) }

// When is one branch of a CASE expression.
type When struct {
	Cond Expression
	Then Expression
}

type caseExpr struct {
	whens []When
	els   Expression
	typ   table.ColumnType
}

func (c *caseExpr) Type() table.ColumnType { return c.typ }

func (c *caseExpr) String() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, w := range c.whens {
		sb.WriteString(" WHEN ")
		sb.WriteString(w.Cond.String())
		sb.WriteString(" THEN ")
		sb.WriteString(w.Then.String())
	}
	sb.WriteString(" ELSE ")
	sb.WriteString(c.els.String())
	sb.WriteString(" END")
	return sb.String()
}

func (*caseExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (c *caseExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(c, t) }

type callExpr struct {
	fn   *function
	args []Expression
	typ  table.ColumnType
}

func (c *callExpr) Type() table.ColumnType { return c.typ }

func (c *callExpr) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	return c.fn.name + "(" + strings.Join(args, ", ") + ")"
}

func (*callExpr) Constant() (table.Value, bool) { return table.Value{}, false }
func (c *callExpr) Bind(t *table.Table) (Evaluator, error) { return bindProgram(c, t) }

// IntConstant reports the folded value of e as int64 when e is a constant of
// an integer type.
func IntConstant(e Expression) (int64, bool) {
	v, ok := e.Constant()
	if !ok || v.Type().Multi || !v.Type().Value.IsInteger() {
		return 0, false
	}
	i, err := v.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

func numberLiteral(text string) (table.Value, bool) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return table.IntValue(table.Int64, i), true
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return table.UintValue(table.Uint64, u), true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return table.FloatValue(table.Double, f), true
	}
	return table.Value{}, false
}
