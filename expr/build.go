package expr

import (
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

var comparisonOps = map[string]string{
	"=":  "=",
	"==": "=",
	"!=": "!=",
	"<>": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

var arithmeticOps = map[string]bool{
	"+": true,
	"-": true,
	"*": true,
	"/": true,
	"%": true,
}

// IsComparison reports whether op is a binary comparison operator.
func IsComparison(op string) bool {
	_, ok := comparisonOps[op]
	return ok
}

// IsArithmetic reports whether op is a binary arithmetic operator.
func IsArithmetic(op string) bool {
	return arithmeticOps[op]
}

func allConstant(es ...Expression) bool {
	for _, e := range es {
		if _, ok := e.Constant(); !ok {
			return false
		}
	}
	return true
}

func finish(e Expression, children ...Expression) (Expression, error) {
	if allConstant(children...) {
		return fold(e)
	}
	return e, nil
}

// compatible reports whether values of a and b can be compared element-wise.
func compatible(a, b table.ColumnType) bool {
	return (a.Value == table.String) == (b.Value == table.String)
}

// NewLogical joins l and r with AND (and == true) or OR. The rendered
// string is "(l AND r)".
func NewLogical(and bool, l, r Expression) (Expression, error) {
	op := " OR "
	if and {
		op = " AND "
	}
	n := &logicalExpr{and: and, l: l, r: r, text: "(" + l.String() + op + r.String() + ")"}
	return finish(n, l, r)
}

// NewNot negates x.
func NewNot(x Expression) (Expression, error) {
	return finish(&notExpr{x: x}, x)
}

// NewBinary builds a comparison or arithmetic expression.
func NewBinary(op string, l, r Expression) (Expression, error) {
	if canon, ok := comparisonOps[op]; ok {
		if !compatible(l.Type(), r.Type()) {
			return nil, calcerr.Compile("compile", "cannot compare %s (%s) with %s (%s)", l, l.Type(), r, r.Type())
		}
		return finish(&binaryExpr{op: canon, l: l, r: r, typ: table.Single(table.Int8)}, l, r)
	}

	if !arithmeticOps[op] {
		return nil, calcerr.Compile("compile", "unknown operator %q", op)
	}
	lt, rt := l.Type(), r.Type()
	if lt.Multi || rt.Multi || !lt.Value.IsNumeric() || !rt.Value.IsNumeric() {
		return nil, calcerr.Compile("compile", "operator %s needs numeric operands, got %s and %s", op, lt, rt)
	}
	typ := arithmeticType(lt.Value, rt.Value)
	if op == "%" && typ.Value.IsFloat() {
		return nil, calcerr.Compile("compile", "operator %% needs integer operands, got %s and %s", lt, rt)
	}
	return finish(&binaryExpr{op: op, l: l, r: r, typ: typ}, l, r)
}

func arithmeticType(a, b table.ValueType) table.ColumnType {
	switch {
	case a.IsFloat() || b.IsFloat():
		return table.Single(table.Double)
	case a.IsUnsigned() && b.IsUnsigned():
		return table.Single(table.Uint64)
	default:
		return table.Single(table.Int64)
	}
}

// NewNeg negates a numeric expression.
func NewNeg(x Expression) (Expression, error) {
	t := x.Type()
	if t.Multi || !t.Value.IsNumeric() {
		return nil, calcerr.Compile("compile", "cannot negate %s (%s)", x, t)
	}
	typ := t
	if t.Value.IsUnsigned() {
		typ = table.Single(table.Int64)
	}
	return finish(&negExpr{x: x, typ: typ}, x)
}

// NewIn tests x for membership in list.
func NewIn(x Expression, list []Expression, negate bool) (Expression, error) {
	if len(list) == 0 {
		return nil, calcerr.Compile("compile", "IN needs at least one value")
	}
	for _, item := range list {
		if !compatible(x.Type(), item.Type()) {
			return nil, calcerr.Compile("compile", "cannot compare %s (%s) with %s (%s)", x, x.Type(), item, item.Type())
		}
	}
	children := append([]Expression{x}, list...)
	return finish(&inExpr{x: x, list: list, negate: negate}, children...)
}

// NewCast converts x to type to.
func NewCast(x Expression, to table.ColumnType) (Expression, error) {
	if !to.Valid() {
		return nil, calcerr.Compile("compile", "invalid CAST target %s", to)
	}
	if x.Type().Multi && !to.Multi {
		return nil, calcerr.Compile("compile", "cannot CAST %s (%s) to %s", x, x.Type(), to.SQLName())
	}
	if x.Type() == to {
		return x, nil
	}
	return finish(&castExpr{x: x, to: to}, x)
}

// NewCase builds a CASE expression. The result type is the type of the first
// THEN branch; every other branch must be compatible with it. A nil els
// defaults to the result type's default constant.
func NewCase(whens []When, els Expression) (Expression, error) {
	if len(whens) == 0 {
		return nil, calcerr.Compile("compile", "CASE needs at least one WHEN branch")
	}
	typ := whens[0].Then.Type()
	for _, w := range whens {
		if !compatible(typ, w.Then.Type()) {
			return nil, calcerr.Compile("compile", "CASE branch %s (%s) does not match %s", w.Then, w.Then.Type(), typ)
		}
	}
	if els == nil {
		els = DefaultConstant(typ)
	} else if !compatible(typ, els.Type()) {
		return nil, calcerr.Compile("compile", "CASE ELSE %s (%s) does not match %s", els, els.Type(), typ)
	}

	children := []Expression{els}
	for _, w := range whens {
		children = append(children, w.Cond, w.Then)
	}
	return finish(&caseExpr{whens: whens, els: els, typ: typ}, children...)
}

// NewCall builds a call to a builtin function.
func NewCall(name string, args []Expression) (Expression, error) {
	lname := strings.ToLower(name)
	fn, ok := functions[lname]
	if !ok {
		if unsupported[lname] {
			return nil, calcerr.Compile("compile", "%s cannot be evaluated against a batch", strings.ToUpper(name))
		}
		return nil, calcerr.Compile("compile", "unknown function %q", name)
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, calcerr.Compile("compile", "%s: unexpected argument count %d", fn.name, len(args))
	}
	typ, err := fn.check(args)
	if err != nil {
		return nil, calcerr.Wrap(calcerr.KindCompile, fn.name, err)
	}
	n := &callExpr{fn: fn, args: args, typ: typ}
	if len(args) == 0 {
		return n, nil
	}
	return finish(n, args...)
}
