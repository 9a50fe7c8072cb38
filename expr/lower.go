package expr

import (
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/sqlcalc/table"
)

// lowering collects the column variables of one CEL program while an
// expression tree is rendered to CEL source.
type lowering struct {
	columns []string
	types   []table.ColumnType
	index   map[string]int
	temps   int
}

func newLowering() *lowering {
	return &lowering{index: make(map[string]int)}
}

func variableName(i int) string { return "c" + strconv.Itoa(i) }

func (lw *lowering) column(name string, ct table.ColumnType) string {
	i, ok := lw.index[name]
	if !ok {
		i = len(lw.columns)
		lw.index[name] = i
		lw.columns = append(lw.columns, name)
		lw.types = append(lw.types, ct)
	}
	return variableName(i)
}

// temp returns a fresh comprehension variable.
func (lw *lowering) temp() string {
	lw.temps++
	return "e" + strconv.Itoa(lw.temps)
}

var celComparison = map[string]string{
	"=":  "==",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// isPredicate reports whether e lowers to a CEL bool rather than a value.
func isPredicate(e Expression) bool {
	switch x := e.(type) {
	case *binaryExpr:
		return IsComparison(x.op)
	case *logicalExpr, *notExpr, *inExpr:
		return true
	case *callExpr:
		return x.fn.predicate
	}
	return false
}

// value renders e as a CEL value; predicates become 1 or 0.
func value(lw *lowering, e Expression) string {
	src := e.lower(lw)
	if isPredicate(e) {
		return "(" + src + " ? 1 : 0)"
	}
	return src
}

// truth renders e as a CEL bool.
func truth(lw *lowering, e Expression) string {
	src := e.lower(lw)
	if isPredicate(e) {
		return src
	}
	return "truthy(" + src + ")"
}

func celKind(vt table.ValueType) string {
	switch {
	case vt.IsSigned():
		return "int"
	case vt.IsUnsigned():
		return "uint"
	case vt.IsFloat():
		return "double"
	default:
		return "string"
	}
}

func convert(src string, from, to table.ValueType) string {
	if k := celKind(to); k != celKind(from) {
		return k + "(" + src + ")"
	}
	return src
}

// coerce renders e as a CEL value of the kind backing to.
func coerce(lw *lowering, e Expression, to table.ValueType) string {
	src := value(lw, e)
	if t := e.Type(); !t.Multi {
		return convert(src, t.Value, to)
	}
	return src
}

// compare renders x op y. A multi-valued side matches when any element does.
func (lw *lowering) compare(op, x string, xt table.ColumnType, y string, yt table.ColumnType) string {
	if xt.Multi {
		v := lw.temp()
		return x + ".exists(" + v + ", " + lw.compare(op, v, table.Single(xt.Value), y, yt) + ")"
	}
	if yt.Multi {
		v := lw.temp()
		return y + ".exists(" + v + ", " + lw.compare(op, x, xt, v, table.Single(yt.Value)) + ")"
	}
	if xt.Value != table.String && yt.Value != table.String {
		common := arithmeticType(xt.Value, yt.Value).Value
		x, y = convert(x, xt.Value, common), convert(y, yt.Value, common)
	}
	return "(" + x + " " + celComparison[op] + " " + y + ")"
}

func literal(v table.Value) string {
	t := v.Type()
	if t.Multi {
		parts := make([]string, len(v.Elems()))
		for i, e := range v.Elems() {
			parts[i] = literal(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	switch {
	case t.Value.IsSigned():
		i, _ := v.Int64()
		switch {
		case i == math.MinInt64:
			return "(-9223372036854775807 - 1)"
		case i < 0:
			return "(" + strconv.FormatInt(i, 10) + ")"
		}
		return strconv.FormatInt(i, 10)
	case t.Value.IsUnsigned():
		u, _ := v.Uint64()
		return strconv.FormatUint(u, 10) + "u"
	case t.Value.IsFloat():
		f, _ := v.Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return "double(" + strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64)) + ")"
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		if f < 0 {
			return "(" + s + ")"
		}
		return s
	default:
		return strconv.Quote(v.String())
	}
}

func (c *constExpr) lower(*lowering) string { return literal(c.v) }

func (c *columnExpr) lower(lw *lowering) string { return lw.column(c.name, c.typ) }

func (b *binaryExpr) lower(lw *lowering) string {
	if IsComparison(b.op) {
		return lw.compare(b.op, value(lw, b.l), b.l.Type(), value(lw, b.r), b.r.Type())
	}
	return "(" + coerce(lw, b.l, b.typ.Value) + " " + b.op + " " + coerce(lw, b.r, b.typ.Value) + ")"
}

func (n *negExpr) lower(lw *lowering) string {
	return "(-" + coerce(lw, n.x, n.typ.Value) + ")"
}

func (l *logicalExpr) lower(lw *lowering) string {
	op := " || "
	if l.and {
		op = " && "
	}
	return "(" + truth(lw, l.l) + op + truth(lw, l.r) + ")"
}

func (n *notExpr) lower(lw *lowering) string {
	return "(!" + truth(lw, n.x) + ")"
}

func (in *inExpr) lower(lw *lowering) string {
	x, xt := value(lw, in.x), in.x.Type()
	terms := make([]string, len(in.list))
	for i, item := range in.list {
		terms[i] = lw.compare("=", x, xt, value(lw, item), item.Type())
	}
	src := "(" + strings.Join(terms, " || ") + ")"
	if in.negate {
		return "(!" + src + ")"
	}
	return src
}

func castFunction(to table.ColumnType) string {
	if to.Multi {
		return "cast_list"
	}
	return "cast_" + celKind(to.Value)
}

func (c *castExpr) lower(lw *lowering) string {
	return castFunction(c.to) + "(" + value(lw, c.x) + ", " + strconv.Quote(c.to.SQLName()) + ")"
}

func (c *caseExpr) lower(lw *lowering) string {
	branch := func(e Expression) string {
		if c.typ.Multi {
			return value(lw, e)
		}
		return coerce(lw, e, c.typ.Value)
	}
	src := branch(c.els)
	for i := len(c.whens) - 1; i >= 0; i-- {
		w := c.whens[i]
		src = "(" + truth(lw, w.Cond) + " ? " + branch(w.Then) + " : " + src + ")"
	}
	return src
}

func (c *callExpr) lower(lw *lowering) string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = value(lw, a)
	}
	call := c.fn.cel + "(" + strings.Join(args, ", ") + ")"
	if c.fn.negate {
		return "(!" + call + ")"
	}
	return call
}
