package condition

import (
	"maps"
	"slices"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

// KeyRow is one exact field = value assignment set.
type KeyRow map[string]string

// Fields returns the sorted field names of the row.
func (r KeyRow) Fields() []string {
	return slices.Sorted(maps.Keys(r))
}

// modifyKeyVisitor extracts point-mutation rows. Every OR branch must resolve
// to exactly one row and all branches of one OR must target the same
// fields.
type modifyKeyVisitor struct {
	ErrorState
	op   string
	rows []KeyRow
}

// UpdateKeyVisitor extracts the rows targeted by an UPDATE.
type UpdateKeyVisitor struct {
	modifyKeyVisitor
}

// DeleteKeyVisitor extracts the rows targeted by a DELETE.
type DeleteKeyVisitor struct {
	modifyKeyVisitor
}

// NewUpdateKeyVisitor returns an empty update visitor.
func NewUpdateKeyVisitor() *UpdateKeyVisitor {
	return &UpdateKeyVisitor{modifyKeyVisitor{op: "update"}}
}

// NewDeleteKeyVisitor returns an empty delete visitor.
func NewDeleteKeyVisitor() *DeleteKeyVisitor {
	return &DeleteKeyVisitor{modifyKeyVisitor{op: "delete"}}
}

func (v *modifyKeyVisitor) fail(format string, args ...any) {
	v.rows = nil
	v.SetError(calcerr.Shape(v.op, format, args...))
}

func (v *modifyKeyVisitor) VisitLeaf(l *Leaf) {
	v.rows = nil

	c, ok := AsCall(l.Value)
	if !ok {
		v.fail("unsupported condition %s", l.Raw)
		return
	}

	switch {
	case c.Is("=") || c.Is("=="):
		col, lit, ok := equality(c)
		if !ok {
			v.fail("`=` needs a column and a literal: %s", l.Raw)
			return
		}
		v.rows = []KeyRow{{col: lit}}

	case c.Is("IN"):
		col, ok := ColumnRef(UnwrapCast(firstParam(c)))
		values := inValues(c.Params)
		if !ok || len(values) == 0 {
			v.fail("`in` needs a column and values: %s", l.Raw)
			return
		}
		rows := make([]KeyRow, 0, len(values))
		for _, p := range values {
			lit, ok := LiteralText(UnwrapCast(p))
			if !ok {
				v.fail("`in` value is not a literal: %s", l.Raw)
				return
			}
			rows = append(rows, KeyRow{col: lit})
		}
		v.rows = rows

	default:
		v.fail("unsupported condition op %s", c.Op)
	}
}

func firstParam(c *Call) any {
	if len(c.Params) == 0 {
		return nil
	}
	return c.Params[0]
}

func (v *modifyKeyVisitor) VisitAnd(a *And) {
	merged := KeyRow{}
	for _, c := range a.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		if len(v.rows) != 1 {
			v.fail("`and` only support single key")
			return
		}
		for field, value := range v.rows[0] {
			if _, ok := merged[field]; ok {
				v.fail("`and` not support same key")
				return
			}
			merged[field] = value
		}
	}
	v.rows = []KeyRow{merged}
}

func (v *modifyKeyVisitor) VisitOr(o *Or) {
	var (
		rows   []KeyRow
		fields []string
	)
	for _, c := range o.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		for _, row := range v.rows {
			f := row.Fields()
			if fields == nil {
				fields = f
			} else if !slices.Equal(fields, f) {
				v.fail("`or` branches target different fields %v and %v", fields, f)
				return
			}
			rows = append(rows, row)
		}
	}
	v.rows = rows
}

func (v *modifyKeyVisitor) VisitNot(*Not) {
	v.fail("`not` is not supported")
}

// Rows returns the extracted rows after checking that every row targets
// exactly the expected fields.
func (v *modifyKeyVisitor) Rows(expected []string) ([]KeyRow, error) {
	if v.Failed() {
		return nil, v.Err()
	}
	want := slices.Sorted(slices.Values(expected))
	want = slices.Compact(want)
	for _, row := range v.rows {
		if got := row.Fields(); !slices.Equal(got, want) {
			return nil, calcerr.Shape(v.op, "row fields %v do not match expected %v", got, want)
		}
	}
	return v.rows, nil
}

// ExtractUpdateRows extracts UPDATE rows from n and validates them against
// fields.
func ExtractUpdateRows(n Node, fields []string) ([]KeyRow, error) {
	v := NewUpdateKeyVisitor()
	return extractRows(n, v, &v.modifyKeyVisitor, fields)
}

// ExtractDeleteRows extracts DELETE rows from n and validates them against
// fields.
func ExtractDeleteRows(n Node, fields []string) ([]KeyRow, error) {
	v := NewDeleteKeyVisitor()
	return extractRows(n, v, &v.modifyKeyVisitor, fields)
}

func extractRows(n Node, vis Visitor, core *modifyKeyVisitor, fields []string) ([]KeyRow, error) {
	if n == nil {
		return nil, calcerr.Shape(core.op, "condition is required")
	}
	Accept(n, vis)
	return core.Rows(fields)
}
