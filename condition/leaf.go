package condition

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Call is a leaf operator node {"op": ..., "type": ..., "params": [...]}.
type Call struct {
	Op       string
	Type     string
	CastType string
	Params   []any
}

// AsCall interprets v as an operator node.
func AsCall(v any) (*Call, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	op, ok := m["op"].(string)
	if !ok || op == "" {
		return nil, false
	}
	c := &Call{Op: op}
	c.Type, _ = m["type"].(string)
	c.CastType, _ = m["cast_type"].(string)
	c.Params, _ = m["params"].([]any)
	return c, true
}

// Is reports whether the call's op equals op, ignoring case.
func (c *Call) Is(op string) bool {
	return strings.EqualFold(c.Op, op)
}

// ColumnRef returns the column name of a "$name" reference.
func ColumnRef(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.CutPrefix(s, "$")
}

// UnwrapCast strips any number of CAST wrappers around v.
func UnwrapCast(v any) any {
	for {
		c, ok := AsCall(v)
		if !ok || !c.Is("CAST") || len(c.Params) == 0 {
			return v
		}
		v = c.Params[0]
	}
}

// LiteralText returns the text of a literal: the original digits of a
// number or the content of a string that is not a column reference.
func LiteralText(v any) (string, bool) {
	switch x := v.(type) {
	case json.Number:
		return x.String(), true
	case string:
		if strings.HasPrefix(x, "$") {
			return "", false
		}
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	}
	return "", false
}

// inValues returns the value list of IN(x, v1, ..., vn). The values may also
// arrive as a single array parameter.
func inValues(params []any) []any {
	if len(params) == 2 {
		if list, ok := params[1].([]any); ok {
			return list
		}
	}
	if len(params) < 2 {
		return nil
	}
	return params[1:]
}

// equality splits a two-operand "=" into column and literal, in either order,
// looking through CAST on both sides.
func equality(c *Call) (column, literal string, ok bool) {
	if !(c.Is("=") || c.Is("==")) || len(c.Params) != 2 {
		return "", "", false
	}
	l, r := UnwrapCast(c.Params[0]), UnwrapCast(c.Params[1])
	if col, isCol := ColumnRef(l); isCol {
		if lit, isLit := LiteralText(r); isLit {
			return col, lit, true
		}
	}
	if col, isCol := ColumnRef(r); isCol {
		if lit, isLit := LiteralText(l); isLit {
			return col, lit, true
		}
	}
	return "", "", false
}
