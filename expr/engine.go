package expr

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

// Options configures an Engine.
type Options struct {
	// Aliases maps canonical tokens to display names (see CanonicalName).
	// A column reference that is not in the schema is looked up through it
	// in both directions.
	Aliases map[string]string
}

// Engine compiles expressions against a fixed input schema.
type Engine struct {
	types   map[string]table.ColumnType
	aliases map[string]string
	reverse map[string]string
}

// NewEngine returns an engine resolving column references against schema.
func NewEngine(schema table.Schema, opts Options) *Engine {
	e := &Engine{
		types:   make(map[string]table.ColumnType, len(schema)),
		aliases: make(map[string]string, len(opts.Aliases)),
		reverse: make(map[string]string, len(opts.Aliases)),
	}
	for _, f := range schema {
		e.types[f.Name] = f.Type
	}
	for canonical, display := range opts.Aliases {
		e.aliases[canonical] = display
		e.reverse[display] = canonical
	}
	return e
}

// Resolve maps a column reference to a schema column.
func (e *Engine) Resolve(name string) (string, table.ColumnType, bool) {
	candidates := []string{name, e.aliases[name], e.reverse[name], CanonicalName(name)}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, ok := e.types[c]; ok {
			return c, t, true
		}
	}
	return "", table.ColumnType{}, false
}

// Column returns a reference to the named column.
func (e *Engine) Column(name string) (Expression, error) {
	resolved, t, ok := e.Resolve(name)
	if !ok {
		return nil, calcerr.Compile("compile", "column %q not found", name)
	}
	return &columnExpr{name: resolved, typ: t}, nil
}

// CompileJSONBytes decodes a JSON expression tree and compiles it.
func (e *Engine) CompileJSONBytes(data []byte) (Expression, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, calcerr.Wrap(calcerr.KindParse, "expression", err)
	}
	return e.CompileJSON(v)
}

// CompileJSON compiles a decoded JSON expression tree. Strings starting with
// '$' are column references; other strings, numbers and booleans are
// literals; objects are {"op": ..., "params": [...]} operator nodes.
func (e *Engine) CompileJSON(v any) (Expression, error) {
	switch x := v.(type) {
	case nil:
		return nil, calcerr.Compile("compile", "null literal is not supported")
	case string:
		if name, ok := strings.CutPrefix(x, "$"); ok {
			return e.Column(name)
		}
		return Constant(table.StringValue(x)), nil
	case json.Number:
		lit, ok := numberLiteral(x.String())
		if !ok {
			return nil, calcerr.Compile("compile", "invalid number %q", x)
		}
		return Constant(lit), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Constant(table.IntValue(table.Int64, int64(x))), nil
		}
		return Constant(table.FloatValue(table.Double, x)), nil
	case int:
		return Constant(table.IntValue(table.Int64, int64(x))), nil
	case int64:
		return Constant(table.IntValue(table.Int64, x)), nil
	case bool:
		return Constant(table.BoolValue(x)), nil
	case map[string]any:
		return e.compileOp(x)
	default:
		return nil, calcerr.Compile("compile", "unexpected %T in expression", v)
	}
}

func (e *Engine) compileOp(m map[string]any) (Expression, error) {
	op, _ := m["op"].(string)
	if op == "" {
		return nil, calcerr.Compile("compile", "expression object has no op")
	}
	params, _ := m["params"].([]any)

	switch uop := strings.ToUpper(op); uop {
	case "AND", "OR":
		if len(params) == 0 {
			return nil, calcerr.Compile("compile", "%s needs at least one operand", uop)
		}
		acc, err := e.CompileJSON(params[0])
		if err != nil {
			return nil, err
		}
		for _, p := range params[1:] {
			next, err := e.CompileJSON(p)
			if err != nil {
				return nil, err
			}
			if acc, err = NewLogical(uop == "AND", acc, next); err != nil {
				return nil, err
			}
		}
		return acc, nil

	case "NOT":
		if len(params) != 1 {
			return nil, calcerr.Compile("compile", "NOT needs exactly one operand")
		}
		x, err := e.CompileJSON(params[0])
		if err != nil {
			return nil, err
		}
		return NewNot(x)

	case "IN", "NOT IN":
		return e.compileIn(params, uop == "NOT IN")

	case "CAST":
		return e.compileCast(m, params)

	case "CASE":
		return e.CompileCase(params)
	}

	if IsComparison(op) || IsArithmetic(op) {
		if len(params) != 2 {
			return nil, calcerr.Compile("compile", "operator %s needs two operands, got %d", op, len(params))
		}
		args, err := e.compileAll(params)
		if err != nil {
			return nil, err
		}
		return NewBinary(op, args[0], args[1])
	}

	args, err := e.compileAll(params)
	if err != nil {
		return nil, err
	}
	return NewCall(op, args)
}

func (e *Engine) compileAll(params []any) ([]Expression, error) {
	out := make([]Expression, len(params))
	for i, p := range params {
		x, err := e.CompileJSON(p)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (e *Engine) compileIn(params []any, negate bool) (Expression, error) {
	if len(params) == 2 {
		if list, ok := params[1].([]any); ok {
			params = append([]any{params[0]}, list...)
		}
	}
	if len(params) < 2 {
		return nil, calcerr.Compile("compile", "IN needs a column and at least one value")
	}
	args, err := e.compileAll(params)
	if err != nil {
		return nil, err
	}
	return NewIn(args[0], args[1:], negate)
}

func (e *Engine) compileCast(m map[string]any, params []any) (Expression, error) {
	typeName, _ := m["cast_type"].(string)
	if typeName == "" && len(params) == 2 {
		typeName, _ = params[1].(string)
	}
	if len(params) == 0 || typeName == "" {
		return nil, calcerr.Compile("compile", "CAST needs an operand and a target type")
	}
	to, err := table.ParseType(typeName)
	if err != nil {
		return nil, calcerr.Wrap(calcerr.KindCompile, "cast", err)
	}
	x, err := e.CompileJSON(params[0])
	if err != nil {
		return nil, err
	}
	return NewCast(x, to)
}

// CompileCase builds a CASE expression from its JSON parameter list
// [cond1, then1, cond2, then2, ..., else]. The trailing else is optional.
func (e *Engine) CompileCase(params []any) (Expression, error) {
	if len(params) < 2 {
		return nil, calcerr.Compile("compile", "CASE needs at least one WHEN/THEN pair")
	}
	var els Expression
	if len(params)%2 == 1 {
		x, err := e.CompileJSON(params[len(params)-1])
		if err != nil {
			return nil, err
		}
		els = x
		params = params[:len(params)-1]
	}

	whens := make([]When, 0, len(params)/2)
	for i := 0; i < len(params); i += 2 {
		cond, err := e.CompileJSON(params[i])
		if err != nil {
			return nil, err
		}
		then, err := e.CompileJSON(params[i+1])
		if err != nil {
			return nil, err
		}
		whens = append(whens, When{Cond: cond, Then: then})
	}
	return NewCase(whens, els)
}

// IsCase reports whether v is a CASE-shaped JSON object and returns its
// parameters.
func IsCase(v any) ([]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	op, _ := m["op"].(string)
	if !strings.EqualFold(op, "CASE") {
		return nil, false
	}
	params, _ := m["params"].([]any)
	return params, true
}

// CanonicalName maps a function-call-shaped token such as "sum(id)" to a
// plain identifier ("_sum_id_") the syntax parser accepts.
func CanonicalName(token string) string {
	var sb strings.Builder
	sb.WriteByte('_')
	last := byte('_')
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !isWordByte(c) {
			c = '_'
		}
		if c == '_' && last == '_' {
			continue
		}
		sb.WriteByte(c)
		last = c
	}
	if last != '_' {
		sb.WriteByte('_')
	}
	return sb.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
