package expr

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

var baseEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(celLibrary()...)
})

// compile checks src in the base environment extended with vars.
func compile(src string, vars ...cel.EnvOption) (*cel.Env, *cel.Ast, error) {
	env, err := baseEnv()
	if err != nil {
		return nil, nil, err
	}
	if len(vars) > 0 {
		if env, err = env.Extend(vars...); err != nil {
			return nil, nil, err
		}
	}
	ast, iss := env.Compile(src)
	if err := iss.Err(); err != nil {
		return nil, nil, err
	}
	return env, ast, nil
}

func celType(ct table.ColumnType) *cel.Type {
	var elem *cel.Type
	switch {
	case ct.Value.IsSigned():
		elem = cel.IntType
	case ct.Value.IsUnsigned():
		elem = cel.UintType
	case ct.Value.IsFloat():
		elem = cel.DoubleType
	default:
		elem = cel.StringType
	}
	if ct.Multi {
		return cel.ListType(elem)
	}
	return elem
}

// bindProgram compiles e into a CEL program whose variables read the
// referenced columns of t.
func bindProgram(e Expression, t *table.Table) (Evaluator, error) {
	lw := newLowering()
	src := e.lower(lw)

	cols := make([]table.Column, len(lw.columns))
	vars := make([]cel.EnvOption, len(lw.columns))
	for i, name := range lw.columns {
		col, err := bindColumn(t, name, lw.types[i])
		if err != nil {
			return nil, err
		}
		cols[i] = col
		vars[i] = cel.Variable(variableName(i), celType(lw.types[i]))
	}

	env, ast, err := compile(src, vars...)
	if err != nil {
		return nil, calcerr.Compile("bind", "%s: %v", e, err)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, calcerr.Compile("bind", "%s: %v", e, err)
	}

	typ := e.Type()
	return func(r table.Row) (table.Value, error) {
		out, _, err := prg.Eval(rowActivation{columns: cols, row: r})
		if err != nil {
			return table.Value{}, calcerr.Eval("evaluate", "%s: %v", e, err)
		}
		v, err := valueOf(out)
		if err == nil {
			v, err = v.Convert(typ)
		}
		if err != nil {
			return table.Value{}, calcerr.Eval("evaluate", "%s: %v", e, err)
		}
		return v, nil
	}, nil
}

// rowActivation resolves the variables c0..cn to cells of one row.
type rowActivation struct {
	columns []table.Column
	row     table.Row
}

func (a rowActivation) ResolveName(name string) (any, bool) {
	if len(name) < 2 || name[0] != 'c' {
		return nil, false
	}
	i, err := strconv.Atoi(name[1:])
	if err != nil || i < 0 || i >= len(a.columns) {
		return nil, false
	}
	return native(a.columns[i].Value(a.row)), true
}

func (rowActivation) Parent() cel.Activation { return nil }

// fold evaluates an expression whose inputs are all constant with the CEL
// constant-folding optimizer.
func fold(e Expression) (Expression, error) {
	env, ast, err := compile(e.lower(newLowering()))
	if err != nil {
		return nil, calcerr.Compile("fold", "%s: %v", e, err)
	}
	folder, err := cel.NewConstantFoldingOptimizer()
	if err != nil {
		return nil, calcerr.Compile("fold", "%s: %v", e, err)
	}
	opt, err := cel.NewStaticOptimizer(folder)
	if err != nil {
		return nil, calcerr.Compile("fold", "%s: %v", e, err)
	}
	folded, iss := opt.Optimize(env, ast)
	if err := iss.Err(); err != nil {
		return nil, calcerr.Compile("fold", "%s: %v", e, err)
	}

	var out ref.Val
	if root := folded.NativeRep().Expr(); root.Kind() == celast.LiteralKind {
		out = root.AsLiteral()
	} else {
		// Lists fold to list constructors rather than literals.
		prg, err := env.Program(folded)
		if err != nil {
			return nil, calcerr.Compile("fold", "%s: %v", e, err)
		}
		if out, _, err = prg.Eval(cel.NoVars()); err != nil {
			return nil, calcerr.Compile("fold", "%s: %v", e, err)
		}
	}

	v, err := valueOf(out)
	if err == nil {
		v, err = v.Convert(e.Type())
	}
	if err != nil {
		return nil, calcerr.Compile("fold", "%s: %v", e, err)
	}
	return &constExpr{v: v, text: e.String()}, nil
}

// native returns the Go value CEL adapts for v.
func native(v table.Value) any {
	t := v.Type()
	if t.Multi {
		out := make([]any, len(v.Elems()))
		for i, e := range v.Elems() {
			out[i] = native(e)
		}
		return out
	}
	switch {
	case t.Value.IsSigned():
		i, _ := v.Int64()
		return i
	case t.Value.IsUnsigned():
		u, _ := v.Uint64()
		return u
	case t.Value.IsFloat():
		f, _ := v.Float64()
		return f
	default:
		return v.String()
	}
}

func celValue(v table.Value) ref.Val {
	return types.DefaultTypeAdapter.NativeToValue(native(v))
}

// valueOf maps a CEL result back into the closed value domain. Booleans
// become int8 0 or 1.
func valueOf(v ref.Val) (table.Value, error) {
	switch x := v.(type) {
	case types.Bool:
		return table.BoolValue(bool(x)), nil
	case types.Int:
		return table.IntValue(table.Int64, int64(x)), nil
	case types.Uint:
		return table.UintValue(table.Uint64, uint64(x)), nil
	case types.Double:
		return table.FloatValue(table.Double, float64(x)), nil
	case types.String:
		return table.StringValue(string(x)), nil
	case traits.Lister:
		var elems []table.Value
		vt := table.String
		for it := x.Iterator(); it.HasNext() == types.True; {
			e, err := valueOf(it.Next())
			if err != nil {
				return table.Value{}, err
			}
			if len(elems) == 0 {
				vt = e.Type().Value
			}
			elems = append(elems, e)
		}
		return table.MultiValue(vt, elems), nil
	}
	return table.Value{}, fmt.Errorf("unsupported result type %s", v.Type().TypeName())
}
