package expr

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/hugr-lab/sqlcalc/table"
)

// DefaultSeparator splits the value list of contain and ha_in.
const DefaultSeparator = "|"

// function is a builtin visible to expressions. cel names the CEL function it
// lowers to; negate wraps the call in a logical NOT.
type function struct {
	name      string
	cel       string
	minArgs   int
	maxArgs   int // -1 for variadic
	predicate bool
	negate    bool
	check     func(args []Expression) (table.ColumnType, error)
}

var functions = map[string]*function{
	"contain":    {name: "contain", cel: "contain", minArgs: 2, maxArgs: 3, predicate: true, check: checkContain},
	"ha_in":      {name: "ha_in", cel: "contain", minArgs: 2, maxArgs: 3, predicate: true, check: checkContain},
	"notcontain": {name: "notcontain", cel: "contain", minArgs: 2, maxArgs: 3, predicate: true, negate: true, check: checkContain},
	"lower":      {name: "lower", cel: "lower", minArgs: 1, maxArgs: 1, check: checkString},
	"upper":      {name: "upper", cel: "upper", minArgs: 1, maxArgs: 1, check: checkString},
	"abs":        {name: "abs", cel: "abs", minArgs: 1, maxArgs: 1, check: checkAbs},
	"length":     {name: "length", cel: "length", minArgs: 1, maxArgs: 1, check: checkLength},
}

// unsupported names functions that are resolved by index readers and cannot
// run over an in-memory batch.
var unsupported = map[string]bool{
	"query":       true,
	"matchindex":  true,
	"literal_or":  true,
	"sp_query":    true,
	"item":        true,
	"kv_ha_in":    true,
	"range":       true,
	"sub_query":   true,
	"ha_in_query": true,
}

// celLibrary declares the builtins and the helpers lowering relies on.
func celLibrary() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("truthy",
			cel.Overload("truthy_dyn", []*cel.Type{cel.DynType}, cel.BoolType,
				cel.UnaryBinding(unary(func(v table.Value) (table.Value, error) {
					return table.BoolValue(v.Truthy()), nil
				})))),
		cel.Function("contain",
			cel.Overload("contain_dyn_string", []*cel.Type{cel.DynType, cel.StringType}, cel.BoolType,
				cel.FunctionBinding(variadic(contain))),
			cel.Overload("contain_dyn_string_string", []*cel.Type{cel.DynType, cel.StringType, cel.StringType}, cel.BoolType,
				cel.FunctionBinding(variadic(contain)))),
		cel.Function("lower",
			cel.Overload("lower_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(unary(mapString(strings.ToLower))))),
		cel.Function("upper",
			cel.Overload("upper_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(unary(mapString(strings.ToUpper))))),
		cel.Function("abs",
			cel.Overload("abs_dyn", []*cel.Type{cel.DynType}, cel.DynType,
				cel.UnaryBinding(unary(abs)))),
		cel.Function("length",
			cel.Overload("length_dyn", []*cel.Type{cel.DynType}, cel.IntType,
				cel.UnaryBinding(unary(length)))),
		castFunc("cast_int", cel.IntType),
		castFunc("cast_uint", cel.UintType),
		castFunc("cast_double", cel.DoubleType),
		castFunc("cast_string", cel.StringType),
		castFunc("cast_list", cel.ListType(cel.DynType)),
	}
}

// castFunc declares name(value, sqlType) converting through the table value
// rules.
func castFunc(name string, result *cel.Type) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_dyn_string", []*cel.Type{cel.DynType, cel.StringType}, result,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				v, err := valueOf(lhs)
				if err != nil {
					return types.WrapErr(err)
				}
				typeName, ok := rhs.(types.String)
				if !ok {
					return types.NewErr("cast type must be a string")
				}
				to, err := table.ParseType(string(typeName))
				if err != nil {
					return types.WrapErr(err)
				}
				out, err := v.Convert(to)
				if err != nil {
					return types.WrapErr(err)
				}
				return celValue(out)
			})))
}

func unary(fn func(table.Value) (table.Value, error)) func(ref.Val) ref.Val {
	return func(arg ref.Val) ref.Val {
		v, err := valueOf(arg)
		if err != nil {
			return types.WrapErr(err)
		}
		out, err := fn(v)
		if err != nil {
			return types.WrapErr(err)
		}
		return celValue(out)
	}
}

func variadic(fn func([]table.Value) (table.Value, error)) func(...ref.Val) ref.Val {
	return func(args ...ref.Val) ref.Val {
		vals := make([]table.Value, len(args))
		for i, a := range args {
			v, err := valueOf(a)
			if err != nil {
				return types.WrapErr(err)
			}
			vals[i] = v
		}
		out, err := fn(vals)
		if err != nil {
			return types.WrapErr(err)
		}
		return celValue(out)
	}
}

// SplitValues splits a contain/ha_in value list. Empty items are dropped.
func SplitValues(list, sep string) []string {
	if sep == "" {
		sep = DefaultSeparator
	}
	parts := strings.Split(list, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func checkContain(args []Expression) (table.ColumnType, error) {
	if t := args[1].Type(); t.Multi || t.Value != table.String {
		return table.ColumnType{}, fmt.Errorf("value list must be a string, got %s", t)
	}
	if len(args) == 3 {
		if _, ok := args[2].Constant(); !ok || args[2].Type() != table.Single(table.String) {
			return table.ColumnType{}, fmt.Errorf("separator must be a string constant")
		}
	}
	return table.Single(table.Int8), nil
}

// contain matches when the value, or any element of a multi value, is in the
// separated list.
func contain(args []table.Value) (table.Value, error) {
	sep := DefaultSeparator
	if len(args) == 3 {
		sep = args[2].String()
	}
	want := make(map[string]struct{})
	for _, v := range SplitValues(args[1].String(), sep) {
		want[v] = struct{}{}
	}

	elems := []table.Value{args[0]}
	if args[0].Type().Multi {
		elems = args[0].Elems()
	}
	for _, e := range elems {
		if _, ok := want[e.String()]; ok {
			return table.BoolValue(true), nil
		}
	}
	return table.BoolValue(false), nil
}

func checkString(args []Expression) (table.ColumnType, error) {
	if t := args[0].Type(); t.Multi || t.Value != table.String {
		return table.ColumnType{}, fmt.Errorf("argument must be a string, got %s", t)
	}
	return table.Single(table.String), nil
}

func mapString(f func(string) string) func(table.Value) (table.Value, error) {
	return func(v table.Value) (table.Value, error) {
		return table.StringValue(f(v.String())), nil
	}
}

func checkAbs(args []Expression) (table.ColumnType, error) {
	t := args[0].Type()
	if t.Multi || !t.Value.IsNumeric() {
		return table.ColumnType{}, fmt.Errorf("argument must be numeric, got %s", t)
	}
	return t, nil
}

func abs(v table.Value) (table.Value, error) {
	vt := v.Type().Value
	switch {
	case vt.IsSigned():
		i, _ := v.Int64()
		if i < 0 {
			i = -i
		}
		return table.IntValue(vt, i), nil
	case vt.IsFloat():
		f, _ := v.Float64()
		if f < 0 {
			f = -f
		}
		return table.FloatValue(vt, f), nil
	case vt.IsUnsigned():
		return v, nil
	}
	return table.Value{}, fmt.Errorf("abs of %s", v.Type())
}

func checkLength(args []Expression) (table.ColumnType, error) {
	t := args[0].Type()
	if !t.Multi && t.Value != table.String {
		return table.ColumnType{}, fmt.Errorf("argument must be a string or multi-value, got %s", t)
	}
	return table.Single(table.Int64), nil
}

func length(v table.Value) (table.Value, error) {
	if v.Type().Multi {
		return table.IntValue(table.Int64, int64(len(v.Elems()))), nil
	}
	return table.IntValue(table.Int64, int64(utf8.RuneCountInString(v.String()))), nil
}
