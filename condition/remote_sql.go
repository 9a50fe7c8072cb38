package condition

import (
	"encoding/json"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/expr"
	"github.com/hugr-lab/sqlcalc/table"
)

// RemoteSQLOptions configures RemoteSQLVisitor.
type RemoteSQLOptions struct {
	// ColumnMapping maps condition column names to remote column names.
	// Columns not in the map use their original names.
	ColumnMapping map[string]string
}

// RemoteSQLVisitor renders a condition as parameterized SQL for a remote
// engine. Literals never appear in the text: each one is appended to Params
// and rendered as a ? placeholder. Identifiers are backtick-quoted.
//
//	{"op":"=","params":[{"op":"ITEM","params":["$tags","host"]},
//	                    {"op":"literal_or","type":"UDF","params":["10.10*"]}]}
//
// renders as
//
//	(`tags`['host']=literal_or(?))   params: ["10.10*"]
type RemoteSQLVisitor struct {
	ErrorState
	opts   RemoteSQLOptions
	text   string
	params []any
}

// NewRemoteSQLVisitor returns a visitor with the given options.
func NewRemoteSQLVisitor(opts RemoteSQLOptions) *RemoteSQLVisitor {
	return &RemoteSQLVisitor{opts: opts}
}

// SQL returns the rendered text of the last visited node.
func (v *RemoteSQLVisitor) SQL() string { return v.text }

// Params returns the bound literal values in placeholder order.
func (v *RemoteSQLVisitor) Params() []any { return v.params }

func (v *RemoteSQLVisitor) VisitLeaf(l *Leaf) {
	text, err := v.render(l.Value)
	if err != nil {
		v.text = ""
		v.SetError(calcerr.Wrap(calcerr.KindCompile, "remote sql", err))
		return
	}
	v.text = text
}

func (v *RemoteSQLVisitor) VisitAnd(a *And) {
	v.join(" AND ", a.Children)
}

func (v *RemoteSQLVisitor) VisitOr(o *Or) {
	v.join(" OR ", o.Children)
}

func (v *RemoteSQLVisitor) join(sep string, children []Node) {
	parts := make([]string, 0, len(children))
	for _, c := range children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		parts = append(parts, v.text)
	}
	v.text = "(" + strings.Join(parts, sep) + ")"
}

func (v *RemoteSQLVisitor) VisitNot(n *Not) {
	Accept(n.Child, v)
	if v.Failed() {
		return
	}
	v.text = "(NOT " + v.text + ")"
}

func (v *RemoteSQLVisitor) bind(val any) string {
	v.params = append(v.params, val)
	return "?"
}

func (v *RemoteSQLVisitor) column(name string) string {
	if mapped, ok := v.opts.ColumnMapping[name]; ok {
		name = mapped
	}
	return QuoteIdentifier(name)
}

func (v *RemoteSQLVisitor) render(val any) (string, error) {
	switch x := val.(type) {
	case string:
		if name, ok := ColumnRef(x); ok {
			return v.column(name), nil
		}
		return v.bind(x), nil
	case json.Number, float64, int64, int, bool:
		return v.bind(x), nil
	case map[string]any:
		c, ok := AsCall(x)
		if !ok {
			return "", errorf("object without op")
		}
		return v.renderCall(c)
	case nil:
		return "", errorf("null literal")
	default:
		return "", errorf("unsupported value %T", val)
	}
}

func (v *RemoteSQLVisitor) renderAll(params []any) ([]string, error) {
	out := make([]string, len(params))
	for i, p := range params {
		s, err := v.render(p)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (v *RemoteSQLVisitor) renderCall(c *Call) (string, error) {
	op := strings.ToUpper(c.Op)

	switch op {
	case "AND", "OR":
		if len(c.Params) == 0 {
			return "", errorf("%s without operands", op)
		}
		parts, err := v.renderAll(c.Params)
		if err != nil {
			return "", err
		}
		return "(" + strings.Join(parts, " "+op+" ") + ")", nil

	case "NOT":
		if len(c.Params) != 1 {
			return "", errorf("NOT needs one operand")
		}
		s, err := v.render(c.Params[0])
		if err != nil {
			return "", err
		}
		return "(NOT " + s + ")", nil

	case "IN", "NOT IN":
		values := inValues(c.Params)
		if len(values) == 0 {
			return "", errorf("%s without values", op)
		}
		x, err := v.render(c.Params[0])
		if err != nil {
			return "", err
		}
		items, err := v.renderAll(values)
		if err != nil {
			return "", err
		}
		in := "(" + x + " in (" + strings.Join(items, ",") + "))"
		if op == "NOT IN" {
			return "(NOT " + in + ")", nil
		}
		return in, nil

	case "ITEM":
		if len(c.Params) != 2 {
			return "", errorf("ITEM needs a column and a key")
		}
		name, ok := ColumnRef(c.Params[0])
		if !ok {
			return "", errorf("ITEM needs a column reference")
		}
		key, ok := LiteralText(c.Params[1])
		if !ok {
			return "", errorf("ITEM key must be a literal")
		}
		return v.column(name) + "[" + quoteLiteral(key) + "]", nil

	case "CAST":
		typeName := c.CastType
		if typeName == "" && len(c.Params) == 2 {
			typeName, _ = c.Params[1].(string)
		}
		if len(c.Params) == 0 || typeName == "" {
			return "", errorf("CAST needs an operand and a target type")
		}
		to, err := table.ParseType(typeName)
		if err != nil {
			return "", err
		}
		x, err := v.render(c.Params[0])
		if err != nil {
			return "", err
		}
		return "CAST(" + x + " AS " + to.SQLName() + ")", nil

	case "CASE":
		return v.renderCase(c.Params)
	}

	if expr.IsComparison(c.Op) || expr.IsArithmetic(c.Op) {
		if len(c.Params) != 2 {
			return "", errorf("operator %s needs two operands", c.Op)
		}
		parts, err := v.renderAll(c.Params)
		if err != nil {
			return "", err
		}
		return "(" + parts[0] + sqlOperator(c.Op) + parts[1] + ")", nil
	}

	if !isIdentifier(c.Op) {
		return "", errorf("unsupported operator %q", c.Op)
	}
	args, err := v.renderAll(c.Params)
	if err != nil {
		return "", err
	}
	return c.Op + "(" + strings.Join(args, ",") + ")", nil
}

func (v *RemoteSQLVisitor) renderCase(params []any) (string, error) {
	if len(params) < 2 {
		return "", errorf("CASE needs at least one WHEN/THEN pair")
	}
	parts, err := v.renderAll(params)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("CASE")
	i := 0
	for ; i+1 < len(parts); i += 2 {
		sb.WriteString(" WHEN " + parts[i] + " THEN " + parts[i+1])
	}
	if i < len(parts) {
		sb.WriteString(" ELSE " + parts[i])
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func sqlOperator(op string) string {
	switch op {
	case "==":
		return "="
	case "<>":
		return "!="
	}
	return op
}

// RenderRemoteSQL renders n and returns the text and bound values. A nil n
// renders as an empty string.
func RenderRemoteSQL(n Node, opts RemoteSQLOptions) (string, []any, error) {
	if n == nil {
		return "", nil, nil
	}
	v := NewRemoteSQLVisitor(opts)
	if err := Walk(n, v); err != nil {
		return "", nil, err
	}
	return v.SQL(), v.Params(), nil
}
