package condition

import (
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/expr"
)

// FilterCompileVisitor compiles a condition into one boolean expression.
// Leaves go to the expression engine; AND/OR fold their children left to
// right into binary expressions.
type FilterCompileVisitor struct {
	ErrorState
	engine *expr.Engine
	result expr.Expression
}

// NewFilterCompileVisitor returns a visitor compiling against engine.
func NewFilterCompileVisitor(engine *expr.Engine) *FilterCompileVisitor {
	return &FilterCompileVisitor{engine: engine}
}

// Result returns the compiled expression of the last visited node.
func (v *FilterCompileVisitor) Result() expr.Expression { return v.result }

func (v *FilterCompileVisitor) VisitLeaf(l *Leaf) {
	var (
		e   expr.Expression
		err error
	)
	if s, ok := l.Value.(string); ok && !strings.HasPrefix(s, "$") {
		e, err = v.engine.CompileString(s)
	} else {
		e, err = v.engine.CompileJSON(l.Value)
	}
	if err != nil {
		v.result = nil
		v.SetError(calcerr.Wrap(calcerr.KindCompile, "filter", err))
		return
	}
	v.result = e
}

func (v *FilterCompileVisitor) VisitAnd(a *And) {
	v.fold(true, a.Children)
}

func (v *FilterCompileVisitor) VisitOr(o *Or) {
	v.fold(false, o.Children)
}

func (v *FilterCompileVisitor) fold(and bool, children []Node) {
	var acc expr.Expression
	for _, c := range children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		if acc == nil {
			acc = v.result
			continue
		}
		next, err := expr.NewLogical(and, acc, v.result)
		if err != nil {
			v.result = nil
			v.SetError(calcerr.Wrap(calcerr.KindCompile, "filter", err))
			return
		}
		acc = next
	}
	v.result = acc
}

func (v *FilterCompileVisitor) VisitNot(n *Not) {
	Accept(n.Child, v)
	if v.Failed() {
		return
	}
	e, err := expr.NewNot(v.result)
	if err != nil {
		v.result = nil
		v.SetError(calcerr.Wrap(calcerr.KindCompile, "filter", err))
		return
	}
	v.result = e
}

// CompileFilter compiles n against engine. A nil n compiles to nil.
func CompileFilter(engine *expr.Engine, n Node) (expr.Expression, error) {
	if n == nil {
		return nil, nil
	}
	v := NewFilterCompileVisitor(engine)
	if err := Walk(n, v); err != nil {
		return nil, err
	}
	return v.Result(), nil
}
