package condition

import (
	"encoding/json"
	"fmt"
)

// Node is a condition AST node: *Leaf, *And, *Or or *Not.
// Nodes are immutable after Parse returns.
type Node interface {
	node()
	fmt.Stringer
}

// Leaf is any predicate other than AND/OR/NOT: comparisons, IN and UDF
// calls such as CAST, CASE, contain, ha_in and QUERY.
type Leaf struct {
	// Value is the decoded JSON value. Numbers are json.Number so literal
	// text survives.
	Value any
	// Raw is the original JSON text of the leaf.
	Raw json.RawMessage
}

// And is a conjunction of at least one child.
type And struct {
	Children []Node
}

// Or is a disjunction of at least one child.
type Or struct {
	Children []Node
}

// Not negates exactly one child.
type Not struct {
	Child Node
}

func (*Leaf) node() {}
func (*And) node()  {}
func (*Or) node()   {}
func (*Not) node()  {}

func (l *Leaf) String() string { return string(l.Raw) }

func (a *And) String() string { return joinChildren("AND", a.Children) }

func (o *Or) String() string { return joinChildren("OR", o.Children) }

func (n *Not) String() string { return "NOT(" + n.Child.String() + ")" }

func joinChildren(op string, children []Node) string {
	s := op + "("
	for i, c := range children {
		if i > 0 {
			s += ", "
		}
		s += c.String()
	}
	return s + ")"
}
