package condition

import "fmt"

// Visitor is a compilation backend over the condition AST.
//
// Implementations embed ErrorState. A composite visit checks Failed before
// every child and returns once an error is recorded.
type Visitor interface {
	VisitLeaf(*Leaf)
	VisitAnd(*And)
	VisitOr(*Or)
	VisitNot(*Not)

	Failed() bool
	Err() error
}

// Accept dispatches n to the matching visit method. It does nothing once v
// has failed, so no node is visited after the first error.
func Accept(n Node, v Visitor) {
	if v.Failed() {
		return
	}
	switch n := n.(type) {
	case *Leaf:
		v.VisitLeaf(n)
	case *And:
		v.VisitAnd(n)
	case *Or:
		v.VisitOr(n)
	case *Not:
		v.VisitNot(n)
	default:
		panic(fmt.Sprintf("condition: unknown node type %T", n))
	}
}

// Walk visits n with v and returns the recorded error.
func Walk(n Node, v Visitor) error {
	Accept(n, v)
	return v.Err()
}

// ErrorState is the write-once error latch shared by all visitors.
type ErrorState struct {
	err error
}

// SetError records err. Recording a second error is a programming error and
// panics.
func (s *ErrorState) SetError(err error) {
	if s.err != nil {
		panic(fmt.Sprintf("condition: error already set (%v), cannot set %v", s.err, err))
	}
	s.err = err
}

// Failed reports whether an error has been recorded.
func (s *ErrorState) Failed() bool { return s.err != nil }

// Err returns the recorded error.
func (s *ErrorState) Err() error { return s.err }
