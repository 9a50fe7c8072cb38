package condition

import "github.com/hugr-lab/sqlcalc/calcerr"

// JoinPair is one equi-join column pair.
type JoinPair struct {
	Left  string
	Right string
}

// JoinKeyVisitor extracts equi-join column pairs. Conjuncts of the form
// left = right (either side optionally under CAST) contribute a pair; any
// other predicate, OR and NOT stay residual join filters.
type JoinKeyVisitor struct {
	ErrorState
	left  map[string]bool
	right map[string]bool
	pairs []JoinPair
}

// NewJoinKeyVisitor returns a visitor for the given left and right input
// columns.
func NewJoinKeyVisitor(left, right []string) *JoinKeyVisitor {
	v := &JoinKeyVisitor{
		left:  make(map[string]bool, len(left)),
		right: make(map[string]bool, len(right)),
	}
	for _, f := range left {
		v.left[f] = true
	}
	for _, f := range right {
		v.right[f] = true
	}
	return v
}

// Pairs returns the extracted pairs in discovery order.
func (v *JoinKeyVisitor) Pairs() []JoinPair { return v.pairs }

// LeftKeys returns the left column of every pair.
func (v *JoinKeyVisitor) LeftKeys() []string {
	out := make([]string, len(v.pairs))
	for i, p := range v.pairs {
		out[i] = p.Left
	}
	return out
}

// RightKeys returns the right column of every pair.
func (v *JoinKeyVisitor) RightKeys() []string {
	out := make([]string, len(v.pairs))
	for i, p := range v.pairs {
		out[i] = p.Right
	}
	return out
}

func (v *JoinKeyVisitor) VisitLeaf(l *Leaf) {
	c, ok := AsCall(l.Value)
	if !ok || !(c.Is("=") || c.Is("==")) || len(c.Params) != 2 {
		return
	}
	a, aok := ColumnRef(UnwrapCast(c.Params[0]))
	b, bok := ColumnRef(UnwrapCast(c.Params[1]))
	if !aok || !bok {
		return
	}

	switch {
	case v.left[a] && v.right[b]:
		v.add(JoinPair{Left: a, Right: b})
	case v.right[a] && v.left[b]:
		v.add(JoinPair{Left: b, Right: a})
	}
}

func (v *JoinKeyVisitor) add(p JoinPair) {
	for _, existing := range v.pairs {
		if existing == p {
			return
		}
	}
	v.pairs = append(v.pairs, p)
}

func (v *JoinKeyVisitor) VisitAnd(a *And) {
	for _, c := range a.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
	}
}

func (*JoinKeyVisitor) VisitOr(*Or) {}

func (*JoinKeyVisitor) VisitNot(*Not) {}

// ExtractJoinKeys walks n and returns the visitor holding its equi-join
// pairs. A condition without any pair is a shape error: a hash join cannot
// be planned from it.
func ExtractJoinKeys(n Node, left, right []string) (*JoinKeyVisitor, error) {
	if n == nil {
		return nil, calcerr.Shape("join", "condition is required")
	}
	v := NewJoinKeyVisitor(left, right)
	if err := Walk(n, v); err != nil {
		return nil, err
	}
	if len(v.Pairs()) == 0 {
		return nil, calcerr.Shape("join", "no equi-join columns in %s", n)
	}
	return v, nil
}
