package condition

import (
	"strings"

	"github.com/hugr-lab/sqlcalc/expr"
)

// AliasMap maps canonical tokens to the display strings they replace.
type AliasMap map[string]string

// MergeAliases copies entries of src missing from dst. Existing entries are
// never overwritten.
func MergeAliases(dst, src AliasMap) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// AliasVisitor collects function-call-shaped column references such as
// "$sum(id)" and maps their canonical token ("_sum_id_") back to the
// original text.
type AliasVisitor struct {
	ErrorState
	aliases AliasMap
}

// NewAliasVisitor returns an empty alias visitor.
func NewAliasVisitor() *AliasVisitor {
	return &AliasVisitor{aliases: make(AliasMap)}
}

// Aliases returns the collected map.
func (v *AliasVisitor) Aliases() AliasMap { return v.aliases }

func (v *AliasVisitor) VisitLeaf(l *Leaf) {
	v.collect(l.Value)
}

func (v *AliasVisitor) VisitAnd(a *And) {
	for _, c := range a.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
	}
}

func (v *AliasVisitor) VisitOr(o *Or) {
	for _, c := range o.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
	}
}

func (v *AliasVisitor) VisitNot(n *Not) {
	Accept(n.Child, v)
}

func (v *AliasVisitor) collect(val any) {
	switch x := val.(type) {
	case string:
		if name, ok := ColumnRef(x); ok && isCallShaped(name) {
			if _, exists := v.aliases[expr.CanonicalName(name)]; !exists {
				v.aliases[expr.CanonicalName(name)] = name
			}
		}
	case []any:
		for _, e := range x {
			v.collect(e)
		}
	case map[string]any:
		if params, ok := x["params"].([]any); ok {
			for _, e := range params {
				v.collect(e)
			}
		}
	}
}

// isCallShaped reports whether name looks like fn(args).
func isCallShaped(name string) bool {
	open := strings.IndexByte(name, '(')
	if open <= 0 || !strings.HasSuffix(name, ")") {
		return false
	}
	for i := 0; i < open; i++ {
		c := name[i]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// ExtractAliases runs an AliasVisitor over n. A nil n yields an empty map.
func ExtractAliases(n Node) (AliasMap, error) {
	v := NewAliasVisitor()
	if n == nil {
		return v.Aliases(), nil
	}
	if err := Walk(n, v); err != nil {
		return nil, err
	}
	return v.Aliases(), nil
}
