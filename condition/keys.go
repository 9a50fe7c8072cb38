package condition

import "github.com/hugr-lab/sqlcalc/expr"

// KeyResult is the outcome of one key extraction.
type KeyResult struct {
	// HasQuery is true when Keys bounds the rows the condition can match.
	HasQuery bool
	// NeedFilter is true when the full condition must still be applied to
	// the looked-up rows.
	NeedFilter bool
	Keys       []string
}

// KeyExtractVisitor extracts point-lookup key values for one key field,
// shared by primary-key, summary and KV scans.
//
//   - key = literal (either side optionally wrapped in CAST) yields one key
//   - IN(key, v1..vn) yields n keys
//   - contain/ha_in(key or index, "v1|v2", [sep]) yields the split values
//   - AND has a query when any child has one and unions the keys
//   - OR has a query only when every child has one
//   - NOT never has a query
//
// AND is deliberately a union rather than an intersection: attr=1 AND attr=2
// yields both keys. Callers must re-apply the full condition when NeedFilter
// is set.
type KeyExtractVisitor struct {
	ErrorState
	field string
	index string

	hasQuery   bool
	needFilter bool
	keys       []string
}

// NewKeyExtractVisitor returns a visitor for the given key field. index is
// the name of the index over the field, or empty.
func NewKeyExtractVisitor(field, index string) *KeyExtractVisitor {
	return &KeyExtractVisitor{field: field, index: index}
}

// StealHasQuery returns the has-query flag and resets it.
func (v *KeyExtractVisitor) StealHasQuery() bool {
	h := v.hasQuery
	v.hasQuery = false
	return h
}

// StealKeys moves the key list out of the visitor.
func (v *KeyExtractVisitor) StealKeys() []string {
	keys := v.keys
	v.keys = nil
	return keys
}

// NeedFilter reports whether a residual filter is required.
func (v *KeyExtractVisitor) NeedFilter() bool { return v.needFilter }

func (v *KeyExtractVisitor) isKey(p any) bool {
	name, ok := ColumnRef(UnwrapCast(p))
	if !ok {
		// contain/ha_in may name the index directly
		name, ok = p.(string)
		return ok && v.index != "" && name == v.index
	}
	return v.matches(name)
}

func (v *KeyExtractVisitor) matches(name string) bool {
	return name == v.field || (v.index != "" && name == v.index)
}

func (v *KeyExtractVisitor) set(hasQuery, needFilter bool, keys []string) {
	v.hasQuery, v.needFilter, v.keys = hasQuery, needFilter, keys
}

func (v *KeyExtractVisitor) VisitLeaf(l *Leaf) {
	v.set(false, true, nil)

	c, ok := AsCall(l.Value)
	if !ok {
		return
	}

	switch {
	case c.Is("=") || c.Is("=="):
		col, lit, ok := equality(c)
		if !ok || !v.matches(col) {
			return
		}
		v.set(true, false, []string{lit})

	case c.Is("IN"):
		if len(c.Params) < 2 || !v.isKey(c.Params[0]) {
			return
		}
		values := inValues(c.Params)
		keys := make([]string, 0, len(values))
		for _, p := range values {
			lit, ok := LiteralText(UnwrapCast(p))
			if !ok {
				return
			}
			keys = append(keys, lit)
		}
		v.set(true, false, dedupe(keys))

	case c.Is("contain") || c.Is("ha_in"):
		if len(c.Params) < 2 || !v.isKey(c.Params[0]) {
			return
		}
		list, ok := c.Params[1].(string)
		if !ok {
			return
		}
		sep := expr.DefaultSeparator
		if len(c.Params) > 2 {
			if s, ok := c.Params[2].(string); ok && s != "" {
				sep = s
			}
		}
		v.set(true, false, dedupe(expr.SplitValues(list, sep)))
	}
}

func (v *KeyExtractVisitor) VisitAnd(a *And) {
	var (
		hasQuery    bool
		needFilter  bool
		contributed int
		keys        []string
	)
	for _, c := range a.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		if v.hasQuery {
			hasQuery = true
			contributed++
			keys = append(keys, v.keys...)
		}
		needFilter = needFilter || v.needFilter
	}
	if contributed > 1 {
		needFilter = true
	}
	if !hasQuery {
		keys = nil
	}
	v.set(hasQuery, needFilter, dedupe(keys))
}

func (v *KeyExtractVisitor) VisitOr(o *Or) {
	var (
		allQuery   = true
		needFilter bool
		keys       []string
	)
	for _, c := range o.Children {
		if v.Failed() {
			return
		}
		Accept(c, v)
		if v.Failed() {
			return
		}
		if !v.hasQuery {
			allQuery = false
		}
		needFilter = needFilter || v.needFilter
		keys = append(keys, v.keys...)
	}
	if !allQuery {
		v.set(false, true, nil)
		return
	}
	v.set(true, needFilter, dedupe(keys))
}

func (v *KeyExtractVisitor) VisitNot(*Not) {
	v.set(false, true, nil)
}

func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ExtractKeys runs a KeyExtractVisitor over n and steals its result. A nil n
// has no query and needs no filter.
func ExtractKeys(n Node, field, index string) (KeyResult, error) {
	if n == nil {
		return KeyResult{}, nil
	}
	v := NewKeyExtractVisitor(field, index)
	if err := Walk(n, v); err != nil {
		return KeyResult{}, err
	}
	return KeyResult{
		NeedFilter: v.NeedFilter(),
		HasQuery:   v.StealHasQuery(),
		Keys:       v.StealKeys(),
	}, nil
}
