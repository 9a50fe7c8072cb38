package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
)

// Parse parses a condition JSON document.
//
// Composite nodes have the shape {"op": "AND"|"OR"|"NOT", "params": [...]}.
// AND and OR need at least one child, NOT exactly one. Every other object
// must carry a string "op" and becomes a Leaf, as does every non-object
// value. Empty or whitespace-only input is a valid "no predicate" and yields
// a nil Node with a nil error.
//
// Error conditions:
//   - Invalid JSON syntax
//   - Object without a string "op"
//   - AND/OR/NOT arity violations
func Parse(data []byte) (Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, calcerr.Parse("condition", "invalid JSON")
	}

	n, err := parseNode(data)
	if err != nil {
		return nil, calcerr.Wrap(calcerr.KindParse, "condition", err)
	}
	return n, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Node, error) {
	return Parse([]byte(s))
}

// rawNode is used for two-phase parsing to determine the node kind.
type rawNode struct {
	Op     string            `json:"op"`
	Type   string            `json:"type"`
	Params []json.RawMessage `json:"params"`
}

func parseNode(data json.RawMessage) (Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return parseLeaf(data)
	}

	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}
	if raw.Op == "" {
		return nil, fmt.Errorf("invalid condition: missing op in %s", data)
	}

	switch strings.ToUpper(raw.Op) {
	case "AND":
		children, err := parseChildren("AND", raw.Params)
		if err != nil {
			return nil, err
		}
		return &And{Children: children}, nil

	case "OR":
		children, err := parseChildren("OR", raw.Params)
		if err != nil {
			return nil, err
		}
		return &Or{Children: children}, nil

	case "NOT":
		if len(raw.Params) != 1 {
			return nil, fmt.Errorf("NOT needs exactly one child, got %d", len(raw.Params))
		}
		child, err := parseNode(raw.Params[0])
		if err != nil {
			return nil, fmt.Errorf("invalid NOT child: %w", err)
		}
		return &Not{Child: child}, nil
	}

	return parseLeaf(data)
}

func parseChildren(op string, params []json.RawMessage) ([]Node, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%s needs at least one child", op)
	}
	children := make([]Node, 0, len(params))
	for i, p := range params {
		child, err := parseNode(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s child %d: %w", op, i, err)
		}
		children = append(children, child)
	}
	return children, nil
}

func parseLeaf(data json.RawMessage) (*Leaf, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid leaf: %w", err)
	}
	return &Leaf{Value: v, Raw: append(json.RawMessage(nil), data...)}, nil
}
