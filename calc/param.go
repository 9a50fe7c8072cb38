package calc

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/internal/msgpack"
)

// InitParam is the plan-node configuration of one Calc.
type InitParam struct {
	// OutputFields lists the output column names in order. Empty keeps every
	// input column.
	OutputFields []string `json:"output_fields,omitempty"`
	// OutputFieldTypes declares the type of each output field, parallel to
	// OutputFields. An entry may be empty; the slice may be omitted.
	OutputFieldTypes []string `json:"output_field_types,omitempty"`
	// Condition is the condition JSON. Empty means no filter.
	Condition string `json:"condition,omitempty"`
	// OutputExprs is a JSON object mapping output names to an expression
	// string or JSON sub-tree.
	OutputExprs string `json:"output_exprs,omitempty"`
	// ReuseInputs lets projection share input columns with the output
	// instead of copying them.
	ReuseInputs bool `json:"reuse_inputs,omitempty"`
	// MatchType describes the input document structure. A value containing
	// SUB marks sub-documents.
	MatchType string `json:"match_type,omitempty"`
}

// HasSubDocuments reports whether the input carries sub-document structure.
func (p *InitParam) HasSubDocuments() bool {
	return strings.Contains(strings.ToUpper(p.MatchType), "SUB")
}

// Validate checks the shape of p.
func (p *InitParam) Validate() error {
	if len(p.OutputFieldTypes) != 0 && len(p.OutputFieldTypes) != len(p.OutputFields) {
		return calcerr.Parse("init param", "%d output types for %d output fields",
			len(p.OutputFieldTypes), len(p.OutputFields))
	}
	seen := make(map[string]struct{}, len(p.OutputFields))
	for _, f := range p.OutputFields {
		if f == "" {
			return calcerr.Parse("init param", "empty output field name")
		}
		if _, ok := seen[f]; ok {
			return calcerr.Parse("init param", "duplicate output field %q", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func (p *InitParam) fieldType(i int) string {
	if i < len(p.OutputFieldTypes) {
		return p.OutputFieldTypes[i]
	}
	return ""
}

// DecodeInitParam decodes p from JSON or MessagePack. A document starting
// with '{' is JSON.
func DecodeInitParam(data []byte) (InitParam, error) {
	var p InitParam
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return p, calcerr.Parse("init param", "empty document")
	}

	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return p, calcerr.Wrap(calcerr.KindParse, "init param", err)
		}
	} else if err := msgpack.Decode(data, &p); err != nil {
		return p, calcerr.Wrap(calcerr.KindParse, "init param", err)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// EncodeInitParam encodes p as MessagePack.
func EncodeInitParam(p InitParam) ([]byte, error) {
	return msgpack.Encode(p)
}

// parseOutputExprs decodes the output-expression map. Numbers stay
// json.Number so literal text survives.
func parseOutputExprs(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var exprs map[string]any
	if err := dec.Decode(&exprs); err != nil {
		return nil, calcerr.Wrap(calcerr.KindParse, "output exprs", err)
	}
	return exprs, nil
}
