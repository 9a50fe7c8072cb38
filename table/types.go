package table

import (
	"fmt"
	"strings"
)

// ValueType is the element type of a column. The domain is closed: every
// column holds exactly one of these types, single- or multi-valued.
type ValueType uint8

const (
	Int8 ValueType = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float
	Double
	String

	numValueTypes
)

var valueTypeNames = [numValueTypes]string{
	Int8:   "int8",
	Int16:  "int16",
	Int32:  "int32",
	Int64:  "int64",
	Uint8:  "uint8",
	Uint16: "uint16",
	Uint32: "uint32",
	Uint64: "uint64",
	Float:  "float",
	Double: "double",
	String: "string",
}

// ValueTypes returns every member of the closed value domain.
func ValueTypes() []ValueType {
	out := make([]ValueType, 0, numValueTypes)
	for vt := ValueType(0); vt < numValueTypes; vt++ {
		out = append(out, vt)
	}
	return out
}

func (v ValueType) String() string {
	if !v.Valid() {
		return fmt.Sprintf("ValueType(%d)", uint8(v))
	}
	return valueTypeNames[v]
}

// Valid reports whether v belongs to the closed domain.
func (v ValueType) Valid() bool { return v < numValueTypes }

// IsSigned reports whether v is a signed integer type.
func (v ValueType) IsSigned() bool { return v <= Int64 }

// IsUnsigned reports whether v is an unsigned integer type.
func (v ValueType) IsUnsigned() bool { return v >= Uint8 && v <= Uint64 }

// IsInteger reports whether v is any integer type.
func (v ValueType) IsInteger() bool { return v <= Uint64 }

// IsFloat reports whether v is float or double.
func (v ValueType) IsFloat() bool { return v == Float || v == Double }

// IsNumeric reports whether v is an integer or floating-point type.
func (v ValueType) IsNumeric() bool { return v <= Double }

// ColumnType is a value type plus the multi-value flag.
type ColumnType struct {
	Value ValueType
	Multi bool
}

// Single returns the single-valued column type for vt.
func Single(vt ValueType) ColumnType { return ColumnType{Value: vt} }

// MultiOf returns the multi-valued column type for vt.
func MultiOf(vt ValueType) ColumnType { return ColumnType{Value: vt, Multi: true} }

// Valid reports whether the element type belongs to the closed domain.
func (c ColumnType) Valid() bool { return c.Value.Valid() }

func (c ColumnType) String() string {
	if c.Multi {
		return c.Value.String() + "[]"
	}
	return c.Value.String()
}

var sqlTypeNames = map[string]ValueType{
	"TINYINT":   Int8,
	"INT8":      Int8,
	"SMALLINT":  Int16,
	"INT16":     Int16,
	"INTEGER":   Int32,
	"INT":       Int32,
	"INT32":     Int32,
	"BIGINT":    Int64,
	"INT64":     Int64,
	"UTINYINT":  Uint8,
	"UINT8":     Uint8,
	"USMALLINT": Uint16,
	"UINT16":    Uint16,
	"UINTEGER":  Uint32,
	"UINT32":    Uint32,
	"UBIGINT":   Uint64,
	"UINT64":    Uint64,
	"FLOAT":     Float,
	"REAL":      Float,
	"DOUBLE":    Double,
	"VARCHAR":   String,
	"CHAR":      String,
	"STRING":    String,
	"TEXT":      String,
}

// ParseType parses a SQL type name such as BIGINT, VARCHAR, ARRAY(INTEGER)
// or MULTISET(DOUBLE). Names are case-insensitive.
func ParseType(name string) (ColumnType, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return ColumnType{}, fmt.Errorf("empty type name")
	}

	for _, prefix := range []string{"ARRAY", "MULTISET"} {
		if strings.HasPrefix(s, prefix+"(") && strings.HasSuffix(s, ")") {
			inner := strings.TrimSpace(s[len(prefix)+1 : len(s)-1])
			vt, ok := sqlTypeNames[inner]
			if !ok {
				return ColumnType{}, fmt.Errorf("unsupported element type %q", inner)
			}
			return MultiOf(vt), nil
		}
	}

	if i := strings.IndexByte(s, '('); i > 0 && strings.HasSuffix(s, ")") {
		// VARCHAR(255), CHAR(1)
		s = s[:i]
	}

	vt, ok := sqlTypeNames[s]
	if !ok {
		return ColumnType{}, fmt.Errorf("unsupported type %q", name)
	}
	return Single(vt), nil
}

// SQLName returns the canonical SQL spelling of the column type.
func (c ColumnType) SQLName() string {
	var base string
	switch c.Value {
	case Int8:
		base = "TINYINT"
	case Int16:
		base = "SMALLINT"
	case Int32:
		base = "INTEGER"
	case Int64:
		base = "BIGINT"
	case Uint8:
		base = "UTINYINT"
	case Uint16:
		base = "USMALLINT"
	case Uint32:
		base = "UINTEGER"
	case Uint64:
		base = "UBIGINT"
	case Float:
		base = "FLOAT"
	case Double:
		base = "DOUBLE"
	case String:
		base = "VARCHAR"
	default:
		return ""
	}
	if c.Multi {
		return "ARRAY(" + base + ")"
	}
	return base
}

// Field is a named column type.
type Field struct {
	Name string
	Type ColumnType
}

// Schema is the ordered list of a table's columns.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have the same names and types in the
// same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
