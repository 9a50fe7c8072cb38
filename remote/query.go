package remote

import (
	"strconv"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/condition"
	"github.com/hugr-lab/sqlcalc/expr"
)

// DefaultLimit is used when Query.Limit is not positive.
const DefaultLimit = 10000

// Query describes one remote SELECT.
type Query struct {
	// Columns to select. Empty selects every column.
	Columns  []string
	Database string
	Table    string
	// Condition is rendered as parameterized SQL. Nil means no predicate.
	Condition condition.Node
	// PKField, when set, adds a contain(pk, ?) clause bound to the lookup
	// keys passed to Bind.
	PKField string
	Limit   int
	// ColumnMapping renames columns in the select list and condition.
	ColumnMapping map[string]string
}

// Statement is a rendered query and its positional parameters.
type Statement struct {
	SQL    string
	Params []any
}

func (q *Query) column(name string) string {
	if mapped, ok := q.ColumnMapping[name]; ok {
		name = mapped
	}
	return condition.QuoteIdentifier(name)
}

// Bind renders the query. With PKField set, keys are joined with "|" and
// bound to the contain() placeholder; at least one key is required.
//
//	SELECT `a`,`b` FROM `db`.`t` WHERE 1=1 AND (`a`>?) AND contain(`id`, ?) LIMIT 100
func (q *Query) Bind(keys []string) (Statement, error) {
	if q.Database == "" || q.Table == "" {
		return Statement{}, calcerr.Compile("remote", "database and table are required")
	}
	if q.PKField == "" && len(keys) > 0 {
		return Statement{}, calcerr.Compile("remote", "keys given without a primary key field")
	}
	if q.PKField != "" && len(keys) == 0 {
		return Statement{}, calcerr.Compile("remote", "point lookup on %s without keys", q.PKField)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteString("*")
	}
	for i, c := range q.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(q.column(c))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(condition.QuoteIdentifier(q.Database))
	sb.WriteByte('.')
	sb.WriteString(condition.QuoteIdentifier(q.Table))
	sb.WriteString(" WHERE 1=1")

	cond, params, err := condition.RenderRemoteSQL(q.Condition, condition.RemoteSQLOptions{
		ColumnMapping: q.ColumnMapping,
	})
	if err != nil {
		return Statement{}, err
	}
	if cond != "" {
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}

	if q.PKField != "" {
		sb.WriteString(" AND contain(")
		sb.WriteString(q.column(q.PKField))
		sb.WriteString(", ?)")
		params = append(params, strings.Join(keys, expr.DefaultSeparator))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sb.WriteString(" LIMIT ")
	sb.WriteString(strconv.Itoa(limit))

	if params == nil {
		params = []any{}
	}
	return Statement{SQL: sb.String(), Params: params}, nil
}
