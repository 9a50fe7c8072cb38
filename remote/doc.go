// Package remote renders remote SELECT statements and packs them into the
// signed transport string consumed by the network layer.
//
//	q := remote.Query{
//	    Columns:   []string{"id", "title"},
//	    Database:  "docs",
//	    Table:     "articles",
//	    Condition: cond,
//	    PKField:   "id",
//	    Limit:     100,
//	}
//	stmt, err := q.Bind(keys)
//	req, err := remote.NewRequest(stmt, remote.RequestOptions{
//	    Auth: &remote.Auth{Token: token, Key: key},
//	})
//
// Literals never appear in Statement.SQL; they travel in the
// dynamic_params entry of the kvpair.
package remote
