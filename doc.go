// Package sqlcalc compiles query-plan predicates and output expressions and
// evaluates them over in-memory columnar batches.
//
// A plan node hands over a condition and a set of output expressions as
// JSON. The condition is parsed once into an AND/OR/NOT tree and then
// compiled by whichever backend the consumer needs:
//   - a boolean expression for row filtering (package calc)
//   - a point-lookup key set for primary-key and index scans
//   - an alias map for function-shaped pseudo-columns
//   - parameterized SQL for a remote engine (package remote)
//   - exact field = value rows for UPDATE and DELETE
//   - equi-join column pairs
//
// # Quick Start
//
//	rt, err := sqlcalc.New(sqlcalc.Config{Logger: logger})
//	if err != nil {
//	    return err
//	}
//
//	c, err := rt.NewCalc(calc.InitParam{
//	    OutputFields: []string{"id", "score"},
//	    Condition:    `{"op":">","params":["$price",100]}`,
//	    OutputExprs:  `{"score":"price * 2"}`,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := c.Compile(batch.Schema()); err != nil {
//	    return err
//	}
//	out, err := c.Process(batch)
//
// Arrow record batches go through Runtime.ProcessRecord, which allocates
// its output from Config.Allocator.
//
// # Remote Queries
//
//	req, err := rt.NewRemoteQuery(remote.Query{
//	    Columns:   []string{"id"},
//	    Database:  "db",
//	    Table:     "docs",
//	    Condition: cond,
//	    PKField:   "id",
//	}, keys)
//
// Literals are bound as positional parameters and never spliced into the
// query text. With Config.RemoteAuth set the request carries an MD5
// signature.
//
// # Errors
//
// Every failure is a *calcerr.Error of kind Parse, Compile, Shape or
// TypeDispatch. Use errors.Is with the calcerr sentinels, or
// status.FromError for the gRPC code.
package sqlcalc
