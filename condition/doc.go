// Package condition parses predicate JSON into an AND/OR/NOT tree and
// compiles it through visitors.
//
// A condition document is a JSON value. Objects with op AND, OR or NOT are
// composite nodes; every other value (comparisons, IN, UDF calls, bare
// strings) is a Leaf carrying its decoded JSON:
//
//	{"op":"AND","params":[
//	    {"op":"=","params":["$attr1",1]},
//	    {"op":"contain","type":"UDF","params":["$id","1|2|3"]}
//	]}
//
// # Visitors
//
// One parsed tree feeds several backends:
//   - AliasVisitor collects function-shaped column tokens such as sum(id)
//   - FilterCompileVisitor builds one boolean expr.Expression
//   - KeyExtractVisitor derives point-lookup keys for a key field
//   - UpdateKeyVisitor and DeleteKeyVisitor derive exact mutation rows
//   - JoinKeyVisitor derives equi-join column pairs
//   - RemoteSQLVisitor renders parameterized SQL for a remote engine
//
// Each visitor embeds ErrorState. The first error is latched and Accept
// visits nothing further:
//
//	n, err := condition.ParseString(doc)
//	if err != nil {
//	    return err
//	}
//	res, err := condition.ExtractKeys(n, "attr1", "")
//	if err != nil {
//	    return err
//	}
//	if res.HasQuery {
//	    rows := lookup(res.Keys)
//	    if res.NeedFilter {
//	        // re-apply the full condition to rows
//	    }
//	}
package condition
