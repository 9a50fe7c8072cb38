package calc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/condition"
	"github.com/hugr-lab/sqlcalc/expr"
	"github.com/hugr-lab/sqlcalc/internal/logging"
	"github.com/hugr-lab/sqlcalc/internal/recovery"
	"github.com/hugr-lab/sqlcalc/table"
)

// ErrState is returned when an operation is called in the wrong state.
var ErrState = errors.New("calc: invalid state")

// State is the lifecycle state of a Calc.
type State uint8

const (
	StateInit State = iota
	StateCompiled
	StateFiltering
	StateProjecting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:       "init",
	StateCompiled:   "compiled",
	StateFiltering:  "filtering",
	StateProjecting: "projecting",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Options configures a Calc.
type Options struct {
	// Logger receives lifecycle logs. Nil discards.
	Logger *slog.Logger
}

// OutputColumn is one resolved output column. Exactly one of Source and
// Expr is set.
type OutputColumn struct {
	Name string
	Type table.ColumnType
	// Source is the input column cloned into the output.
	Source string
	// Expr is evaluated per row into a new column.
	Expr expr.Expression
}

// OutputSpec is the ordered output of a Calc.
type OutputSpec []OutputColumn

// Stats counts the work done by one Calc.
type Stats struct {
	RowsEvaluated int
	RowsDeleted   int
	Projected     bool
}

// Calc filters and projects one table batch. A Calc is owned by a single
// goroutine; run independent batches on independent Calcs.
type Calc struct {
	param  InitParam
	logger *slog.Logger

	state  State
	err    error
	cond   condition.Node
	filter expr.Expression
	output OutputSpec
	stats  Stats
}

// New returns a Calc in the Init state.
func New(param InitParam, opts Options) (*Calc, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Default(opts.Logger).With(
		"component", "calc",
		"calc_id", uuid.NewString(),
	)
	return &Calc{param: param, logger: logger}, nil
}

// State returns the current state.
func (c *Calc) State() State { return c.state }

// Err returns the error that moved the Calc to StateFailed.
func (c *Calc) Err() error { return c.err }

// Condition returns the parsed condition, or nil when there is none.
func (c *Calc) Condition() condition.Node { return c.cond }

// FilterExpr returns the compiled filter, or nil when there is none.
func (c *Calc) FilterExpr() expr.Expression { return c.filter }

// Output returns the resolved output spec.
func (c *Calc) Output() OutputSpec { return c.output }

// Stats returns the work counters.
func (c *Calc) Stats() Stats { return c.stats }

func (c *Calc) expect(op string, states ...State) error {
	if c.state == StateFailed {
		return fmt.Errorf("%w: %s after failure: %w", ErrState, op, c.err)
	}
	for _, s := range states {
		if c.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrState, op, c.state)
}

func (c *Calc) fail(err error) error {
	c.state = StateFailed
	c.err = err
	c.logger.Warn("calc failed", "error", err)
	return err
}

// Compile parses the condition and output expressions against schema.
func (c *Calc) Compile(schema table.Schema) error {
	if err := c.expect("compile", StateInit); err != nil {
		return err
	}
	start := time.Now()

	cond, err := condition.ParseString(c.param.Condition)
	if err != nil {
		return c.fail(err)
	}
	exprs, err := parseOutputExprs(c.param.OutputExprs)
	if err != nil {
		return c.fail(err)
	}

	aliases, err := condition.ExtractAliases(cond)
	if err != nil {
		return c.fail(err)
	}
	for _, v := range exprs {
		collectAliases(aliases, v)
	}
	engine := expr.NewEngine(schema, expr.Options{Aliases: aliases})

	filter, err := condition.CompileFilter(engine, cond)
	if err != nil {
		return c.fail(err)
	}
	output, err := c.resolveOutput(engine, schema, exprs)
	if err != nil {
		return c.fail(err)
	}

	c.cond = cond
	c.filter = filter
	c.output = output
	c.state = StateCompiled

	attrs := []any{"outputs", len(output), "duration", time.Since(start)}
	if filter != nil {
		attrs = append(attrs, "filter", filter.String())
	}
	c.logger.Debug("compiled", attrs...)
	return nil
}

// collectAliases adds call-shaped column tokens found in an output
// expression tree to aliases.
func collectAliases(aliases condition.AliasMap, v any) {
	leaf := &condition.Leaf{Value: v}
	found, _ := condition.ExtractAliases(leaf)
	condition.MergeAliases(aliases, found)
}

func (c *Calc) resolveOutput(engine *expr.Engine, schema table.Schema, exprs map[string]any) (OutputSpec, error) {
	if len(c.param.OutputFields) == 0 {
		out := make(OutputSpec, len(schema))
		for i, f := range schema {
			out[i] = OutputColumn{Name: f.Name, Type: f.Type, Source: f.Name}
		}
		return out, nil
	}

	out := make(OutputSpec, 0, len(c.param.OutputFields))
	for i, name := range c.param.OutputFields {
		col, err := c.resolveColumn(engine, name, c.param.fieldType(i), exprs[name])
		if err != nil {
			return nil, calcerr.Wrap(calcerr.KindCompile, "output "+name, err)
		}
		out = append(out, col)
	}
	return out, nil
}

func (c *Calc) resolveColumn(engine *expr.Engine, name, typeName string, raw any) (OutputColumn, error) {
	var declared *table.ColumnType
	if typeName != "" {
		ct, err := table.ParseType(typeName)
		if err != nil {
			return OutputColumn{}, err
		}
		declared = &ct
	}

	if isEmptyExpr(raw) {
		if src, typ, ok := engine.Resolve(name); ok {
			if declared == nil || *declared == typ {
				return OutputColumn{Name: name, Type: typ, Source: src}, nil
			}
			ref, err := engine.Column(name)
			if err != nil {
				return OutputColumn{}, err
			}
			return castOutput(name, ref, declared)
		}
		if declared == nil {
			return OutputColumn{}, calcerr.Compile("output", "column %q has neither expression nor type", name)
		}
		return OutputColumn{Name: name, Type: *declared, Expr: expr.DefaultConstant(*declared)}, nil
	}

	e, err := compileOutputExpr(engine, raw)
	if err != nil {
		return OutputColumn{}, err
	}
	return castOutput(name, e, declared)
}

func castOutput(name string, e expr.Expression, declared *table.ColumnType) (OutputColumn, error) {
	if declared != nil && e.Type() != *declared {
		cast, err := expr.NewCast(e, *declared)
		if err != nil {
			return OutputColumn{}, err
		}
		e = cast
	}
	return OutputColumn{Name: name, Type: e.Type(), Expr: e}, nil
}

func isEmptyExpr(raw any) bool {
	switch x := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// compileOutputExpr compiles one output expression. Strings that are not
// column references go through the syntax parser; a CASE-shaped object
// goes through the case builder.
func compileOutputExpr(engine *expr.Engine, raw any) (expr.Expression, error) {
	if s, ok := raw.(string); ok && !strings.HasPrefix(s, "$") {
		return engine.CompileString(s)
	}
	if params, ok := expr.IsCase(raw); ok {
		return engine.CompileCase(params)
	}
	return engine.CompileJSON(raw)
}

// Filter deletes the rows in positions [start, end) that fail the
// condition. Rows already marked are skipped. Unless lazy is set the table
// is compacted before returning. On error the table is left unchanged.
func (c *Calc) Filter(t *table.Table, start, end int, lazy bool) error {
	if err := c.expect("filter", StateCompiled, StateFiltering); err != nil {
		return err
	}
	if start < 0 || end > t.RowCount() || start > end {
		return c.fail(calcerr.Shape("filter", "range [%d, %d) outside %d rows", start, end, t.RowCount()))
	}
	c.state = StateFiltering

	err := recovery.RecoverToError(c.logger, "filter", func() error {
		return c.filterRange(t, start, end)
	})
	if err != nil {
		return c.fail(err)
	}
	if !lazy {
		t.Compact()
	}
	return nil
}

func (c *Calc) filterRange(t *table.Table, start, end int) error {
	if c.filter == nil {
		return nil
	}

	if v, ok := c.filter.Constant(); ok {
		keep := v.Truthy()
		if i, isInt := expr.IntConstant(c.filter); isInt {
			keep = i > 0
		}
		if !keep {
			before := t.PendingDeletes()
			t.DeleteRange(start, end)
			c.stats.RowsDeleted += t.PendingDeletes() - before
		}
		c.logger.Debug("constant filter", "keep", keep, "start", start, "end", end)
		return nil
	}

	eval, err := c.filter.Bind(t)
	if err != nil {
		return err
	}
	var drop []int
	for pos := start; pos < end; pos++ {
		if t.IsDeleted(pos) {
			continue
		}
		v, err := eval(t.RowAt(pos))
		if err != nil {
			return calcerr.Wrap(calcerr.KindEval, "filter", err)
		}
		c.stats.RowsEvaluated++
		if !v.Truthy() {
			drop = append(drop, pos)
		}
	}
	for _, pos := range drop {
		t.MarkDeleted(pos)
	}
	c.stats.RowsDeleted += len(drop)

	c.logger.Debug("filtered", "start", start, "end", end, "deleted", len(drop))
	return nil
}

// Project builds the output table. It returns t itself, compacted, when t
// already has exactly the requested columns. On error t is left untouched and
// usable.
func (c *Calc) Project(t *table.Table) (*table.Table, error) {
	if err := c.expect("project", StateCompiled, StateFiltering); err != nil {
		return nil, err
	}
	c.state = StateProjecting

	if c.isNoop(t) {
		// Lazy filters leave deletions pending; the caller gets t back, so
		// they must be applied here.
		if t.PendingDeletes() > 0 {
			t.Compact()
		}
		c.state = StateDone
		c.logger.Debug("projection skipped", "rows", t.RowCount())
		return t, nil
	}

	out, err := recovery.RecoverToValue(c.logger, "project", func() (*table.Table, error) {
		return c.project(t)
	})
	if err != nil {
		return nil, c.fail(err)
	}
	c.stats.Projected = true
	c.state = StateDone
	c.logger.Debug("projected", "rows", out.RowCount(), "columns", out.ColumnCount())
	return out, nil
}

func (c *Calc) isNoop(t *table.Table) bool {
	if c.param.HasSubDocuments() {
		return false
	}
	if len(c.output) != t.ColumnCount() {
		return false
	}
	for i, col := range c.output {
		in := t.ColumnAt(i)
		if col.Expr != nil || col.Source != col.Name || in.Name() != col.Name || in.Type() != col.Type {
			return false
		}
	}
	return true
}

func (c *Calc) project(t *table.Table) (*table.Table, error) {
	live := t.LiveRows()
	out := table.New()
	out.AllocateRows(len(live))
	share := c.param.ReuseInputs && t.IsDense()

	for _, col := range c.output {
		if col.Expr == nil {
			if err := c.passThrough(out, t, col, share); err != nil {
				return nil, calcerr.Wrap(calcerr.KindTypeDispatch, "project", err)
			}
			continue
		}
		if err := evaluate(out, t, live, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Calc) passThrough(out, t *table.Table, col OutputColumn, share bool) error {
	if share && col.Source == col.Name {
		if src := t.Column(col.Source); src != nil {
			return out.AddColumn(src)
		}
	}
	return out.CloneColumn(t, col.Source, col.Name)
}

func evaluate(out, t *table.Table, live []table.Row, col OutputColumn) error {
	dst, err := out.DeclareColumn(col.Name, col.Type)
	if err != nil {
		return calcerr.Wrap(calcerr.KindTypeDispatch, "project", err)
	}
	eval, err := col.Expr.Bind(t)
	if err != nil {
		return calcerr.Wrap(calcerr.KindCompile, "project "+col.Name, err)
	}
	for i, r := range live {
		v, err := eval(r)
		if err != nil {
			return calcerr.Wrap(calcerr.KindEval, "project "+col.Name, err)
		}
		if err := dst.SetValue(out.RowAt(i), v); err != nil {
			return calcerr.Wrap(calcerr.KindEval, "project "+col.Name, err)
		}
	}
	return nil
}

// Process filters every row of t, compacts and projects.
func (c *Calc) Process(t *table.Table) (*table.Table, error) {
	if err := c.Filter(t, 0, t.RowCount(), false); err != nil {
		return nil, err
	}
	return c.Project(t)
}
