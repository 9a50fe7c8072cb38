package calc

import (
	"context"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/sqlcalc/table"
)

// Factory returns a fresh Calc in the Init state.
type Factory func() (*Calc, error)

// NewFactory returns a Factory building Calcs from one parameter set.
func NewFactory(param InitParam, opts Options) Factory {
	return func() (*Calc, error) { return New(param, opts) }
}

// RunBatches processes independent batches concurrently. Each batch gets its
// own Calc from newCalc, compiled against the batch schema. The results are
// in batch order; the first error cancels the remaining batches.
func RunBatches(ctx context.Context, newCalc Factory, batches []*table.Table) ([]*table.Table, error) {
	results := make([]*table.Table, len(batches))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, batch := range batches {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			c, err := newCalc()
			if err != nil {
				return err
			}
			if err := c.Compile(batch.Schema()); err != nil {
				return err
			}
			out, err := c.Process(batch)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessRecord runs a compiled-on-demand Calc over an Arrow record batch
// and returns the projected batch. The caller releases the result.
func ProcessRecord(c *Calc, rec arrow.RecordBatch, mem memory.Allocator) (arrow.RecordBatch, error) {
	t, err := table.FromRecordBatch(rec)
	if err != nil {
		return nil, err
	}
	if c.State() == StateInit {
		if err := c.Compile(t.Schema()); err != nil {
			return nil, err
		}
	}
	out, err := c.Process(t)
	if err != nil {
		return nil, err
	}
	return out.ToRecordBatch(mem)
}
