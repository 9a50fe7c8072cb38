package sqlcalc

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/sqlcalc/calc"
	"github.com/hugr-lab/sqlcalc/internal/logging"
	"github.com/hugr-lab/sqlcalc/remote"
	"github.com/hugr-lab/sqlcalc/table"
)

// Runtime creates Calcs and remote requests sharing one configuration.
// A Runtime is safe for concurrent use; the Calcs it returns are not.
type Runtime struct {
	config    Config
	allocator memory.Allocator
	logger    *slog.Logger
}

// New validates config and returns a Runtime.
func New(config Config) (*Runtime, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	logger := config.Logger
	if logger == nil && config.LogLevel != nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	logger = logging.Default(logger)

	logger.Debug("sqlcalc runtime created",
		"remote_auth", config.RemoteAuth != nil,
		"compress_remote", config.CompressRemote,
	)

	return &Runtime{config: config, allocator: allocator, logger: logger}, nil
}

// validateConfig checks that Config fields are valid.
func validateConfig(config Config) error {
	if config.RemoteTimeoutMs < 0 {
		return fmt.Errorf("remote timeout must not be negative")
	}
	if a := config.RemoteAuth; a != nil && (a.Token == "" || a.Key == "") {
		return fmt.Errorf("remote auth needs both token and key")
	}
	return nil
}

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger { return r.logger }

func (r *Runtime) options() calc.Options {
	return calc.Options{Logger: r.logger}
}

// NewCalc returns a Calc for param.
func (r *Runtime) NewCalc(param calc.InitParam) (*calc.Calc, error) {
	return calc.New(param, r.options())
}

// DecodeCalc decodes a JSON or MessagePack parameter document and returns a
// Calc for it.
func (r *Runtime) DecodeCalc(data []byte) (*calc.Calc, error) {
	param, err := calc.DecodeInitParam(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return r.NewCalc(param)
}

// RunBatches processes batches concurrently, one Calc per batch.
func (r *Runtime) RunBatches(ctx context.Context, param calc.InitParam, batches []*table.Table) ([]*table.Table, error) {
	return calc.RunBatches(ctx, calc.NewFactory(param, r.options()), batches)
}

// ProcessRecord filters and projects one Arrow batch with a fresh Calc. The
// result is allocated from the runtime allocator; the caller releases it.
func (r *Runtime) ProcessRecord(param calc.InitParam, rec arrow.RecordBatch) (arrow.RecordBatch, error) {
	c, err := r.NewCalc(param)
	if err != nil {
		return nil, err
	}
	return calc.ProcessRecord(c, rec, r.allocator)
}

// NewRemoteQuery renders q with keys and packs it into a transport request
// using the runtime's auth, timeout and compression settings.
func (r *Runtime) NewRemoteQuery(q remote.Query, keys []string) (*remote.Request, error) {
	stmt, err := q.Bind(keys)
	if err != nil {
		return nil, err
	}
	return remote.NewRequest(stmt, remote.RequestOptions{
		TimeoutMs: r.config.RemoteTimeoutMs,
		Auth:      r.config.RemoteAuth,
		Compress:  r.config.CompressRemote,
	})
}
