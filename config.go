package sqlcalc

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/sqlcalc/remote"
)

// Config contains configuration for a Runtime.
type Config struct {
	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: If nil, logs are discarded unless LogLevel is set.
	Logger *slog.Logger

	// LogLevel sets the logging level of a stderr text logger.
	// OPTIONAL: Ignored when Logger is provided.
	LogLevel *slog.Level

	// RemoteAuth signs remote requests.
	// OPTIONAL: If nil, remote requests are unsigned.
	// When set, Token and Key MUST NOT be empty.
	RemoteAuth *remote.Auth

	// RemoteTimeoutMs is forwarded to the remote engine.
	// OPTIONAL: If 0, the remote default applies. MUST NOT be negative.
	RemoteTimeoutMs int

	// CompressRemote zstd-compresses remote request bodies.
	// OPTIONAL: Defaults to false.
	CompressRemote bool
}

// Standard errors returned by the sqlcalc package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidParameters indicates a plan-node parameter document could not
	// be decoded.
	ErrInvalidParameters = errors.New("invalid calc parameters")
)
