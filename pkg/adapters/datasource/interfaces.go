// Package datasource defines the execution engine's adapter contract and
// the connection manager that owns live database handles. Engine-specific
// implementations live in subpackages and self-register at init time, so
// callers stay engine-agnostic.
package datasource

import (
	"context"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// Adapter is the common contract every database engine implements. An
// adapter owns exactly one live connection (or pool) and must be closed
// when done. Implementations must be safe for concurrent Execute calls.
type Adapter interface {
	// Connect opens the underlying connection. Explicit and observable: it
	// may be slow and it may fail. Calling Connect on an already connected
	// adapter is a no-op.
	Connect(ctx context.Context) error

	// Execute runs a read-only query and returns normalized results. The
	// request's effective limit is always enforced, server-side where the
	// engine supports it.
	Execute(ctx context.Context, req *models.ExecutionRequest) (*models.ResultSet, error)

	// IntrospectSchema reads table and column metadata. Partial results are
	// acceptable: a table whose columns cannot be read is reported with an
	// empty column list rather than failing the whole call.
	IntrospectSchema(ctx context.Context) (*models.SchemaDescriptor, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the connection. Idempotent.
	Close() error
}

// Factory builds an unconnected adapter for a profile.
type Factory func(profile *models.ConnectionProfile, logger *zap.Logger) (Adapter, error)
