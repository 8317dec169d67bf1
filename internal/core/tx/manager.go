// Package tx provides transaction management abstractions.
// Domain code and the unit of work depend on these interfaces; the pgx
// implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn in one transaction: committed when fn returns nil,
// rolled back otherwise. A call made while ctx already carries a
// transaction joins it instead of opening a new one.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions for multi-statement reads.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
