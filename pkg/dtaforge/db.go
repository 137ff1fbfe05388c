package dtaforge

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Row represents a single database row result.
type Row interface {
	// Scan reads the values from the row into dest values.
	Scan(dest ...any) error
}

// PooledConnection represents a dedicated connection acquired from a pool.
type PooledConnection interface {
	// Exec executes a query on this specific connection.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Release returns the connection to the pool.
	Release()
}

// DBConnection abstracts the database operations the postgres sink
// performs. This decouples sink logic from pgx-specific pool types and
// enables mock connections in tests.
type DBConnection interface {
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Acquire obtains a dedicated connection from the pool.
	Acquire(ctx context.Context) (PooledConnection, error)
}
