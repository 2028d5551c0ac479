// Package dialect defines the database abstraction consumed by the
// reference engine: dialect identifiers and the Driver/Tx execution
// contracts over which SQL statements run.
package dialect

import "context"

// Supported dialect identifiers.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard statement execution methods.
// The args parameter is expected to be a []any and v a dialect-specific
// destination (e.g. *sql.Rows or *sql.Result for SQL databases).
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface a database driver must implement to
// back the reference engine.
type Driver interface {
	ExecQuerier

	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)

	// Close closes the underlying connection.
	Close() error

	// Dialect returns the dialect identifier of the driver.
	Dialect() string
}

// Tx is a transactional driver handle.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// NopTx returns a Tx that executes statements through d and ignores
// Commit and Rollback. Useful for drivers without transaction support.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }
