package sql

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Rows interface {
	// Close closes the rows, making the connection ready for use again. It is safe
	// to call Close after rows is already closed.
	Close()

	Columns() []string

	// Err must only be called after the Rows is closed.
	Err() error

	// Next prepares the next row for reading. It returns true if there is another
	// row and false if no more rows are available or a fatal error has occurred.
	Next() bool

	// Scan reads the values from the current row into dest values positionally.
	Scan(dest ...any) error

	// Values returns the decoded row values.
	Values() ([]any, error)
}

type Store interface {
	Select(ctx context.Context, out any, query string, args pgx.NamedArgs) error
	Query(ctx context.Context, sql string, args pgx.NamedArgs) (Rows, error)
	Get(ctx context.Context, out any, query string, args pgx.NamedArgs) error
	Exec(ctx context.Context, sql string, args pgx.NamedArgs) error
	// ExecAffected is Exec that also reports the number of rows the
	// statement touched; transition statements use it to detect a lost
	// status race.
	ExecAffected(ctx context.Context, sql string, args pgx.NamedArgs) (int64, error)
	Close() error
	Begin(ctx context.Context) (pgx.Tx, error)
}
