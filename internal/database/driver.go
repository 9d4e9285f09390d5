package database

import "context"

// Driver defines the interface for query-module execution.
// All implementations must be safe for concurrent use.
type Driver interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, dsn string) error

	// Close closes the database connection.
	Close() error

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// Execute runs every statement of b in order within one session and
	// reports the final statement's result. The session is released on
	// every return path.
	Execute(ctx context.Context, b *Batch) (*QueryResult, error)

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}
