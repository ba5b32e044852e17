package postgres

import "context"

type DBPool = dbPool

// WithNewPool overrides how the connection pool is created.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = newPool
	}
}
