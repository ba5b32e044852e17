// Package postgres archives leads as rows of a PostgreSQL table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/lead"
	"github.com/forgehomes/lead-intake/internal/store"
)

// Config holds the configuration for connecting to the PostgreSQL database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Store appends leads to the leads table.
//
// The connection pool is created and pinged on the first Add, then reused.
type Store struct {
	table string
	pool  *store.Lazy[dbPool]
}

type options struct {
	newPool func(ctx context.Context, dsn string) (dbPool, error)
	table   string
}

// Options represents an optional function to override Store default values.
type Options func(*options)

// WithTable overrides the table leads are inserted into.
func WithTable(table string) Options {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// New returns a PostgreSQL store. No connection is made until the first Add.
func New(cfg Config, args ...Options) *Store {
	opts := options{
		newPool: func(ctx context.Context, dsn string) (dbPool, error) {
			return pgxpool.New(ctx, dsn)
		},
		table: constants.DefaultLeadsCollection,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Store{
		table: pgx.Identifier{opts.table}.Sanitize(),
		pool: store.NewLazy(func(ctx context.Context) (dbPool, error) {
			return connect(ctx, cfg, opts.newPool)
		}, closePool),
	}
}

func connect(ctx context.Context, cfg Config, newPool func(context.Context, string) (dbPool, error)) (dbPool, error) {
	pool, err := newPool(ctx, cfg.URI("postgres"))
	if err != nil {
		return nil, fmt.Errorf("unable to create database connection pool: %w", err)
	}

	slog.Debug("Testing database connection", "host", cfg.Host, "port", cfg.Port)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}

	slog.Info("Successfully pinged PostgreSQL database", "host", cfg.Host, "port", cfg.Port)
	return pool, nil
}

// Add inserts the record and returns its generated id.
func (s *Store) Add(ctx context.Context, r lead.Record) (string, error) {
	pool, err := s.pool.Get(ctx)
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal(r.Fields())
	if err != nil {
		return "", fmt.Errorf("could not encode lead: %v", err)
	}

	var estimated, low, high *float64
	if r.Estimate != nil {
		estimated, low, high = &r.Estimate.EstimatedValue, &r.Estimate.LowValue, &r.Estimate.HighValue
	}

	id := uuid.NewString()
	query := fmt.Sprintf(
		`INSERT INTO %s (
			id,
			created_at,
			email,
			lead,
			estimated_value,
			low_value,
			high_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.table,
	)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, query,
		id,                   // id
		r.CreatedAt,          // created_at
		r.Submission.Email,   // email
		json.RawMessage(doc), // lead
		estimated,            // estimated_value
		low,                  // low_value
		high,                 // high_value
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("insert canceled: %v", err)
		}
		return "", fmt.Errorf("failed to insert lead: %v", err)
	}
	return id, nil
}

// Close closes the connection pool if it was opened.
func (s *Store) Close() error {
	return s.pool.Close()
}

// closePool closes the pool, giving up after 10 seconds.
func closePool(pool dbPool) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Close()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}

// URI is a helper method that returns a connection URI for PostgreSQL.
// It does not check the validity of the configuration values.
//
// Security warning: the returned string may include credentials.
func (c Config) URI(scheme string) string {
	host := c.Host
	if c.Port != 0 {
		host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}

	u := &url.URL{
		Scheme: scheme,
		User:   user,
		Host:   host,
		Path:   c.DBName,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
