package testutils

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer represents a PostgreSQL container for testing purposes.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string

	User     string
	Password string
	Name     string
	Host     string
	Port     int
}

// StartPostgresContainer starts a PostgreSQL container which is terminated at the end of the test.
// The test is skipped when no container provider is available.
func StartPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	const (
		defaultUser     = "postgres"
		defaultPassword = "postgres"
		defaultName     = "testdb"
	)

	if runtime.GOOS != "linux" {
		t.Skip("Skipping PostgreSQL container test on non-Linux OS")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     defaultUser,
			"POSTGRES_PASSWORD": defaultPassword,
			"POSTGRES_DB":       defaultName,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "Setup: failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "Setup: failed to get container host")

	mapped, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err, "Setup: failed to get mapped port")
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err, "Setup: failed to parse mapped port")

	pc := &PostgresContainer{
		Container: container,
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			defaultUser, defaultPassword, host, port, defaultName),
		User:     defaultUser,
		Password: defaultPassword,
		Name:     defaultName,
		Host:     host,
		Port:     port,
	}
	require.NoError(t, pc.IsReady(t, 5*time.Second, 10), "Setup: database never became ready")
	return pc
}

// IsReady checks if the PostgreSQL database is connectable.
// It will attempt to connect to the database multiple times, each attempt being timeout long at most.
func (pc PostgresContainer) IsReady(t *testing.T, timeout time.Duration, attempts int) error {
	t.Helper()

	config, err := pgx.ParseConfig(pc.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	for i := range attempts {
		ctx, cancel := context.WithTimeout(t.Context(), timeout)
		conn, cErr := pgx.ConnectConfig(ctx, config)
		cancel()

		if cErr != nil {
			err = cErr
			t.Logf("Attempt %d: failed to connect to database: %v", i+1, err)
			time.Sleep(time.Second)
			continue
		}

		ctx, cancel = context.WithTimeout(t.Context(), 2*time.Second)
		defer cancel()
		return conn.Close(ctx)
	}

	return fmt.Errorf("database did not become ready after %d attempts: %v", attempts, err)
}

// QueryRows runs query on the container database and returns every row as a slice of values.
func (pc PostgresContainer) QueryRows(t *testing.T, query string, args ...any) [][]any {
	t.Helper()

	conn, err := pgx.Connect(t.Context(), pc.DSN)
	require.NoError(t, err, "failed to connect to the database")
	defer func() {
		require.NoError(t, conn.Close(t.Context()), "failed to close the database connection")
	}()

	rows, err := conn.Query(t.Context(), query, args...)
	require.NoError(t, err, "failed to execute query")
	defer rows.Close()

	var got [][]any
	for rows.Next() {
		values, err := rows.Values()
		require.NoError(t, err, "failed to read row values")
		got = append(got, values)
	}
	require.NoError(t, rows.Err(), "error occurred during rows iteration")
	return got
}
