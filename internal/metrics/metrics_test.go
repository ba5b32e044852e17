package metrics_test

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/forgehomes/lead-intake/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg     *metrics.Config
		wantErr bool
	}{
		"Default configuration": {},

		"Bad port": {
			cfg:     &metrics.Config{Port: -1},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tc.cfg = initConfig(t, tc.cfg)

			reg := prometheus.NewRegistry()
			promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "lead_intake_test_total", Help: "Test counter."}).Inc()
			server := metrics.New(*tc.cfg, reg)

			errCh := listenAndServeAsync(t, server)
			defer server.Close()

			select {
			case err := <-errCh:
				if tc.wantErr {
					require.Error(t, err, "Expected ListenAndServe to fail")
					return
				}
				require.Failf(t, "ListenAndServe returned unexpectedly", "Got possible error: %v", err)
			case <-time.After(500 * time.Millisecond):
				require.False(t, tc.wantErr, "Expected ListenAndServe to return an error but it did not")
			}

			statusCode, body, err := sendRequest(t, server, "/metrics")
			require.NoError(t, err, "Expected to successfully send request to metrics endpoint")
			require.Equal(t, http.StatusOK, statusCode, "Expected metrics endpoint to return 200 OK")
			assert.Contains(t, body, "lead_intake_test_total 1", "Expected registered metrics to be exposed")

			statusCode, body, err = sendRequest(t, server, "/healthz")
			require.NoError(t, err, "Expected to successfully send request to health endpoint")
			require.Equal(t, http.StatusOK, statusCode, "Expected health endpoint to return 200 OK")
			assert.Equal(t, "ok\n", body, "Unexpected health body")
		})
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	server := metrics.New(*initConfig(t, nil), prometheus.NewRegistry())

	errCh := listenAndServeAsync(t, server)
	defer server.Close()

	select {
	case err := <-errCh:
		require.Failf(t, "ListenAndServe returned unexpectedly", "Got possible error: %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	statusCode, _, err := sendRequest(t, server, "/metrics")
	require.NoError(t, err, "Expected to successfully send request to metrics endpoint")
	require.Equal(t, http.StatusOK, statusCode, "Expected metrics endpoint to return 200 OK")

	require.NoError(t, server.Shutdown(t.Context()), "Expected Shutdown to succeed")

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, http.ErrServerClosed, "Expected ListenAndServe to return ErrServerClosed after shutdown")
	case <-time.After(time.Second):
		require.Fail(t, "Expected ListenAndServe to return an error after shutdown")
	}

	_, _, err = sendRequest(t, server, "/metrics")
	require.Error(t, err, "Expected error when sending request after shutdown")
}

func TestClose(t *testing.T) {
	t.Parallel()

	server := metrics.New(*initConfig(t, nil), prometheus.NewRegistry())

	errCh := listenAndServeAsync(t, server)
	defer server.Close()

	select {
	case err := <-errCh:
		require.Failf(t, "ListenAndServe returned unexpectedly", "Got possible error: %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	require.NoError(t, server.Close(), "Expected Close to succeed")

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, http.ErrServerClosed, "Expected ListenAndServe to return ErrServerClosed after close")
	case <-time.After(time.Second):
		require.Fail(t, "Expected ListenAndServe to return an error after close")
	}
}

func TestAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg *metrics.Config
	}{
		"Default configuration": {},
		"Returns empty string if server fails to start": {
			cfg: &metrics.Config{Port: -1},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tc.cfg = initConfig(t, tc.cfg)

			server := metrics.New(*tc.cfg, prometheus.NewRegistry())
			require.Empty(t, server.Addr(), "Expected Addr to be empty before ListenAndServe")

			errCh := listenAndServeAsync(t, server)
			defer server.Close()

			select {
			case <-errCh:
				require.Empty(t, server.Addr(), "Expected Addr to be empty if ListenAndServe fails")
				return
			case <-time.After(500 * time.Millisecond):
			}

			require.NotEmpty(t, server.Addr(), "Expected Addr to be set after ListenAndServe")
		})
	}
}

func initConfig(t *testing.T, cfg *metrics.Config) *metrics.Config {
	t.Helper()

	if cfg == nil {
		cfg = &metrics.Config{Host: "127.0.0.1"}
	}

	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 5 * time.Second
	return cfg
}

func listenAndServeAsync(t *testing.T, server *metrics.Server) chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		errCh <- server.ListenAndServe()
	}()
	return errCh
}

func sendRequest(t *testing.T, server *metrics.Server, path string) (int, string, error) {
	t.Helper()

	resp, err := http.Get("http://" + server.Addr() + path)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(b), nil
}
