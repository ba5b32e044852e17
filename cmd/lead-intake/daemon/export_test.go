package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/forgehomes/lead-intake/internal/config"
	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/store"
)

type (
	AppConfig = appConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// NewForTests creates a new App instance for testing purposes.
//
// The generated configuration file always wins over flag defaults, so unset values are filled with test friendly ones.
func NewForTests(t *testing.T, conf *AppConfig, mapping *config.Conf, args ...string) *App {
	t.Helper()

	if conf == nil {
		conf = &AppConfig{}
	}
	if mapping != nil && conf.Daemon.MappingPath == "" {
		conf.Daemon.MappingPath = GenerateTestMapping(t, mapping)
	}
	if conf.Daemon.ListenHost == "" {
		conf.Daemon.ListenHost = "127.0.0.1"
	}
	if conf.Daemon.MetricsHost == "" {
		conf.Daemon.MetricsHost = "127.0.0.1"
	}
	if conf.CRM.BaseURL == "" {
		conf.CRM.BaseURL = constants.DefaultCRMBaseURL
	}
	if conf.CRM.Token == "" {
		conf.CRM.Token = "test-token"
	}
	if conf.CRM.Timeout == 0 {
		conf.CRM.Timeout = 5 * time.Second
	}
	if conf.Store.Backend == "" {
		conf.Store.Backend = store.BackendNone
	}

	p := GenerateTestConfig(t, conf)
	argsWithConf := []string{"--config", p}
	argsWithConf = append(argsWithConf, args...)

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")
	a.cmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestMapping generates a temporary contact mapping file for testing.
func GenerateTestMapping(t *testing.T, mapping *config.Conf) string {
	t.Helper()

	d, err := json.Marshal(mapping)
	require.NoError(t, err, "Setup: failed to marshal mapping config for tests")
	mappingPath := filepath.Join(t.TempDir(), "mapping-test.json")
	require.NoError(t, os.WriteFile(mappingPath, d, 0600), "Setup: failed to write mapping config for tests")

	return mappingPath
}

// GenerateTestConfig generates a temporary config file for testing.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	var conf appConfig

	if origConf != nil {
		conf = *origConf
	}

	if conf.Verbosity == 0 {
		conf.Verbosity = 2
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	return confPath
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetSilenceUsage set the SilenceUsage flag on root command for tests.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
