// Package daemon provides the lead intake daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehomes/lead-intake/internal/cli"
	"github.com/forgehomes/lead-intake/internal/config"
	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/crm"
	"github.com/forgehomes/lead-intake/internal/estimate"
	"github.com/forgehomes/lead-intake/internal/intake"
	"github.com/forgehomes/lead-intake/internal/store"
	"github.com/forgehomes/lead-intake/internal/store/firestore"
	"github.com/forgehomes/lead-intake/internal/store/postgres"
	"github.com/forgehomes/lead-intake/internal/webservice"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *webservice.Server

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	Daemon   daemonConfig
	CRM      crmConfig
	Estimate estimateConfig
	Store    storeConfig
}

type daemonConfig struct {
	webservice.StaticConfig `mapstructure:",squash" yaml:",inline"`

	// MappingPath is the JSON contact mapping file, watched for changes. Empty uses the default mapping.
	MappingPath string
}

type crmConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type estimateConfig struct {
	BaseURL string
	// APIKey enables price estimates when set.
	APIKey  string
	Model   string
	Timeout time.Duration
}

type storeConfig struct {
	// Backend is one of none, firestore or postgres.
	Backend string
	// Collection is the Firestore collection or PostgreSQL table leads are archived in.
	Collection string

	Firestore firestore.Credentials
	Postgres  postgres.Config
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Real estate lead intake service",
		Long:          "Lead intake service accepting property lead forms, estimating their price, archiving them and creating CRM contacts.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "daemon", a.config.Daemon, "store", a.config.Store.Backend)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	installMigrateCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	// HUBSPOT_API_KEY is accepted as a fallback for existing deployments.
	if err := cli.BindEnvFallback(constants.CmdName, a.viper, "crm.token", "HUBSPOT_API_KEY"); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	defaultConf := webservice.StaticConfig{
		ReadTimeout:    5 * time.Second,
		MaxHeaderBytes: 1 << 13, // 8 KB
		MaxUploadBytes: 1 << 16, // 64 KB

		ListenPort:  8080,
		MetricsPort: 2112,
	}

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.Daemon.MappingPath, "mapping-config", "", "path to the JSON contact mapping file")

	cmd.Flags().DurationVar(&app.config.Daemon.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.WriteTimeout, "write-timeout", defaultConf.WriteTimeout, "write timeout for HTTP server, 0 for none")
	cmd.Flags().DurationVar(&app.config.Daemon.RequestTimeout, "request-timeout", defaultConf.RequestTimeout, "request timeout for HTTP server, 0 to disable")
	cmd.Flags().IntVar(&app.config.Daemon.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxUploadBytes, "max-upload-bytes", defaultConf.MaxUploadBytes, "maximum lead body size for HTTP server")

	cmd.Flags().StringVar(&app.config.Daemon.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&app.config.Daemon.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on")

	cmd.Flags().StringVar(&app.config.Daemon.MetricsHost, "metrics-host", defaultConf.MetricsHost, "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.Daemon.MetricsPort, "metrics-port", defaultConf.MetricsPort, "port for the metrics endpoint")

	// Upstream flags. Secrets are only read from the configuration file or the environment.
	cmd.Flags().StringVar(&app.config.CRM.BaseURL, "crm-url", constants.DefaultCRMBaseURL, "CRM API root URL")
	cmd.Flags().DurationVar(&app.config.CRM.Timeout, "crm-timeout", 0, "timeout of CRM calls, 0 for none")
	cmd.Flags().StringVar(&app.config.Estimate.BaseURL, "estimate-url", constants.DefaultEstimateBaseURL, "AI provider API root URL")
	cmd.Flags().StringVar(&app.config.Estimate.Model, "estimate-model", constants.DefaultEstimateModel, "model asked for price estimates")
	cmd.Flags().DurationVar(&app.config.Estimate.Timeout, "estimate-timeout", 0, "timeout of AI provider calls, 0 for none")

	// Store flags
	cmd.Flags().StringVar(&app.config.Store.Backend, "store", store.BackendFirestore,
		fmt.Sprintf("lead archive backend: %s, %s or %s", store.BackendNone, store.BackendFirestore, store.BackendPostgres))
	cmd.Flags().StringVar(&app.config.Store.Collection, "store-collection", constants.DefaultLeadsCollection, "collection or table leads are archived in")
	cmd.Flags().StringVar(&app.config.Store.Firestore.ProjectID, "firestore-project", "", "Firestore project id")
	addDBFlags(cmd, &app.config.Store.Postgres)

	if err := cmd.MarkFlagFilename("mapping-config", "json"); err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark mapping-config flag as filename: %v", err))
	}
}

func addDBFlags(cmd *cobra.Command, config *postgres.Config) {
	cmd.PersistentFlags().StringVar(&config.Host, "db-host", "", "database host")
	cmd.PersistentFlags().IntVar(&config.Port, "db-port", 5432, "database port")
	cmd.PersistentFlags().StringVar(&config.User, "db-user", "", "database user")
	cmd.PersistentFlags().StringVar(&config.Password, "db-password", "", "database password")
	cmd.PersistentFlags().StringVar(&config.DBName, "db-name", "", "database name")
	cmd.PersistentFlags().StringVar(&config.SSLMode, "db-sslmode", "", "database SSL mode")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	st, err := newStore(a.config.Store)
	if err != nil {
		close(a.ready)
		return err
	}
	if st != nil {
		defer func() {
			if cErr := st.Close(); cErr != nil {
				slog.Warn("Failed to close lead store", "err", cErr)
			}
		}()
	}

	a.daemon, err = a.newServer(st)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}

func (a *App) newServer(st store.Store) (*webservice.Server, error) {
	mappingPath := a.config.Daemon.MappingPath
	if mappingPath != "" {
		var err error
		if mappingPath, err = filepath.Abs(mappingPath); err != nil {
			return nil, fmt.Errorf("failed to get absolute path for mapping file: %v", err)
		}
	}
	cm := config.New(mappingPath)

	if a.config.CRM.Token == "" {
		return nil, errors.New("no CRM token configured")
	}
	crmClient := crm.NewClient(a.config.CRM.Token,
		crm.WithBaseURL(a.config.CRM.BaseURL),
		crm.WithTimeout(a.config.CRM.Timeout))

	registry := webservice.NewRegistry()
	opts := []intake.Options{
		intake.WithRegistry(registry),
		intake.WithMapping(cm),
	}
	if st != nil {
		opts = append(opts, intake.WithStore(st))
	}
	if a.config.Estimate.APIKey != "" {
		opts = append(opts, intake.WithEstimator(estimate.NewClient(a.config.Estimate.APIKey,
			estimate.WithBaseURL(a.config.Estimate.BaseURL),
			estimate.WithModel(a.config.Estimate.Model),
			estimate.WithTimeout(a.config.Estimate.Timeout))))
	} else {
		slog.Warn("No AI provider key configured, leads will not be estimated")
	}

	p, err := intake.New(crmClient, opts...)
	if err != nil {
		return nil, err
	}

	return webservice.New(context.Background(), cm, p, a.config.Daemon.StaticConfig, webservice.WithRegistry(registry))
}

// newStore returns the configured lead archive, or nil when leads are not archived.
func newStore(c storeConfig) (store.Store, error) {
	switch c.Backend {
	case store.BackendNone:
		slog.Warn("No lead store configured, leads will not be archived")
		return nil, nil
	case store.BackendFirestore:
		return firestore.New(firestore.Config{Credentials: c.Firestore, Collection: c.Collection}), nil
	case store.BackendPostgres:
		return postgres.New(c.Postgres, postgres.WithTable(c.Collection)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}
