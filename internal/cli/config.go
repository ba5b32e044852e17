// Package cli provides utility functions for command line interface applications.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// InitViperConfig reads the configuration file of a command and binds its prefixed environment variables.
//
// The file is the one passed with --config, or <cmdName>.yaml searched in the working directory,
// /etc/<cmdName>, /usr/local/etc/<cmdName> and the executable directory. A missing file is not an error.
func InitViperConfig(cmdName string, cmd *cobra.Command, vip *viper.Viper) error {
	if v, err := cmd.Flags().GetString("config"); err == nil && v != "" {
		vip.SetConfigFile(v)
	} else {
		vip.SetConfigName(cmdName)
		for _, dir := range configDirs(cmdName) {
			vip.AddConfigPath(dir)
		}
	}

	if err := readConfigFile(vip); err != nil {
		return err
	}

	vip.SetEnvPrefix(cmdName)
	vip.AutomaticEnv()
	return bindPrefixedEnv(vip, EnvPrefix(cmdName), os.Environ())
}

// EnvPrefix returns the prefix of the environment variables read for cmdName, such as LEAD_INTAKE_.
func EnvPrefix(cmdName string) string {
	return strings.ToUpper(strings.ReplaceAll(cmdName, "-", "_")) + "_"
}

// BindEnvFallback binds key to its prefixed environment variable first, then to each of the fallback
// variables in order. The first one set wins.
func BindEnvFallback(cmdName string, vip *viper.Viper, key string, fallbacks ...string) error {
	names := append([]string{key, EnvPrefix(cmdName) + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, fallbacks...)
	if err := vip.BindEnv(names...); err != nil {
		return fmt.Errorf("could not bind environment variables for %q: %w", key, err)
	}
	return nil
}

// InstallConfigFlag adds a config flag to the command.
func InstallConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().String("config", "", "use a specific configuration file")
}

func configDirs(cmdName string) []string {
	dirs := []string{".", "/etc/" + cmdName, "/usr/local/etc/" + cmdName}
	binPath, err := os.Executable()
	if err != nil {
		slog.Warn("Failed to get current executable path, not adding it as a config dir", "error", err)
		return dirs
	}
	return append(dirs, filepath.Dir(binPath))
}

func readConfigFile(vip *viper.Viper) error {
	err := vip.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		slog.Info("Using configuration file", "file", vip.ConfigFileUsed())
	case errors.As(err, &notFound):
		slog.Info("No configuration file, using defaults, environment and flags only", "error", err)
	default:
		return fmt.Errorf("invalid configuration file: %w", err)
	}
	return nil
}

// bindPrefixedEnv binds every variable of environ carrying prefix, so that viper.Unmarshal sees it.
// AutomaticEnv alone only applies to keys viper already knows, see https://github.com/spf13/viper/pull/1429.
// PREFIX_CRM_TOKEN binds crm.token.
func bindPrefixedEnv(vip *viper.Viper, prefix string, environ []string) error {
	for _, e := range environ {
		name, _, found := strings.Cut(e, "=")
		if !found || !strings.HasPrefix(name, prefix) {
			continue
		}

		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", "."))
		if err := vip.BindEnv(key, name); err != nil {
			return fmt.Errorf("could not bind environment variable %s: %w", name, err)
		}
	}
	return nil
}
