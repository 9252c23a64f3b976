package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/config"
	logpkg "github.com/kailas-cloud/geosuggest/internal/logger"
	"github.com/kailas-cloud/geosuggest/internal/version"
)

var (
	flagEnv      string
	flagConfig   string
	flagLogLevel string
	flagData     string
)

var rootCmd = &cobra.Command{
	Use:           "geosuggest",
	Short:         "geosuggest: as-you-type search over map layer attributes",
	Long:          "Replicates configured layer fields into an in-memory index and serves ranked suggestions, with a geocoder-backed location mode.",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck // cobra prints the error
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagEnv, "env", config.GetEnv(), "config environment, loads config/<env>.yaml")
	pf.StringVarP(&flagConfig, "config", "c", "", "config file path (overrides --env lookup)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level override: debug, info, warn, error")
	pf.StringVar(&flagData, "data", "", "JSON dataset served as in-memory layers")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(layersCmd)
}

// loadConfig reads the config selected by --config or --env.
func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		cfg, err := config.LoadFile(flagConfig)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(flagEnv)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger for env. Interactive commands pass "cli".
func newLogger(env string, cfg config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if env == "cli" && flagLogLevel == "" {
		level = ""
	}
	l, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return l, nil
}
