// Package cli implements the yukti command: the HTTP server and local tools.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yukti-backend/config"
	"yukti-backend/logging"
)

type options struct {
	envFile  string
	logLevel string
	timeout  time.Duration
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "yukti",
		Short: "Caregiver health report analysis backend",
		Long: `Yukti analyzes medical documents against a caregiver's risk assessment and
report history, and keeps the patient's medication list and daily logs.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Override ANALYZE_TIMEOUT_SEC")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newScoreCmd())
	root.AddCommand(newAnalyzeCmd(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) load() (config.Config, *zap.Logger, error) {
	cfg := config.Load(o.envFile)
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.timeout > 0 {
		cfg.AnalyzeTimeout = o.timeout
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "yukti-backend")
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
