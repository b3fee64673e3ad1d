// Package main implements the phio CLI - contract-baseline validation
// for PhiO measurement instruments.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"phio/internal/config"
	"phio/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	plain     bool

	logger *zap.Logger
	cfg    *config.Config
)

// errGateFailed signals a failed validation or warning gate. It carries
// no message of its own; the report has already been printed. Returning
// it (instead of os.Exit) lets deferred cleanup run before the nonzero
// exit.
var errGateFailed = errors.New("validation gate failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "phio",
	Short: "phio - contract-baseline validation for measurement instruments",
	Long: `phio extracts the structural contract of a Python measurement
instrument (CLI surface, invariants, metadata) by static analysis,
persists an accepted baseline, and classifies drift against it as
breaking, non-breaking or informational.

Typical CI flow:

  phio baseline generate --instrument tools/probe.py
  phio validate --instrument tools/probe.py`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			workspace, _ = os.Getwd()
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: cwd)")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Plain output without styling (CI mode)")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(warnCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	err := rootCmd.Execute()

	// Cobra skips PersistentPostRun hooks when RunE errors, so shutdown
	// cleanup lives here.
	logging.CloseAll()
	if logger != nil {
		_ = logger.Sync()
	}

	if err == nil {
		return
	}
	if !errors.Is(err, errGateFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
