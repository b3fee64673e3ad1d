package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phio/internal/baseline"
	"phio/internal/extract"
)

var (
	baselineInstrument string
	baselineOut        string
	baselineForce      bool
)

// baselineCmd is the parent command for baseline operations.
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage accepted contract baselines",
}

// baselineGenerateCmd writes a fresh baseline with explicit intent.
var baselineGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Extract and store the accepted baseline for an instrument",
	Long: `Extracts the instrument's current contract and stores it as the
accepted baseline. An existing baseline is never overwritten unless
--force is given.

Example:
  phio baseline generate --instrument tools/probe.py --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		extractor := extract.New(extract.Options{})
		c, err := extractor.ExtractFile(cmd.Context(), baselineInstrument)
		if err != nil {
			return err
		}

		path := baselineOut
		if path == "" {
			path = baseline.DefaultPath(baselineInstrument)
		}
		store := baseline.NewStore(path)
		if err := store.Generate(c, baselineForce); err != nil {
			if errors.Is(err, baseline.ErrBaselineExists) {
				return fmt.Errorf("%w (%s)", err, path)
			}
			return err
		}
		logger.Info("baseline generated",
			zap.String("instrument", baselineInstrument),
			zap.String("baseline", path))
		fmt.Printf("baseline written: %s\n", path)
		return nil
	},
}

func init() {
	baselineGenerateCmd.Flags().StringVarP(&baselineInstrument, "instrument", "i", "", "Instrument source file (required)")
	baselineGenerateCmd.Flags().StringVarP(&baselineOut, "baseline", "b", "", "Baseline path (default: .phio/baselines/<name>.json beside the instrument)")
	baselineGenerateCmd.Flags().BoolVarP(&baselineForce, "force", "f", false, "Overwrite an existing baseline")
	baselineGenerateCmd.MarkFlagRequired("instrument")

	baselineCmd.AddCommand(baselineGenerateCmd)
}
