package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phio/internal/contract"
	"phio/internal/extract"
)

var (
	probeInstrument string
	probeOut        string
)

// probeCmd extracts a contract and writes the canonical JSON.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Extract an instrument's structural contract",
	Long: `Statically extracts the CLI surface, invariants and metadata of a
Python instrument and writes the canonical contract JSON. No code is
executed; extraction is pure parsing.

Example:
  phio probe --instrument tools/probe.py --out probe.contract.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		extractor := extract.New(extract.Options{})
		c, err := extractor.ExtractFile(cmd.Context(), probeInstrument)
		if err != nil {
			return err
		}
		data, err := contract.Encode(c)
		if err != nil {
			return err
		}

		if probeOut == "" || probeOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(probeOut, data, 0644); err != nil {
			return fmt.Errorf("failed to write contract: %w", err)
		}
		logger.Info("contract written",
			zap.String("instrument", probeInstrument),
			zap.String("out", probeOut),
			zap.String("hash", c.Instrument.Hash))
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeInstrument, "instrument", "i", "", "Instrument source file (required)")
	probeCmd.Flags().StringVarP(&probeOut, "out", "o", "", "Output path for contract JSON (default: stdout)")
	probeCmd.MarkFlagRequired("instrument")
}
