package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phio/internal/baseline"
	"phio/internal/lint"
	"phio/internal/probe"
	"phio/internal/render"
)

var (
	validateInstrument string
	validateBaseline   string
	validatePolicy     string
	validateDir        string
	validateParallel   int
)

// validateCmd runs the full extract/diff/lint pipeline and gates.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an instrument against its accepted baseline",
	Long: `Extracts the current contract, diffs it against the stored baseline,
runs the warning battery, and exits nonzero on a breaking change or a
failed warning gate.

Examples:
  phio validate --instrument tools/probe.py
  phio validate --dir tools/ --parallel 4
  phio validate --instrument tools/probe.py --policy .phio/policy.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (validateInstrument == "") == (validateDir == "") {
			return fmt.Errorf("exactly one of --instrument or --dir is required")
		}

		policy, err := loadGatePolicy()
		if err != nil {
			return err
		}

		history, err := baseline.OpenHistory(filepath.Join(workspace, ".phio"))
		if err != nil {
			logger.Warn("history ledger unavailable", zap.Error(err))
		} else {
			defer history.Close()
		}

		runner := probe.NewRunner(probe.Options{
			RenameSimilarity: cfg.RenameSimilarity,
			Policy:           policy,
			History:          history,
			BaselinePath:     validateBaseline,
		})
		r := render.New(plain)

		if validateDir != "" {
			results, err := runner.ValidateDir(cmd.Context(), validateDir, validateParallel)
			if err != nil {
				return err
			}
			failed := false
			for _, res := range results {
				fmt.Printf("== %s ==\n", res.Instrument)
				printResult(r, res)
				if !res.Passed() {
					failed = true
				}
			}
			if failed {
				return errGateFailed
			}
			return nil
		}

		res, err := runner.Validate(cmd.Context(), validateInstrument)
		if err != nil {
			return err
		}
		printResult(r, res)
		if !res.Passed() {
			return errGateFailed
		}
		return nil
	},
}

func printResult(r *render.Renderer, res *probe.Result) {
	fmt.Print(r.Changes(res.Changes))
	fmt.Print(r.Warnings(res.Warnings))
	fmt.Print(r.Summary(res.Summary, res.Verdict))
	if res.GateReason != "" {
		fmt.Printf("gate: %s\n", res.GateReason)
	}
}

func loadGatePolicy() (*lint.Policy, error) {
	if validatePolicy != "" {
		p, err := lint.LoadPolicy(validatePolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy %s: %w", validatePolicy, err)
		}
		return p, nil
	}
	p := lint.DefaultPolicy()
	p.MaxWarnings = cfg.MaxWarnings
	return p, nil
}

func init() {
	validateCmd.Flags().StringVarP(&validateInstrument, "instrument", "i", "", "Instrument source file")
	validateCmd.Flags().StringVarP(&validateBaseline, "baseline", "b", "", "Baseline path (default: .phio/baselines/<name>.json beside the instrument)")
	validateCmd.Flags().StringVarP(&validatePolicy, "policy", "p", "", "Warning gate policy YAML")
	validateCmd.Flags().StringVarP(&validateDir, "dir", "d", "", "Validate every instrument under a directory")
	validateCmd.Flags().IntVar(&validateParallel, "parallel", 4, "Max instruments validated concurrently with --dir")
}
