package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phio/internal/contract"
	"phio/internal/lint"
	"phio/internal/render"
)

var (
	warnContract    string
	warnPolicy      string
	warnMaxWarnings int
	warnJSON        bool
)

// warnCmd runs the warning validator over an existing contract JSON.
var warnCmd = &cobra.Command{
	Use:   "warn",
	Short: "Run the warning validator over a contract file",
	Long: `Runs the structural warning battery over an already-extracted
contract JSON and applies the gate. Exits nonzero when the gate fails.

Example:
  phio warn --contract probe.contract.json --max-warnings 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(warnContract)
		if err != nil {
			return fmt.Errorf("failed to read contract: %w", err)
		}
		c, err := contract.Decode(data)
		if err != nil {
			return err
		}

		policy := lint.DefaultPolicy()
		if warnPolicy != "" {
			policy, err = lint.LoadPolicy(warnPolicy)
			if err != nil {
				return fmt.Errorf("failed to load policy %s: %w", warnPolicy, err)
			}
		}
		if warnMaxWarnings > 0 {
			policy.MaxWarnings = warnMaxWarnings
		}

		warnings := lint.Run(c, policy)
		lint.SortWarnings(warnings)

		if warnJSON {
			out, err := json.MarshalIndent(warnings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		} else {
			fmt.Print(render.New(plain).Warnings(warnings))
		}

		if ok, reason := lint.Gate(warnings, policy); !ok {
			fmt.Fprintf(os.Stderr, "gate: %s\n", reason)
			return errGateFailed
		}
		return nil
	},
}

func init() {
	warnCmd.Flags().StringVarP(&warnContract, "contract", "c", "", "Contract JSON file (required)")
	warnCmd.Flags().StringVarP(&warnPolicy, "policy", "p", "", "Warning gate policy YAML")
	warnCmd.Flags().IntVar(&warnMaxWarnings, "max-warnings", 0, "Override the gate threshold")
	warnCmd.Flags().BoolVar(&warnJSON, "json", false, "Emit warnings as JSON")
	warnCmd.MarkFlagRequired("contract")
}
