package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"phio/internal/baseline"
)

var (
	historyInstrument string
	historyLimit      int
)

// historyCmd lists recent validation runs from the SQLite ledger.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent validation runs",
	Long: `Lists recent validation runs recorded in the workspace history
ledger (.phio/history.db), newest first.

Example:
  phio history --instrument tools/probe.py --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := baseline.OpenHistory(filepath.Join(workspace, ".phio"))
		if err != nil {
			return err
		}
		defer h.Close()

		runs, err := h.RecentRuns(historyInstrument, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-11s %s  breaking=%d non-breaking=%d informational=%d warnings=%d\n",
				r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				r.Verdict, r.InstrumentPath,
				r.Breaking, r.NonBreaking, r.Informational, r.Warnings)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyInstrument, "instrument", "i", "", "Filter by instrument path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max runs to show")
}
