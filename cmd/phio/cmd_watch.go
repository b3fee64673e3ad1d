package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"phio/internal/baseline"
	"phio/internal/lint"
	"phio/internal/probe"
	"phio/internal/render"
	"phio/internal/watch"
)

var (
	watchInstrument string
	watchDir        string
)

// watchTarget resolves the watch root and per-event filter. A single
// instrument watches its parent directory and accepts only its own
// path; a directory accepts every instrument under it.
func watchTarget(instrument, dir string) (string, func(string) bool, error) {
	if instrument == "" {
		return dir, func(string) bool { return true }, nil
	}
	abs, err := filepath.Abs(instrument)
	if err != nil {
		return "", nil, err
	}
	accept := func(path string) bool {
		p, err := filepath.Abs(path)
		return err == nil && p == abs
	}
	return filepath.Dir(abs), accept, nil
}

// watchCmd re-validates instruments as they change on disk.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate instruments as they change",
	Long: `Watches a single instrument or a directory tree for edits and
re-runs validation after each save settles. Runs until interrupted.

Examples:
  phio watch --instrument tools/probe.py
  phio watch --dir tools/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := lint.DefaultPolicy()
		policy.MaxWarnings = cfg.MaxWarnings

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
		})
		r := render.New(plain)

		root, accept, err := watchTarget(watchInstrument, watchDir)
		if err != nil {
			return err
		}

		w, err := watch.New(root, func(ctx context.Context, path string) {
			if !accept(path) {
				return
			}
			res, err := runner.Validate(ctx, path)
			if err != nil {
				if errors.Is(err, baseline.ErrNoBaseline) {
					fmt.Printf("== %s ==\nno baseline yet; run 'phio baseline generate'\n", path)
					return
				}
				fmt.Fprintf(os.Stderr, "== %s ==\n%v\n", path, err)
				return
			}
			fmt.Printf("== %s ==\n", path)
			printResult(r, res)
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Printf("watching %s (ctrl-c to stop)\n", root)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchInstrument, "instrument", "i", "", "Single instrument to watch")
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", ".", "Directory tree to watch")
}
