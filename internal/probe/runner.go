// Package probe orchestrates a full validation run: extract the current
// contract, diff it against the stored baseline, run the warning
// battery, and record the outcome in the history ledger.
package probe

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"phio/internal/baseline"
	"phio/internal/contract"
	"phio/internal/diff"
	"phio/internal/extract"
	"phio/internal/lint"
	"phio/internal/logging"
)

// Verdict values recorded per run.
const (
	VerdictPass       = "pass"
	VerdictBreaking   = "breaking"
	VerdictGateFailed = "gate_failed"
)

// Result is the outcome of validating one instrument.
type Result struct {
	Instrument string
	Contract   *contract.Contract
	Changes    []contract.Change
	Summary    diff.Summary
	Warnings   []contract.Warning
	GateReason string
	Verdict    string
}

// Passed reports whether the run is clean enough to merge.
func (r *Result) Passed() bool {
	return r.Verdict == VerdictPass
}

// Options configures a Runner.
type Options struct {
	RenameSimilarity float64
	Policy           *lint.Policy
	History          *baseline.History
	// BaselinePath overrides the default per-instrument baseline
	// location. Only meaningful for single-instrument runs.
	BaselinePath string
}

// Runner wires the extraction, diff and lint stages together.
type Runner struct {
	extractor *extract.Extractor
	differ    *diff.Differ
	policy    *lint.Policy
	history   *baseline.History
	baseline  string
}

// NewRunner builds a runner from options.
func NewRunner(opts Options) *Runner {
	return &Runner{
		extractor: extract.New(extract.Options{}),
		differ:    diff.New(diff.Options{RenameSimilarity: opts.RenameSimilarity}),
		policy:    opts.Policy,
		history:   opts.History,
		baseline:  opts.BaselinePath,
	}
}

// Validate runs the full pipeline for one instrument. Extraction and
// diff failures are returned as errors; breaking changes and gate
// failures are reported through the Result verdict.
func (r *Runner) Validate(ctx context.Context, instrument string) (*Result, error) {
	return r.validate(ctx, r.extractor, instrument)
}

func (r *Runner) validate(ctx context.Context, extractor *extract.Extractor, instrument string) (*Result, error) {
	cur, err := extractor.ExtractFile(ctx, instrument)
	if err != nil {
		return nil, err
	}

	bpath := r.baseline
	if bpath == "" {
		bpath = baseline.DefaultPath(instrument)
	}
	store := baseline.NewStore(bpath)
	base, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("instrument %s: %w", instrument, err)
	}

	changes, err := r.differ.Compare(base, cur)
	if err != nil {
		return nil, err
	}

	warnings := lint.Run(cur, r.policy)
	lint.SortWarnings(warnings)

	res := &Result{
		Instrument: instrument,
		Contract:   cur,
		Changes:    changes,
		Summary:    diff.Summarize(changes),
		Warnings:   warnings,
	}
	res.Verdict = VerdictPass
	if res.Summary.Breaking > 0 {
		res.Verdict = VerdictBreaking
	} else if ok, reason := lint.Gate(warnings, r.policy); !ok {
		res.Verdict = VerdictGateFailed
		res.GateReason = reason
	}

	r.record(res)
	logging.Probe("validate: %s -> %s (%d breaking, %d non-breaking, %d informational, %d warnings)",
		instrument, res.Verdict, res.Summary.Breaking, res.Summary.NonBreaking,
		res.Summary.Informational, len(warnings))
	return res, nil
}

// ValidateDir validates every .py instrument under dir, up to parallel
// instruments at a time. Results come back sorted by instrument path.
// The first hard error (extraction, missing baseline, malformed
// contract) aborts the batch.
func (r *Runner) ValidateDir(ctx context.Context, dir string, parallel int) ([]*Result, error) {
	instruments, err := findInstruments(dir)
	if err != nil {
		return nil, err
	}
	if parallel < 1 {
		parallel = 1
	}

	results := make([]*Result, len(instruments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, inst := range instruments {
		i, inst := i, inst
		g.Go(func() error {
			// The C parser inside an Extractor is not safe for
			// concurrent parses; each goroutine gets its own.
			res, err := r.validate(gctx, extract.New(extract.Options{}), inst)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) record(res *Result) {
	if r.history == nil {
		return
	}
	run := &baseline.Run{
		InstrumentPath: res.Instrument,
		InstrumentHash: res.Contract.Instrument.Hash,
		Breaking:       res.Summary.Breaking,
		NonBreaking:    res.Summary.NonBreaking,
		Informational:  res.Summary.Informational,
		Warnings:       len(res.Warnings),
		Verdict:        res.Verdict,
	}
	if err := r.history.RecordRun(run); err != nil {
		logging.Probe("validate: failed to record run for %s: %v", res.Instrument, err)
	}
}

// findInstruments lists .py files under dir, skipping hidden
// directories like .phio.
func findInstruments(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".py") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
