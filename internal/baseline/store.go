// Package baseline persists the last-accepted contract per instrument
// and keeps a SQLite ledger of validation runs. The baseline file is the
// only persisted contract state: exactly one active baseline per
// instrument identity, created with explicit generate intent and
// overwritten only by explicit regeneration.
package baseline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"phio/internal/contract"
	"phio/internal/logging"
)

// ErrNoBaseline is returned by Load when no baseline exists yet.
var ErrNoBaseline = errors.New("no baseline for instrument")

// ErrBaselineExists is returned by Generate without force when a
// baseline is already present.
var ErrBaselineExists = errors.New("baseline already exists; regeneration requires explicit force")

// Store manages one baseline file.
type Store struct {
	path string
}

// NewStore creates a store for the given baseline path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the baseline beside the instrument under
// .phio/baselines/<name>.json.
func DefaultPath(instrument string) string {
	dir := filepath.Dir(instrument)
	name := strings.TrimSuffix(filepath.Base(instrument), filepath.Ext(instrument))
	return filepath.Join(dir, ".phio", "baselines", name+".json")
}

// Path returns the baseline file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the stored baseline.
func (s *Store) Load() (*contract.Contract, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBaseline
		}
		return nil, fmt.Errorf("read baseline %s: %w", s.path, err)
	}
	c, err := contract.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("baseline %s: %w", s.path, err)
	}
	return c, nil
}

// Generate writes the baseline with explicit intent. Without force it
// refuses to overwrite an existing baseline; a baseline is never
// replaced implicitly.
func (s *Store) Generate(c *contract.Contract, force bool) error {
	if _, err := os.Stat(s.path); err == nil && !force {
		return ErrBaselineExists
	}
	if err := s.write(c); err != nil {
		return err
	}
	logging.Baseline("baseline written: %s (instrument %s)", s.path, c.Instrument.Path)
	return nil
}

// write persists the canonical encoding as a single atomic step: temp
// file in the target directory, then rename. An interrupted run never
// leaves a partial baseline behind.
func (s *Store) write(c *contract.Contract) error {
	data, err := contract.Encode(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp baseline: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp baseline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp baseline: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename baseline into place: %w", err)
	}
	return nil
}
