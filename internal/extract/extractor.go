// Package extract implements the static contract extractor. It parses an
// instrument's Python source with Tree-sitter and derives the CLI surface
// and declared invariants without ever executing the instrument.
package extract

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"phio/internal/contract"
	"phio/internal/logging"
)

// Version identifies the extractor build in serialized contracts.
const Version = "0.3.0"

// Options tunes an Extractor. Now is the extraction clock; injectable so
// that repeated extraction of an unmodified instrument can be
// byte-identical end to end.
type Options struct {
	Now func() time.Time
}

// Extractor turns instrument source into Contracts. It is pure and
// read-only on the source: cancellable by process termination, no
// blocking I/O beyond reading the source once.
type Extractor struct {
	parser *sitter.Parser
	now    func() time.Time
}

// New creates an Extractor for Python instruments.
func New(opts Options) *Extractor {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{parser: parser, now: now}
}

// ExtractFile reads the instrument source and extracts its contract.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*contract.Contract, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &contract.ExtractionError{Path: path, Reason: err.Error()}
	}
	return e.Extract(ctx, path, src)
}

// Extract parses source bytes and builds the Contract. Unrecognized
// constructs are omitted, never errors; extraction fails only when the
// source does not parse or the entry-point convention (a get_spec()
// function or a SPEC assignment) is entirely absent.
func (e *Extractor) Extract(ctx context.Context, path string, src []byte) (*contract.Contract, error) {
	start := time.Now()

	tree, err := e.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, &contract.ExtractionError{Path: path, Reason: fmt.Sprintf("parse: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &contract.ExtractionError{Path: path, Reason: "syntax error in instrument source"}
	}

	s := newScan(src)
	s.walk(root)

	if !s.entryPoint {
		return nil, &contract.ExtractionError{Path: path, Reason: "entry-point convention absent: no get_spec() function or SPEC assignment"}
	}

	c := &contract.Contract{
		Instrument: contract.Identity{
			Path: path,
			Hash: fmt.Sprintf("sha256:%x", sha256.Sum256(src)),
		},
		CLISurface:       s.surface(),
		Invariants:       s.invariants,
		ExtractedAt:      e.now().UTC().Format(time.RFC3339),
		ExtractorVersion: Version,
	}
	c.Normalize()

	logging.ProbeDebug("extract: %s - %d subcommands, %d invariants in %v",
		path, len(c.CLISurface), len(c.Invariants), time.Since(start))
	return c, nil
}
