package extract

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"phio/internal/contract"
)

// instrumentV1 is a representative probe instrument: root parser plus
// one subparser, threshold constants, dunder metadata and a zone chain.
const instrumentV1 = `
import argparse

__version__ = "1.4.0"
__instrument_id__ = "probe-alpha"

ZONE_THRESHOLDS = [1.0, 2.5, 4.0]
AGG_TAU_DEFAULT = 0.5

def classify(T):
    if T < 1.0:
        return "calm"
    elif T < 2.5:
        return "active"
    elif T < 4.0:
        return "hot"
    else:
        return "critical"

def build_parser():
    parser = argparse.ArgumentParser(description="probe alpha")
    parser.add_argument("--mode", type=str, required=True, help="run mode")
    parser.add_argument("--threshold", type=float, default=0.5, help="zone threshold")
    sub = parser.add_subparsers()
    run = sub.add_parser("run", help="execute the probe")
    run.add_argument("--strict", action="store_true", help="fail on drift")
    run.add_argument("--format", choices=["json", "text"], default="json", help="output format")
    return parser

def get_spec():
    return build_parser()
`

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func extractV1(t *testing.T) *contract.Contract {
	t.Helper()
	e := New(Options{Now: fixedClock})
	c, err := e.Extract(context.Background(), "probe_alpha.py", []byte(instrumentV1))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return c
}

func TestExtract_Surface(t *testing.T) {
	c := extractV1(t)

	if len(c.CLISurface) != 2 {
		t.Fatalf("expected 2 surface entries, got %d", len(c.CLISurface))
	}

	root := findSub(t, c, "")
	if len(root.Flags) != 2 {
		t.Fatalf("root flags: expected 2, got %d", len(root.Flags))
	}
	mode := findFlag(t, root, "--mode")
	if mode.Type != "str" || !mode.Required {
		t.Errorf("--mode: got type=%q required=%v", mode.Type, mode.Required)
	}
	threshold := findFlag(t, root, "--threshold")
	if threshold.Type != "float" || threshold.Required {
		t.Errorf("--threshold: got type=%q required=%v", threshold.Type, threshold.Required)
	}
	if !threshold.Default.Equal(contract.FloatValue(0.5)) {
		t.Errorf("--threshold default: got %s", threshold.Default.Canonical())
	}

	run := findSub(t, c, "run")
	if run.Help != "execute the probe" {
		t.Errorf("run help: got %q", run.Help)
	}
	strict := findFlag(t, run, "--strict")
	if strict.Type != "bool" || !strict.Default.Equal(contract.BoolValue(false)) {
		t.Errorf("--strict: got type=%q default=%s", strict.Type, strict.Default.Canonical())
	}
	format := findFlag(t, run, "--format")
	if len(format.Choices) != 2 || format.Choices[0] != "json" || format.Choices[1] != "text" {
		t.Errorf("--format choices: got %v", format.Choices)
	}
}

func TestExtract_Invariants(t *testing.T) {
	c := extractV1(t)

	series := findInv(t, c, "ZONE_THRESHOLDS")
	if series.Kind != contract.InvariantSeries || len(series.Values) != 3 {
		t.Fatalf("ZONE_THRESHOLDS: kind=%q values=%d", series.Kind, len(series.Values))
	}
	if !series.Values[1].Equal(contract.FloatValue(2.5)) {
		t.Errorf("ZONE_THRESHOLDS[1]: got %s", series.Values[1].Canonical())
	}

	tau := findInv(t, c, "AGG_TAU_DEFAULT")
	if tau.Kind != contract.InvariantScalar || !tau.Value.Equal(contract.FloatValue(0.5)) {
		t.Errorf("AGG_TAU_DEFAULT: kind=%q value=%s", tau.Kind, tau.Value.Canonical())
	}

	version := findInv(t, c, "__version__")
	if version.Kind != contract.InvariantMetadata || !version.Value.Equal(contract.StringValue("1.4.0")) {
		t.Errorf("__version__: kind=%q value=%s", version.Kind, version.Value.Canonical())
	}

	chain := findInv(t, c, "zone_if_chain")
	if chain.Kind != contract.InvariantFormula {
		t.Fatalf("zone_if_chain: kind=%q", chain.Kind)
	}
	want := `T < 1 -> "calm"; T < 2.5 -> "active"; T < 4 -> "hot"; else -> "critical"`
	if chain.Formula != want {
		t.Errorf("zone_if_chain formula:\n got %s\nwant %s", chain.Formula, want)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := New(Options{Now: fixedClock})
	first, err := e.Extract(context.Background(), "probe_alpha.py", []byte(instrumentV1))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Extract(context.Background(), "probe_alpha.py", []byte(instrumentV1))
	if err != nil {
		t.Fatal(err)
	}

	a, err := contract.Encode(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := contract.Encode(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("repeated extraction not byte-identical:\n%s\n---\n%s", a, b)
	}
}

func TestExtract_Hash(t *testing.T) {
	c := extractV1(t)
	if len(c.Instrument.Hash) != len("sha256:")+64 {
		t.Errorf("hash: got %q", c.Instrument.Hash)
	}
}

func TestExtract_MissingEntryPoint(t *testing.T) {
	src := `
import argparse
parser = argparse.ArgumentParser()
parser.add_argument("--x", type=int)
`
	e := New(Options{})
	_, err := e.Extract(context.Background(), "no_entry.py", []byte(src))
	var xerr *contract.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if xerr.Path != "no_entry.py" {
		t.Errorf("error path: got %q", xerr.Path)
	}
}

func TestExtract_SyntaxError(t *testing.T) {
	src := `def get_spec(:
    return None
`
	e := New(Options{})
	_, err := e.Extract(context.Background(), "broken.py", []byte(src))
	var xerr *contract.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtract_SpecAssignmentEntryPoint(t *testing.T) {
	src := `
import argparse

def build():
    p = argparse.ArgumentParser()
    p.add_argument("--n", type=int, default=3)
    return p

SPEC = build()
`
	e := New(Options{})
	c, err := e.Extract(context.Background(), "spec_assign.py", []byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	root := findSub(t, c, "")
	n := findFlag(t, root, "--n")
	if n.Type != "int" || !n.Default.Equal(contract.IntValue(3)) {
		t.Errorf("--n: type=%q default=%s", n.Type, n.Default.Canonical())
	}
}

func TestExtract_TypeInferredFromDefault(t *testing.T) {
	src := `
import argparse

def get_spec():
    p = argparse.ArgumentParser()
    p.add_argument("--ratio", default=1.5)
    p.add_argument("--name", default="probe")
    return p
`
	e := New(Options{})
	c, err := e.Extract(context.Background(), "infer.py", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	root := findSub(t, c, "")
	if f := findFlag(t, root, "--ratio"); f.Type != "float" {
		t.Errorf("--ratio type: got %q", f.Type)
	}
	if f := findFlag(t, root, "--name"); f.Type != "str" {
		t.Errorf("--name type: got %q", f.Type)
	}
}

func TestExtract_UnicodeFlagAlias(t *testing.T) {
	src := `
import argparse

def get_spec():
    p = argparse.ArgumentParser()
    p.add_argument("--τ", type=float, default=0.5, help="time constant")
    p.add_argument("--tau", type=float, default=0.5, help="ascii alias")
    return p
`
	e := New(Options{})
	c, err := e.Extract(context.Background(), "tau.py", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	root := findSub(t, c, "")
	if len(root.Flags) != 2 {
		t.Fatalf("expected both tau spellings, got %d flags", len(root.Flags))
	}
	findFlag(t, root, "--τ")
	findFlag(t, root, "--tau")
}

func findSub(t *testing.T, c *contract.Contract, name string) contract.Subcommand {
	t.Helper()
	for _, sub := range c.CLISurface {
		if sub.Name == name {
			return sub
		}
	}
	t.Fatalf("subcommand %q not found", name)
	return contract.Subcommand{}
}

func findFlag(t *testing.T, sub contract.Subcommand, name string) contract.Flag {
	t.Helper()
	for _, f := range sub.Flags {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("flag %q not found in %q", name, sub.Name)
	return contract.Flag{}
}

func findInv(t *testing.T, c *contract.Contract, name string) contract.Invariant {
	t.Helper()
	for _, inv := range c.Invariants {
		if inv.Name == name {
			return inv
		}
	}
	t.Fatalf("invariant %q not found", name)
	return contract.Invariant{}
}
