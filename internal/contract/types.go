// Package contract defines the structural contract model for PhiO
// instruments: the statically extracted Contract, the canonical on-disk
// encoding used for baselines, and the Diff/Warning value types consumed
// by the CI gate.
package contract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is embedded in every serialized contract as
// extractor_version together with the extractor build version.
const SchemaVersion = "1"

// Identity pins a contract to one instrument at one point in time.
type Identity struct {
	Path string `json:"path"`
	Hash string `json:"hash"` // "sha256:<hex>" over the source bytes
}

// Flag is a single CLI flag on a subcommand.
type Flag struct {
	Name     string   `json:"name"`
	Type     string   `json:"type,omitempty"` // str|int|float|bool, "" when undeclared
	Required bool     `json:"required"`
	Default  Value    `json:"default"`
	Choices  []string `json:"choices,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// Subcommand groups the flags of one argparse subparser.
// The root parser surface uses the empty name.
type Subcommand struct {
	Name  string `json:"name"`
	Help  string `json:"help,omitempty"`
	Flags []Flag `json:"flags"`
}

// Invariant kinds.
const (
	InvariantScalar   = "scalar"   // single numeric constant
	InvariantSeries   = "series"   // ordered numeric thresholds
	InvariantFormula  = "formula"  // synthesized formula text (if-chains)
	InvariantMetadata = "metadata" // dunder metadata such as __version__
)

// Invariant is a named, statically declared constant or formula.
type Invariant struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Value   Value   `json:"value,omitempty"`
	Values  []Value `json:"values,omitempty"`
	Formula string  `json:"formula,omitempty"`
}

// Contract is the full structural snapshot of an instrument.
// It is fully determined by static analysis of the source.
type Contract struct {
	Instrument       Identity     `json:"instrument"`
	CLISurface       []Subcommand `json:"cli_surface"`
	Invariants       []Invariant  `json:"invariants"`
	ExtractedAt      string       `json:"extracted_at"` // RFC 3339 UTC
	ExtractorVersion string       `json:"extractor_version"`
}

// ValueKind discriminates the literal types a contract can carry.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
)

// Value is a literal extracted from instrument source. It marshals to a
// canonical JSON form: floats always use strconv 'g' formatting so that
// serialization is byte-stable across runs and platforms.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

func None() Value               { return Value{Kind: ValueNone} }
func BoolValue(b bool) Value    { return Value{Kind: ValueBool, Bool: b} }
func IntValue(i int64) Value    { return Value{Kind: ValueInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// Canonical returns the canonical JSON literal for the value.
func (v Value) Canonical() string {
	switch v.Kind {
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		b, _ := json.Marshal(v.Str)
		return string(b)
	default:
		return "null"
	}
}

// Equal reports semantic equality. Numeric values compare across the
// int/float kinds so that a re-decoded baseline (where 1.0 reads back as
// an integer literal) still matches a fresh extraction.
func (v Value) Equal(o Value) bool {
	if v.Kind == o.Kind {
		switch v.Kind {
		case ValueBool:
			return v.Bool == o.Bool
		case ValueInt:
			return v.Int == o.Int
		case ValueFloat:
			return v.Float == o.Float
		case ValueString:
			return v.Str == o.Str
		default:
			return true
		}
	}
	if v.numeric() && o.numeric() {
		return v.asFloat() == o.asFloat()
	}
	return false
}

func (v Value) numeric() bool {
	return v.Kind == ValueInt || v.Kind == ValueFloat
}

func (v Value) asFloat() float64 {
	if v.Kind == ValueInt {
		return float64(v.Int)
	}
	return v.Float
}

// MarshalJSON emits the canonical literal.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.Canonical()), nil
}

// UnmarshalJSON accepts any JSON scalar. Numbers without a fraction or
// exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*v = None()
		return nil
	case s == "true":
		*v = BoolValue(true)
		return nil
	case s == "false":
		*v = BoolValue(false)
		return nil
	case len(s) > 0 && s[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*v = StringValue(str)
		return nil
	}
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			*v = IntValue(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a JSON scalar: %s", s)
	}
	*v = FloatValue(f)
	return nil
}

// ChangeKind tags the shape of one diff entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Severity classifies the impact of one diff entry on existing callers.
type Severity string

const (
	SeverityBreaking      Severity = "breaking"
	SeverityNonBreaking   Severity = "non-breaking"
	SeverityInformational Severity = "informational"
)

// Change is a single entry in a Diff. Old/New carry the affected Flag,
// Subcommand or Invariant (nil when absent on that side). A Diff is
// ephemeral: recomputed every run, never persisted.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Path     string     `json:"path"`
	Old      any        `json:"old"`
	New      any        `json:"new"`
}

// Warning is a non-fatal structural finding about a contract.
// Warnings never block unless the CLI gate's policy escalates them.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}
