package contract

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Normalize puts the contract into canonical order: subcommands, flags
// and invariants sorted by name. Extraction already emits normalized
// contracts; Decode normalizes again so hand-edited baselines still
// compare and re-encode deterministically.
func (c *Contract) Normalize() {
	sort.Slice(c.CLISurface, func(i, j int) bool {
		return c.CLISurface[i].Name < c.CLISurface[j].Name
	})
	for i := range c.CLISurface {
		flags := c.CLISurface[i].Flags
		sort.Slice(flags, func(a, b int) bool { return flags[a].Name < flags[b].Name })
	}
	sort.Slice(c.Invariants, func(i, j int) bool {
		return c.Invariants[i].Name < c.Invariants[j].Name
	})
}

// Encode renders the canonical byte form: fixed key order (struct field
// order), sorted entries, 'g'-formatted floats via Value, two-space
// indent, trailing newline. Two encodings of semantically identical
// contracts are byte-identical regardless of map iteration order in the
// host implementation. This property is what makes baselines diffable
// and version-controllable.
func Encode(c *Contract) ([]byte, error) {
	clone := *c
	clone.CLISurface = append([]Subcommand(nil), c.CLISurface...)
	for i := range clone.CLISurface {
		clone.CLISurface[i].Flags = append([]Flag(nil), clone.CLISurface[i].Flags...)
	}
	clone.Invariants = append([]Invariant(nil), c.Invariants...)
	clone.Normalize()

	if clone.CLISurface == nil {
		clone.CLISurface = []Subcommand{}
	}
	if clone.Invariants == nil {
		clone.Invariants = []Invariant{}
	}

	data, err := json.MarshalIndent(&clone, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and normalizes a serialized contract.
func Decode(data []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode contract: %w", err)
	}
	c.Normalize()
	return &c, nil
}

// Validate checks the contract schema. The returned error names the
// offending field; the differ wraps it into a DiffError.
func (c *Contract) Validate() error {
	if c.Instrument.Path == "" {
		return fmt.Errorf("instrument.path: empty")
	}
	if len(c.Instrument.Hash) < len("sha256:")+1 || c.Instrument.Hash[:7] != "sha256:" {
		return fmt.Errorf("instrument.hash: missing sha256 prefix")
	}
	seenSub := make(map[string]bool, len(c.CLISurface))
	for _, sub := range c.CLISurface {
		if seenSub[sub.Name] {
			return fmt.Errorf("cli_surface[%q]: duplicate subcommand", sub.Name)
		}
		seenSub[sub.Name] = true
		seenFlag := make(map[string]bool, len(sub.Flags))
		for _, f := range sub.Flags {
			if f.Name == "" {
				return fmt.Errorf("cli_surface[%q].flags: empty flag name", sub.Name)
			}
			if seenFlag[f.Name] {
				return fmt.Errorf("cli_surface[%q].flags[%q]: duplicate flag", sub.Name, f.Name)
			}
			seenFlag[f.Name] = true
		}
	}
	seenInv := make(map[string]bool, len(c.Invariants))
	for _, inv := range c.Invariants {
		if inv.Name == "" {
			return fmt.Errorf("invariants: empty invariant name")
		}
		if seenInv[inv.Name] {
			return fmt.Errorf("invariants[%q]: duplicate invariant", inv.Name)
		}
		seenInv[inv.Name] = true
		switch inv.Kind {
		case InvariantScalar, InvariantSeries, InvariantFormula, InvariantMetadata:
		default:
			return fmt.Errorf("invariants[%q].kind: unknown kind %q", inv.Name, inv.Kind)
		}
	}
	return nil
}

// InvariantEqual reports whether two invariants carry the same declared
// value, series or formula.
func InvariantEqual(a, b Invariant) bool {
	if a.Kind != b.Kind || a.Formula != b.Formula {
		return false
	}
	if !a.Value.Equal(b.Value) {
		return false
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !a.Values[i].Equal(b.Values[i]) {
			return false
		}
	}
	return true
}

// FlagShapeEqual reports whether two flags agree on type, required-ness,
// default and choices. Name and help text are excluded: help is not part
// of the structural contract, and the rename heuristic uses shape
// equality to pair removal/addition candidates.
func FlagShapeEqual(a, b Flag) bool {
	if a.Type != b.Type || a.Required != b.Required || !a.Default.Equal(b.Default) {
		return false
	}
	if len(a.Choices) != len(b.Choices) {
		return false
	}
	for i := range a.Choices {
		if a.Choices[i] != b.Choices[i] {
			return false
		}
	}
	return true
}
