// Package lint runs the fixed battery of structural checks over an
// extracted contract. Findings are Warnings: accumulated and reported,
// never fatal. Only the CLI gate turns the warning count into an exit
// code, via the policy threshold.
package lint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"phio/internal/contract"
	"phio/internal/logging"
)

// Warning codes. Stable identifiers consumed by CI configs; never renumber.
const (
	CodeNoInvariants     = "PW001"
	CodeMachineName      = "PW002"
	CodeUntypedRequired  = "PW003"
	CodeDefaultTypeClash = "PW004"
	CodeFlagNoHelp       = "PW005"
	CodeSubNoHelp        = "PW006"
	CodeNoVersion        = "PW007"
	CodeUnicodeNoAlias   = "PW008"
)

// machineName matches auto-generated index names like THRESH_0 or
// ZONE_THRESHOLD_2 - a sign the instrument author never named the
// invariant for humans.
var machineName = regexp.MustCompile(`^[A-Z_]*(THRESH|THRESHOLD)_[0-9]+$`)

type check struct {
	code string
	run  func(*contract.Contract) []contract.Warning
}

// battery is the fixed check order; report order follows it.
var battery = []check{
	{CodeNoInvariants, checkNoInvariants},
	{CodeMachineName, checkMachineNames},
	{CodeUntypedRequired, checkUntypedRequired},
	{CodeDefaultTypeClash, checkDefaultTypeClash},
	{CodeFlagNoHelp, checkFlagHelp},
	{CodeSubNoHelp, checkSubHelp},
	{CodeNoVersion, checkVersion},
	{CodeUnicodeNoAlias, checkUnicodeAlias},
}

// Run executes all enabled checks and returns the ordered warning list.
func Run(c *contract.Contract, policy *Policy) []contract.Warning {
	if policy == nil {
		policy = DefaultPolicy()
	}
	var warnings []contract.Warning
	for _, chk := range battery {
		if policy.disabled(chk.code) {
			continue
		}
		warnings = append(warnings, chk.run(c)...)
	}
	logging.Lint("lint: %s - %d warnings", c.Instrument.Path, len(warnings))
	return warnings
}

func checkNoInvariants(c *contract.Contract) []contract.Warning {
	for _, inv := range c.Invariants {
		if inv.Kind != contract.InvariantMetadata {
			return nil
		}
	}
	return []contract.Warning{{
		Code:    CodeNoInvariants,
		Message: "instrument declares no extractable invariants (thresholds, constants or zone chains)",
	}}
}

func checkMachineNames(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	for _, inv := range c.Invariants {
		if machineName.MatchString(inv.Name) {
			out = append(out, contract.Warning{
				Code:    CodeMachineName,
				Message: fmt.Sprintf("invariant %q has a machine-generated name; give it a human-readable one", inv.Name),
				Path:    "invariants/" + inv.Name,
			})
		}
	}
	return out
}

func checkUntypedRequired(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	eachFlag(c, func(sub string, f contract.Flag) {
		if f.Required && f.Type == "" {
			out = append(out, contract.Warning{
				Code:    CodeUntypedRequired,
				Message: fmt.Sprintf("required flag %s has no type annotation", f.Name),
				Path:    flagPath(sub, f.Name),
			})
		}
	})
	return out
}

func checkDefaultTypeClash(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	eachFlag(c, func(sub string, f contract.Flag) {
		if f.Type == "" || f.Default.Kind == contract.ValueNone {
			return
		}
		if !defaultMatchesType(f.Type, f.Default) {
			out = append(out, contract.Warning{
				Code:    CodeDefaultTypeClash,
				Message: fmt.Sprintf("flag %s declares type %s but default %s", f.Name, f.Type, f.Default.Canonical()),
				Path:    flagPath(sub, f.Name),
			})
		}
	})
	return out
}

func checkFlagHelp(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	eachFlag(c, func(sub string, f contract.Flag) {
		if f.Help == "" {
			out = append(out, contract.Warning{
				Code:    CodeFlagNoHelp,
				Message: fmt.Sprintf("flag %s has no help text", f.Name),
				Path:    flagPath(sub, f.Name),
			})
		}
	})
	return out
}

func checkSubHelp(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	for _, sub := range c.CLISurface {
		if sub.Name != "" && sub.Help == "" {
			out = append(out, contract.Warning{
				Code:    CodeSubNoHelp,
				Message: fmt.Sprintf("subcommand %s has no help text", sub.Name),
				Path:    sub.Name,
			})
		}
	}
	return out
}

func checkVersion(c *contract.Contract) []contract.Warning {
	for _, inv := range c.Invariants {
		if inv.Name == "__version__" {
			return nil
		}
	}
	return []contract.Warning{{
		Code:    CodeNoVersion,
		Message: "instrument declares no __version__",
	}}
}

// checkUnicodeAlias flags unicode option names (the tau convention)
// that lack an ASCII twin in the same subcommand. The twin must carry
// the transliterated name (--agg_τ pairs with --agg_tau) and the same
// shape; an unrelated flag that merely shares the shape does not count.
func checkUnicodeAlias(c *contract.Contract) []contract.Warning {
	var out []contract.Warning
	for _, sub := range c.CLISurface {
		for _, f := range sub.Flags {
			if isASCII(f.Name) {
				continue
			}
			folded := asciiFold(f.Name)
			hasTwin := false
			for _, g := range sub.Flags {
				if g.Name != f.Name && isASCII(g.Name) && g.Name == folded && contract.FlagShapeEqual(f, g) {
					hasTwin = true
					break
				}
			}
			if !hasTwin {
				out = append(out, contract.Warning{
					Code:    CodeUnicodeNoAlias,
					Message: fmt.Sprintf("unicode flag %s has no ASCII alias", f.Name),
					Path:    flagPath(sub.Name, f.Name),
				})
			}
		}
	}
	return out
}

func eachFlag(c *contract.Contract, fn func(sub string, f contract.Flag)) {
	for _, sub := range c.CLISurface {
		for _, f := range sub.Flags {
			fn(sub.Name, f)
		}
	}
}

func defaultMatchesType(typ string, v contract.Value) bool {
	switch typ {
	case "str":
		return v.Kind == contract.ValueString
	case "int":
		return v.Kind == contract.ValueInt
	case "float":
		return v.Kind == contract.ValueFloat || v.Kind == contract.ValueInt
	case "bool":
		return v.Kind == contract.ValueBool
	}
	return true
}

func flagPath(sub, flag string) string {
	if sub == "" {
		return flag
	}
	return sub + "/" + flag
}

// greekNames maps the Greek letters instrument authors use in option
// names to their spelled-out ASCII forms.
var greekNames = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta",
	'ε': "epsilon", 'η': "eta", 'θ': "theta", 'κ': "kappa",
	'λ': "lambda", 'μ': "mu", 'π': "pi", 'ρ': "rho",
	'σ': "sigma", 'τ': "tau", 'φ': "phi", 'χ': "chi",
	'ψ': "psi", 'ω': "omega",
}

// asciiFold spells out Greek letters in a flag name. Runes without a
// known transliteration pass through unchanged, so the fold of a name
// with unknown unicode stays non-ASCII and matches no twin.
func asciiFold(name string) string {
	var b strings.Builder
	for _, r := range name {
		if t, ok := greekNames[r]; ok {
			b.WriteString(t)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// SortWarnings orders a report by code, then path - the stable order CI
// diffs against.
func SortWarnings(warnings []contract.Warning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Code != warnings[j].Code {
			return warnings[i].Code < warnings[j].Code
		}
		return warnings[i].Path < warnings[j].Path
	})
}

// Gate applies the policy threshold. The returned reason is empty when
// the gate passes. This is the only place warning severity becomes
// binary.
func Gate(warnings []contract.Warning, policy *Policy) (ok bool, reason string) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	var escalated []string
	for _, w := range warnings {
		if policy.escalated(w.Code) {
			escalated = append(escalated, w.Code)
		}
	}
	if len(escalated) > 0 {
		return false, fmt.Sprintf("escalated warnings present: %s", strings.Join(dedupe(escalated), ", "))
	}
	if len(warnings) > policy.MaxWarnings {
		return false, fmt.Sprintf("%d warnings exceed threshold %d", len(warnings), policy.MaxWarnings)
	}
	return true, ""
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
