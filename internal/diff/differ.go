// Package diff computes the structural Diff between a stored baseline
// contract and a freshly extracted one, classifying every delta as
// breaking, non-breaking or informational for the CI gate.
package diff

import (
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"phio/internal/contract"
	"phio/internal/logging"
)

// DefaultRenameSimilarity is the name-similarity threshold above which a
// removed+added pair with an identical shape collapses into a single
// rename entry.
const DefaultRenameSimilarity = 0.5

// Options tunes a Differ.
type Options struct {
	// RenameSimilarity overrides DefaultRenameSimilarity when > 0.
	RenameSimilarity float64
}

// Differ compares contracts. Safe for reuse across comparisons.
type Differ struct {
	dmp       *diffmatchpatch.DiffMatchPatch
	threshold float64
}

// New creates a Differ.
func New(opts Options) *Differ {
	threshold := opts.RenameSimilarity
	if threshold <= 0 {
		threshold = DefaultRenameSimilarity
	}
	return &Differ{
		dmp:       diffmatchpatch.New(),
		threshold: threshold,
	}
}

// Compare produces the ordered Diff of current against baseline. It
// fails with DiffError only when an input contract violates the schema;
// any comparison result is valid output.
func (d *Differ) Compare(baseline, current *contract.Contract) ([]contract.Change, error) {
	if baseline == nil {
		return nil, &contract.DiffError{Side: "baseline", Field: "contract", Reason: "nil"}
	}
	if current == nil {
		return nil, &contract.DiffError{Side: "current", Field: "contract", Reason: "nil"}
	}
	if err := baseline.Validate(); err != nil {
		return nil, &contract.DiffError{Side: "baseline", Field: err.Error(), Reason: "schema violation"}
	}
	if err := current.Validate(); err != nil {
		return nil, &contract.DiffError{Side: "current", Field: err.Error(), Reason: "schema violation"}
	}

	var changes []contract.Change
	changes = append(changes, d.compareSurface(baseline.CLISurface, current.CLISurface)...)
	changes = append(changes, d.compareInvariants(baseline.Invariants, current.Invariants)...)

	logging.DiffDebug("compare: %s -> %d changes", current.Instrument.Path, len(changes))
	return changes, nil
}

// compareSurface walks the union of subcommands in name order.
func (d *Differ) compareSurface(baseline, current []contract.Subcommand) []contract.Change {
	oldSubs := subMap(baseline)
	newSubs := subMap(current)

	names := make([]string, 0, len(oldSubs)+len(newSubs))
	for name := range oldSubs {
		names = append(names, name)
	}
	for name := range newSubs {
		if _, ok := oldSubs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var changes []contract.Change
	for _, name := range names {
		oldSub, inOld := oldSubs[name]
		newSub, inNew := newSubs[name]
		switch {
		case inOld && !inNew:
			changes = append(changes, contract.Change{
				Kind:     contract.ChangeRemoved,
				Severity: contract.SeverityBreaking,
				Path:     subPath(name, ""),
				Old:      oldSub,
			})
		case !inOld && inNew:
			changes = append(changes, contract.Change{
				Kind:     contract.ChangeAdded,
				Severity: contract.SeverityNonBreaking,
				Path:     subPath(name, ""),
				New:      newSub,
			})
		default:
			changes = append(changes, d.compareFlags(name, oldSub.Flags, newSub.Flags)...)
		}
	}
	return changes
}

// compareFlags matches flags by name within one subcommand, then runs
// the rename heuristic over the leftover removed/added pairs.
func (d *Differ) compareFlags(sub string, baseline, current []contract.Flag) []contract.Change {
	oldFlags := flagMap(baseline)
	newFlags := flagMap(current)

	var removed, added []contract.Flag
	var changes []contract.Change

	names := make([]string, 0, len(oldFlags)+len(newFlags))
	for name := range oldFlags {
		names = append(names, name)
	}
	for name := range newFlags {
		if _, ok := oldFlags[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldFlag, inOld := oldFlags[name]
		newFlag, inNew := newFlags[name]
		switch {
		case inOld && !inNew:
			removed = append(removed, oldFlag)
		case !inOld && inNew:
			added = append(added, newFlag)
		default:
			if ch, ok := classifyFlagChange(sub, oldFlag, newFlag); ok {
				changes = append(changes, ch)
			}
		}
	}

	renames, removed, added := d.pairRenames(sub, removed, added)
	changes = append(changes, renames...)

	for _, f := range removed {
		changes = append(changes, contract.Change{
			Kind:     contract.ChangeRemoved,
			Severity: contract.SeverityBreaking,
			Path:     subPath(sub, f.Name),
			Old:      f,
		})
	}
	for _, f := range added {
		severity := contract.SeverityNonBreaking
		if f.Required {
			// A newly required flag invalidates every existing caller.
			severity = contract.SeverityBreaking
		}
		changes = append(changes, contract.Change{
			Kind:     contract.ChangeAdded,
			Severity: severity,
			Path:     subPath(sub, f.Name),
			New:      f,
		})
	}

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// classifyFlagChange compares two same-named flags. Returns false when
// they are structurally identical (help-only edits included: help text
// is not part of the structural contract).
func classifyFlagChange(sub string, oldFlag, newFlag contract.Flag) (contract.Change, bool) {
	if contract.FlagShapeEqual(oldFlag, newFlag) {
		return contract.Change{}, false
	}
	ch := contract.Change{
		Kind: contract.ChangeModified,
		Path: subPath(sub, oldFlag.Name),
		Old:  oldFlag,
		New:  newFlag,
	}
	switch {
	case oldFlag.Type != newFlag.Type || oldFlag.Required != newFlag.Required || !choicesEqual(oldFlag.Choices, newFlag.Choices):
		// Type and required-ness are the flag's contract with callers.
		ch.Severity = contract.SeverityBreaking
	case oldFlag.Required:
		// Default change on a required flag: callers always pass an
		// explicit value, so the default is advisory only.
		ch.Severity = contract.SeverityInformational
	default:
		ch.Severity = contract.SeverityNonBreaking
	}
	return ch, true
}

// pairRenames collapses removed+added pairs that share an identical
// shape and a name similarity at or above the threshold into single
// modified/non-breaking entries, avoiding false-positive breaking
// signals on pure renames.
func (d *Differ) pairRenames(sub string, removed, added []contract.Flag) (renames []contract.Change, restRemoved, restAdded []contract.Flag) {
	usedAdded := make([]bool, len(added))
	for _, oldFlag := range removed {
		bestIdx := -1
		bestSim := 0.0
		for i, newFlag := range added {
			if usedAdded[i] || !contract.FlagShapeEqual(oldFlag, newFlag) {
				continue
			}
			sim := d.similarity(oldFlag.Name, newFlag.Name)
			if sim >= d.threshold && sim > bestSim {
				bestIdx, bestSim = i, sim
			}
		}
		if bestIdx < 0 {
			restRemoved = append(restRemoved, oldFlag)
			continue
		}
		usedAdded[bestIdx] = true
		renames = append(renames, contract.Change{
			Kind:     contract.ChangeModified,
			Severity: contract.SeverityNonBreaking,
			Path:     subPath(sub, oldFlag.Name),
			Old:      oldFlag,
			New:      added[bestIdx],
		})
	}
	for i, f := range added {
		if !usedAdded[i] {
			restAdded = append(restAdded, f)
		}
	}
	return renames, restRemoved, restAdded
}

// compareInvariants matches invariants by name, with the same rename
// heuristic for value-identical remove+add pairs.
func (d *Differ) compareInvariants(baseline, current []contract.Invariant) []contract.Change {
	oldInvs := invMap(baseline)
	newInvs := invMap(current)

	var removed, added []contract.Invariant
	var changes []contract.Change

	names := make([]string, 0, len(oldInvs)+len(newInvs))
	for name := range oldInvs {
		names = append(names, name)
	}
	for name := range newInvs {
		if _, ok := oldInvs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldInv, inOld := oldInvs[name]
		newInv, inNew := newInvs[name]
		switch {
		case inOld && !inNew:
			removed = append(removed, oldInv)
		case !inOld && inNew:
			added = append(added, newInv)
		default:
			if !contract.InvariantEqual(oldInv, newInv) {
				changes = append(changes, contract.Change{
					Kind:     contract.ChangeModified,
					Severity: contract.SeverityBreaking,
					Path:     invPath(name),
					Old:      oldInv,
					New:      newInv,
				})
			}
		}
	}

	usedAdded := make([]bool, len(added))
	for _, oldInv := range removed {
		bestIdx := -1
		bestSim := 0.0
		for i, newInv := range added {
			if usedAdded[i] || !contract.InvariantEqual(oldInv, newInv) {
				continue
			}
			sim := d.similarity(oldInv.Name, newInv.Name)
			if sim >= d.threshold && sim > bestSim {
				bestIdx, bestSim = i, sim
			}
		}
		if bestIdx < 0 {
			changes = append(changes, contract.Change{
				Kind:     contract.ChangeRemoved,
				Severity: contract.SeverityBreaking,
				Path:     invPath(oldInv.Name),
				Old:      oldInv,
			})
			continue
		}
		usedAdded[bestIdx] = true
		changes = append(changes, contract.Change{
			Kind:     contract.ChangeModified,
			Severity: contract.SeverityNonBreaking,
			Path:     invPath(oldInv.Name),
			Old:      oldInv,
			New:      added[bestIdx],
		})
	}
	for i, inv := range added {
		if !usedAdded[i] {
			changes = append(changes, contract.Change{
				Kind:     contract.ChangeAdded,
				Severity: contract.SeverityNonBreaking,
				Path:     invPath(inv.Name),
				New:      inv,
			})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

// similarity is normalized Levenshtein: 1 - dist/max(len(a), len(b)).
func (d *Differ) similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	diffs := d.dmp.DiffMain(a, b, false)
	dist := d.dmp.DiffLevenshtein(diffs)
	return 1 - float64(dist)/float64(longest)
}

// Summary aggregates change counts per severity.
type Summary struct {
	Breaking      int
	NonBreaking   int
	Informational int
}

// Summarize tallies a change list.
func Summarize(changes []contract.Change) Summary {
	var s Summary
	for _, ch := range changes {
		switch ch.Severity {
		case contract.SeverityBreaking:
			s.Breaking++
		case contract.SeverityNonBreaking:
			s.NonBreaking++
		case contract.SeverityInformational:
			s.Informational++
		}
	}
	return s
}

func subPath(sub, flag string) string {
	switch {
	case sub == "" && flag == "":
		return "cli"
	case sub == "":
		return flag
	case flag == "":
		return sub
	default:
		return sub + "/" + flag
	}
}

func invPath(name string) string {
	return "invariants/" + name
}

func subMap(subs []contract.Subcommand) map[string]contract.Subcommand {
	out := make(map[string]contract.Subcommand, len(subs))
	for _, s := range subs {
		out[s.Name] = s
	}
	return out
}

func flagMap(flags []contract.Flag) map[string]contract.Flag {
	out := make(map[string]contract.Flag, len(flags))
	for _, f := range flags {
		out[f.Name] = f
	}
	return out
}

func invMap(invs []contract.Invariant) map[string]contract.Invariant {
	out := make(map[string]contract.Invariant, len(invs))
	for _, inv := range invs {
		out[inv.Name] = inv
	}
	return out
}

func choicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
