package versioning

import "github.com/dataguild/contractguard/pkg/contracts"

// ChangeKind classifies a contract revision relative to its predecessor,
// per §4.6.
type ChangeKind string

const (
	ChangeNone     ChangeKind = "none"
	ChangeDocOnly  ChangeKind = "doc_only"
	ChangeAdditive ChangeKind = "additive"
	ChangeBreaking ChangeKind = "breaking"
)

// ClassifyChange compares next against prev and returns the most severe
// kind of change present. The decision for SG006's "uniqueness tightened"
// and "classification escalated" cases (left under-specified in the
// source material) is resolved conservatively here: any narrowing of a
// previously-accepting constraint counts as breaking, any declaration
// added purely over previously-optional ground counts as additive.
func ClassifyChange(prev, next *contracts.Contract) ChangeKind {
	if prev == nil {
		return ChangeBreaking // caller should treat "no predecessor" as first-version, not call this
	}

	prevFields := make(map[string]contracts.Field, len(prev.Schema))
	for _, f := range prev.Schema {
		prevFields[f.Name] = f
	}
	nextFields := make(map[string]contracts.Field, len(next.Schema))
	for _, f := range next.Schema {
		nextFields[f.Name] = f
	}

	breaking := false
	additive := false

	for name, pf := range prevFields {
		nf, ok := nextFields[name]
		if !ok {
			breaking = true // field removed
			continue
		}
		if nf.Type != pf.Type {
			breaking = true // type changed
		}
		if pf.Nullable && !nf.Nullable {
			breaking = true // field made required where it was previously optional
		}
		if !pf.Nullable && nf.Nullable {
			additive = true // constraint widened
		}
		if !pf.Unique && nf.Unique {
			breaking = true // uniqueness declaration tightened
		}
	}

	for name := range nextFields {
		if _, ok := prevFields[name]; !ok {
			additive = true // new field
			if !nextFields[name].Nullable {
				breaking = true // new field is required, existing rows can't satisfy it
			}
		}
	}

	if next.Governance.Classification.Rank() > prev.Governance.Classification.Rank() {
		breaking = true // classification escalated
	}

	if uniquenessKeyWidened(prev.Quality.UniquenessKeys, next.Quality.UniquenessKeys) {
		breaking = true // uniqueness key covers an additional field than before
	}
	if len(prev.Quality.UniquenessKeys) == 0 && len(next.Quality.UniquenessKeys) > 0 {
		additive = true // first uniqueness-key declaration
	}

	if len(next.Subscriptions) > len(prev.Subscriptions) {
		additive = true
	}

	if breaking {
		return ChangeBreaking
	}
	if additive {
		return ChangeAdditive
	}
	if next.Identity.Fingerprint == prev.Identity.Fingerprint {
		return ChangeDocOnly
	}
	return ChangeDocOnly
}

// uniquenessKeyWidened reports whether next's uniqueness-key declaration
// covers every field prev's did, plus at least one more: a previously
// conforming row (unique on the old, narrower key) can now collide on
// the widened key, so this is breaking. A uniqueness key declared for
// the first time over fields that carried no prior declaration is not
// a widening of anything and is left to the per-field Unique checks
// above.
func uniquenessKeyWidened(prev, next []string) bool {
	if len(prev) == 0 || len(next) <= len(prev) {
		return false
	}
	nextSet := make(map[string]bool, len(next))
	for _, k := range next {
		nextSet[k] = true
	}
	for _, k := range prev {
		if !nextSet[k] {
			return false // key narrowed/changed, not a pure widening
		}
	}
	return true
}

// Assign computes the version a candidate contract should receive given
// its predecessor (nil for a dataset's first contract), per §4.6's
// version-assignment rule.
func Assign(prev *contracts.Contract, next *contracts.Contract) Version {
	if prev == nil {
		return Version{Major: 1, Minor: 0, Patch: 0}
	}

	prevVersion, err := Parse(prev.Identity.Version)
	if err != nil {
		prevVersion = &Version{Major: 1, Minor: 0, Patch: 0}
	}

	switch ClassifyChange(prev, next) {
	case ChangeBreaking:
		return prevVersion.IncrementMajor()
	case ChangeAdditive:
		return prevVersion.IncrementMinor()
	default:
		return prevVersion.IncrementPatch()
	}
}

// BreakingWithoutMajorBump reports whether a caller-asserted version for
// next fails to bump MAJOR despite next being a breaking change relative
// to prev. Used by SG006; a nil prev or an unparsed assertedVersion means
// there is nothing to check.
func BreakingWithoutMajorBump(prev *contracts.Contract, next *contracts.Contract, assertedVersion string) bool {
	if prev == nil || assertedVersion == "" {
		return false
	}
	asserted, err := Parse(assertedVersion)
	if err != nil {
		return false
	}
	prevVersion, err := Parse(prev.Identity.Version)
	if err != nil {
		return false
	}
	if ClassifyChange(prev, next) != ChangeBreaking {
		return false
	}
	return asserted.Major <= prevVersion.Major
}
