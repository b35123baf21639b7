package skill

import (
	"fmt"
	"strings"
)

// Tier classifies a skill by composition depth. A skill may only compose
// skills of strictly lower tiers, so tier ordering alone rules out
// composition cycles.
type Tier string

const (
	// TierAtomic skills execute directly and declare no composition.
	TierAtomic Tier = "T0"
	// TierPattern skills compose atomic skills into reusable patterns.
	TierPattern Tier = "T1"
	// TierProcedural skills compose atomic and pattern skills into full
	// lab procedures.
	TierProcedural Tier = "T2"
)

// Tiers lists the valid tiers from lowest to highest.
func Tiers() []Tier {
	return []Tier{TierAtomic, TierPattern, TierProcedural}
}

// ParseTier converts the document form ("T0", "T1", "T2") to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (want T0, T1 or T2)", s)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierAtomic, TierPattern, TierProcedural:
		return true
	}
	return false
}

// Level returns the numeric depth of the tier (0, 1, 2), or -1 when t is
// not a known tier.
func (t Tier) Level() int {
	switch t {
	case TierAtomic:
		return 0
	case TierPattern:
		return 1
	case TierProcedural:
		return 2
	}
	return -1
}

// Label returns the human-readable tier name.
func (t Tier) Label() string {
	switch t {
	case TierAtomic:
		return "atomic"
	case TierPattern:
		return "pattern"
	case TierProcedural:
		return "procedural"
	}
	return "unknown"
}

// CanCompose reports whether a skill of tier t may reference a sub-skill
// of tier sub. References must go strictly downward.
func (t Tier) CanCompose(sub Tier) bool {
	return t.Valid() && sub.Valid() && sub.Level() < t.Level()
}

func (t Tier) String() string {
	return string(t)
}
