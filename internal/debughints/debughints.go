// Package debughints ranks a failed run's module failures by
// "interestingness": root causes before their victims, rarer
// failure phases before common ones, fresh failures before
// long-standing ones.
package debughints

import (
	"sort"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
)

// Phase is the phase a module's build failed in.
type Phase int

const (
	PhaseOther Phase = iota
	PhaseUpdate
	PhaseBuild
	PhaseTest
	PhaseInstall
)

// phaseRank implements rule 4: install > test > build > update > other.
func phaseRank(p Phase) int {
	switch p {
	case PhaseInstall:
		return 4
	case PhaseTest:
		return 3
	case PhaseBuild:
		return 2
	case PhaseUpdate:
		return 1
	default:
		return 0
	}
}

// Failure is one module's failure record, as fed into RankFailures.
type Failure struct {
	Node         *depgraph.Node
	Phase        Phase
	FailureCount int // persisted failure-count across runs
}

// RankFailures orders failures from most to least interesting per a
// 6-rule strict-weak comparator, and truncates to at most topN.
func RankFailures(failures []Failure, topN int) []Failure {
	out := make([]Failure, len(failures))
	copy(out, failures)

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func less(a, b Failure) bool {
	// Rule 1: a transitive dependency of the other outranks it — a
	// root cause outranks its victims.
	aDepOfB := b.Node.AllDeps[a.Node.Name]
	bDepOfA := a.Node.AllDeps[b.Node.Name]
	if aDepOfB && !bDepOfA {
		return true
	}
	if bDepOfA && !aDepOfB {
		return false
	}

	// Rule 2: root-cause-ness — no deps beats having deps.
	aLeaf := len(a.Node.Deps) == 0
	bLeaf := len(b.Node.Deps) == 0
	if aLeaf != bLeaf {
		return aLeaf
	}

	// Rule 3: popularity — more dependents (votes) first.
	if len(a.Node.Dependents) != len(b.Node.Dependents) {
		return len(a.Node.Dependents) > len(b.Node.Dependents)
	}

	// Rule 4: phase importance.
	pa, pb := phaseRank(a.Phase), phaseRank(b.Phase)
	if pa != pb {
		return pa > pb
	}

	// Rule 5: lower persisted failure-count is more interesting.
	if a.FailureCount != b.FailureCount {
		return a.FailureCount < b.FailureCount
	}

	// Rule 6: lexicographic tiebreak.
	return a.Node.Name < b.Node.Name
}
