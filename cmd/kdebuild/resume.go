package main

import (
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/state"
)

const globalStateKey = "global"

// resumeFlags bundles the resume/stop-range cmdline flags.
type resumeFlags struct {
	resume          bool
	resumeFrom      string
	resumeAfter     string
	stopBefore      string
	stopAfter       string
	rebuildFailures bool
}

// applyResume narrows order per the resume flags: a name-set filter
// (--resume / --rebuild-failures, backed by persisted state) applied
// first, then a contiguous from/after..before/after range trim.
func applyResume(order []*depgraph.Node, st *state.Store, f resumeFlags) []*depgraph.Node {
	if f.resume {
		order = filterByNames(order, spaceList(st, "resume-list"))
	}
	if f.rebuildFailures {
		order = filterByNames(order, spaceList(st, "last-failed-module-list"))
	}

	start := 0
	switch {
	case f.resumeFrom != "":
		start = indexOfName(order, f.resumeFrom)
	case f.resumeAfter != "":
		start = indexOfName(order, f.resumeAfter) + 1
	}
	if start < 0 {
		start = 0
	}
	if start > len(order) {
		start = len(order)
	}

	end := len(order)
	switch {
	case f.stopBefore != "":
		if i := indexOfName(order, f.stopBefore); i >= 0 {
			end = i
		}
	case f.stopAfter != "":
		if i := indexOfName(order, f.stopAfter); i >= 0 {
			end = i + 1
		}
	}
	if end < start {
		end = start
	}
	return order[start:end]
}

func indexOfName(order []*depgraph.Node, name string) int {
	for i, n := range order {
		if n.Name == name {
			return i
		}
	}
	return -1
}

func filterByNames(order []*depgraph.Node, names []string) []*depgraph.Node {
	if len(names) == 0 {
		return order
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []*depgraph.Node
	for _, n := range order {
		if want[n.Name] {
			out = append(out, n)
		}
	}
	return out
}

func spaceList(st *state.Store, key string) []string {
	v, ok := st.GetModuleValue(globalStateKey, key)
	if !ok || v == "" {
		return nil
	}
	return strings.Fields(v)
}

// recordFailureList persists the remaining (not-yet-built) module names
// as resume-list and last-failed-module-list the first time a run has a
// build failure.
func recordFailureList(st *state.Store, order []*depgraph.Node, failedIdx int) {
	if _, ok := st.GetModuleValue(globalStateKey, "resume-list"); ok {
		return // only the first failure this run sets the resume point
	}
	var remaining []string
	for _, n := range order[failedIdx:] {
		remaining = append(remaining, n.Name)
	}
	st.SetModuleValue(globalStateKey, "resume-list", strings.Join(remaining, " "))
	st.SetModuleValue(globalStateKey, "last-failed-module-list", strings.Join(remaining, " "))
}
