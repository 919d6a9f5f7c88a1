package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/state"
)

func newTestOrder(names ...string) []*depgraph.Node {
	out := make([]*depgraph.Node, len(names))
	for i, n := range names {
		out[i] = &depgraph.Node{Name: n}
	}
	return out
}

func namesOf(order []*depgraph.Node) []string {
	out := make([]string, len(order))
	for i, n := range order {
		out[i] = n.Name
	}
	return out
}

func TestApplyResumeFromAfter(t *testing.T) {
	order := newTestOrder("a", "b", "c", "d")
	st, err := state.Load("")
	require.NoError(t, err)

	got := applyResume(order, st, resumeFlags{resumeFrom: "b"})
	if diff := cmp.Diff([]string{"b", "c", "d"}, namesOf(got)); diff != "" {
		t.Errorf("resume-from mismatch (-want +got):\n%s", diff)
	}

	got = applyResume(order, st, resumeFlags{resumeAfter: "b"})
	assert.Equal(t, []string{"c", "d"}, namesOf(got))
}

func TestApplyResumeStopBeforeAfter(t *testing.T) {
	order := newTestOrder("a", "b", "c", "d")
	st, err := state.Load("")
	require.NoError(t, err)

	got := applyResume(order, st, resumeFlags{stopBefore: "c"})
	assert.Equal(t, []string{"a", "b"}, namesOf(got))

	got = applyResume(order, st, resumeFlags{stopAfter: "b"})
	assert.Equal(t, []string{"a", "b"}, namesOf(got))
}

func TestApplyResumeRecordedList(t *testing.T) {
	order := newTestOrder("a", "b", "c")
	st, err := state.Load("")
	require.NoError(t, err)

	recordFailureList(st, order, 1)
	got := applyResume(order, st, resumeFlags{resume: true})
	assert.Equal(t, []string{"b", "c"}, namesOf(got))

	// a second, earlier failure in the same run must not move the
	// already-recorded resume point.
	recordFailureList(st, order, 0)
	v, ok := st.GetModuleValue(globalStateKey, "resume-list")
	require.True(t, ok)
	assert.Equal(t, "b c", v)
}
