package debughints

import (
	"testing"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

func resolveGraph(t *testing.T, names ...string) *depgraph.Graph {
	t.Helper()
	var mods []*module.Module
	for i, n := range names {
		m := module.New(n)
		m.CreationID = i
		mods = append(mods, m)
	}
	g, err := depgraph.Resolve(mods, &depgraph.Data{}, func(string) (*module.Module, bool) { return nil, false }, false)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func node(t *testing.T, g *depgraph.Graph, name string) *depgraph.Node {
	t.Helper()
	n, ok := g.Node(name)
	if !ok {
		t.Fatalf("no such node %q", name)
	}
	return n
}

func TestRankFailuresRootCauseBeforeVictim(t *testing.T) {
	legacy := `
b : a
c : b
`
	data, _, err := depgraph.ParseLegacy(legacy)
	if err != nil {
		t.Fatal(err)
	}
	var mods []*module.Module
	for i, n := range []string{"a", "b", "c"} {
		m := module.New(n)
		m.CreationID = i
		mods = append(mods, m)
	}
	g, err := depgraph.Resolve(mods, data, func(string) (*module.Module, bool) { return nil, false }, true)
	if err != nil {
		t.Fatal(err)
	}

	failures := []Failure{
		{Node: node(t, g, "c"), Phase: PhaseBuild},
		{Node: node(t, g, "a"), Phase: PhaseBuild},
		{Node: node(t, g, "b"), Phase: PhaseBuild},
	}
	ranked := RankFailures(failures, 0)
	if ranked[0].Node.Name != "a" {
		t.Fatalf("expected root cause 'a' first, got %q", ranked[0].Node.Name)
	}
	if ranked[2].Node.Name != "c" {
		t.Fatalf("expected victim 'c' last, got %q", ranked[2].Node.Name)
	}
}

func TestRankFailuresPhaseImportance(t *testing.T) {
	g := resolveGraph(t, "x", "y")
	failures := []Failure{
		{Node: node(t, g, "x"), Phase: PhaseUpdate},
		{Node: node(t, g, "y"), Phase: PhaseInstall},
	}
	ranked := RankFailures(failures, 0)
	if ranked[0].Node.Name != "y" {
		t.Fatalf("expected install failure to rank first, got %q", ranked[0].Node.Name)
	}
}

func TestRankFailuresLowerFailureCountFirst(t *testing.T) {
	g := resolveGraph(t, "x", "y")
	failures := []Failure{
		{Node: node(t, g, "x"), Phase: PhaseBuild, FailureCount: 5},
		{Node: node(t, g, "y"), Phase: PhaseBuild, FailureCount: 1},
	}
	ranked := RankFailures(failures, 0)
	if ranked[0].Node.Name != "y" {
		t.Fatalf("expected fewer-failures module first, got %q", ranked[0].Node.Name)
	}
}

func TestRankFailuresLexicographicTiebreak(t *testing.T) {
	g := resolveGraph(t, "zebra", "apple")
	failures := []Failure{
		{Node: node(t, g, "zebra"), Phase: PhaseBuild},
		{Node: node(t, g, "apple"), Phase: PhaseBuild},
	}
	ranked := RankFailures(failures, 0)
	if ranked[0].Node.Name != "apple" {
		t.Fatalf("expected lexicographic tiebreak, got %q", ranked[0].Node.Name)
	}
}

func TestRankFailuresTruncatesToTopN(t *testing.T) {
	g := resolveGraph(t, "a", "b", "c", "d")
	var failures []Failure
	for _, name := range []string{"a", "b", "c", "d"} {
		failures = append(failures, Failure{Node: node(t, g, name), Phase: PhaseBuild})
	}
	ranked := RankFailures(failures, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(ranked))
	}
}
