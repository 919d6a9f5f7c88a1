package depgraph

import (
	"testing"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

func modules(names ...string) []*module.Module {
	var out []*module.Module
	for i, n := range names {
		m := module.New(n)
		m.CreationID = i
		out = append(out, m)
	}
	return out
}

func noFactory(string) (*module.Module, bool) { return nil, false }

func TestResolveTrivialCycleElimination(t *testing.T) {
	// scenario: juk depends on itself via an exact rule.
	d, _, err := ParseLegacy(`juk : juk`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("juk"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	if g.TrivialCycles != 1 {
		t.Fatalf("expected 1 trivial cycle eliminated, got %d", g.TrivialCycles)
	}
	n, _ := g.Node("juk")
	if len(n.Deps) != 0 {
		t.Fatalf("expected self-dependency to not appear in Deps, got %v", n.Deps)
	}
}

func TestDetectCyclesMutual(t *testing.T) {
	d, _, err := ParseLegacy(`
a : b
b : a
`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("a", "b"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	na, _ := g.Node("a")
	nb, _ := g.Node("b")
	if !na.Cyclic() || !nb.Cyclic() {
		t.Fatalf("expected both a and b to be flagged cyclic")
	}
}

func TestBuildOrderWithVotes(t *testing.T) {
	// A depends on nothing; B, C, D depend on A; E depends on B and C.
	// A should sort first (most dependents), E should sort last among
	// its siblings since it has no dependents of its own.
	d, _, err := ParseLegacy(`
b : a
c : a
d : a
e : b
e : c
`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("a", "b", "c", "d", "e"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	order := BuildOrder(g)
	pos := make(map[string]int)
	for i, n := range order {
		pos[n.Name] = i
	}
	if pos["a"] >= pos["b"] || pos["a"] >= pos["c"] || pos["a"] >= pos["d"] || pos["a"] >= pos["e"] {
		t.Fatalf("expected a (most depended-upon) to sort first, got order %v", namesOf(order))
	}
	if pos["b"] >= pos["e"] || pos["c"] >= pos["e"] {
		t.Fatalf("expected b and c to precede e, got order %v", namesOf(order))
	}
}

func namesOf(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestCopyUpDependenciesTransitiveClosure(t *testing.T) {
	d, _, err := ParseLegacy(`
b : a
c : b
`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("a", "b", "c"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	nc, _ := g.Node("c")
	if !nc.AllDeps["a"] || !nc.AllDeps["b"] {
		t.Fatalf("expected c's transitive closure to include a and b, got %v", nc.AllDeps)
	}
}

func TestIncludeDependenciesMarksBuildOnAll(t *testing.T) {
	d, _, err := ParseLegacy(`b : a`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("b"), d, noFactory, true)
	if err != nil {
		t.Fatal(err)
	}
	na, ok := g.Node("a")
	if !ok || !na.Build {
		t.Fatalf("expected dependency-only node a to be marked Build with includeDependencies=true")
	}
}

func TestDependencyNotBuiltByDefault(t *testing.T) {
	d, _, err := ParseLegacy(`b : a`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("b"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	na, ok := g.Node("a")
	if !ok || na.Build {
		t.Fatalf("expected dependency-only node a to not be marked Build without includeDependencies")
	}
}

func TestRenderTree(t *testing.T) {
	d, _, err := ParseLegacy(`b : a`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("b"), d, noFactory, false)
	if err != nil {
		t.Fatal(err)
	}
	tree := RenderTree(g, []string{"b"}, false)
	if tree == "" {
		t.Fatal("expected non-empty tree output")
	}
}

func TestAcyclicCrossCheckAgreesOnDAG(t *testing.T) {
	d, _, err := ParseLegacy(`b : a
c : b`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("a", "b", "c"), d, noFactory, true)
	if err != nil {
		t.Fatal(err)
	}
	acyclic, cyclicNames := AcyclicCrossCheck(g)
	if !acyclic || len(cyclicNames) != 0 {
		t.Fatalf("expected acyclic, got acyclic=%v cyclicNames=%v", acyclic, cyclicNames)
	}
}

func TestAcyclicCrossCheckAgreesOnCycle(t *testing.T) {
	d, _, err := ParseLegacy(`a : b
b : a`)
	if err != nil {
		t.Fatal(err)
	}
	g, err := Resolve(modules("a", "b"), d, noFactory, true)
	if err != nil {
		t.Fatal(err)
	}
	acyclic, cyclicNames := AcyclicCrossCheck(g)
	if acyclic {
		t.Fatal("expected cross-check to detect the cycle")
	}
	for _, name := range cyclicNames {
		n, ok := g.Node(name)
		if !ok || !n.Cyclic() {
			t.Fatalf("cross-check reported %q as cyclic but DFS disagreed", name)
		}
	}
}
