package option

import "testing"

func TestLookupSticky(t *testing.T) {
	mod := NewMap()
	ctx := NewMap()
	ctx.Set("#cxxflags", String("-O2"))
	mod.Set("cxxflags", String("-g"))

	v, ok := Lookup(mod, ctx, "cxxflags", false)
	if !ok {
		t.Fatal("expected value")
	}
	if v.AsString() != "-O2" {
		t.Fatalf("sticky context value should win, got %q", v.AsString())
	}
}

func TestLookupAppendMerge(t *testing.T) {
	mod := NewMap()
	ctx := NewMap()
	ctx.Set("cmake-options", String("-DFOO=1"))
	mod.Set("cmake-options", String("-DBAR=2"))

	v, ok := Lookup(mod, ctx, "cmake-options", false)
	if !ok {
		t.Fatal("expected value")
	}
	if got, want := v.AsString(), "-DFOO=1 -DBAR=2"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLookupQtUninherited(t *testing.T) {
	mod := NewMap()
	ctx := NewMap()
	ctx.Set("branch", String("master"))

	if _, ok := Lookup(mod, ctx, "branch", true); ok {
		t.Fatal("Qt modules must not inherit branch from context")
	}
	if v, ok := Lookup(mod, ctx, "branch", false); !ok || v.AsString() != "master" {
		t.Fatal("non-Qt modules should inherit branch from context")
	}
}

func TestLookupPlainFallback(t *testing.T) {
	mod := NewMap()
	ctx := NewMap()
	ctx.Set("num-cores", String("4"))

	v, ok := Lookup(mod, ctx, "num-cores", false)
	if !ok || v.AsString() != "4" {
		t.Fatalf("expected context fallback, got %v %v", v, ok)
	}

	mod.Set("num-cores", String("8"))
	v, ok = Lookup(mod, ctx, "num-cores", false)
	if !ok || v.AsString() != "8" {
		t.Fatalf("expected module override, got %v %v", v, ok)
	}
}

func TestMergeEnv(t *testing.T) {
	m := NewMap()
	if err := m.MergeEnv(map[string]string{"A": "1"}); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeEnv(map[string]string{"B": "2"}); err != nil {
		t.Fatal(err)
	}
	v, ok := m.Get("set-env")
	if !ok || v.Kind != KindMap {
		t.Fatal("expected a map value")
	}
	if v.Map["A"] != "1" || v.Map["B"] != "2" {
		t.Fatalf("expected merged env, got %v", v.Map)
	}
}

func TestWords(t *testing.T) {
	v := String(`-DCMAKE_BUILD_TYPE=Debug "-DFOO=bar baz"`)
	words, err := v.Words()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-DCMAKE_BUILD_TYPE=Debug", "-DFOO=bar baz"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("got %v, want %v", words, want)
		}
	}
}
