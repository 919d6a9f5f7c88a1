package resolve

import (
	"testing"

	"github.com/kdebuilder/kdebuilder/internal/config"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

type fakeExpander struct{}

func (fakeExpander) Expand(ms *module.ModuleSet) ([]*module.Module, error) {
	var out []*module.Module
	for _, name := range ms.Find {
		m := module.New(name)
		out = append(out, m)
	}
	return out, nil
}

func TestResolveEmptySelectorsExpandsAll(t *testing.T) {
	ms := module.NewModuleSet("kf5")
	ms.Repository = "kde-projects"
	ms.Find = []string{"kcoreaddons", "kconfig"}

	decls := []*config.Decl{
		{Kind: config.DeclModuleSet, Name: "kf5", ModuleSet: ms},
	}
	out, err := Resolve(Input{Decls: decls, Expander: fakeExpander{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 modules, got %d: %v", len(out), out)
	}
}

func TestResolveIgnoreFilter(t *testing.T) {
	ms := module.NewModuleSet("kf5")
	ms.Find = []string{"kcoreaddons", "kconfig"}
	decls := []*config.Decl{{Kind: config.DeclModuleSet, Name: "kf5", ModuleSet: ms}}
	out, err := Resolve(Input{Decls: decls, Ignore: []string{"kconfig"}, Expander: fakeExpander{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "kcoreaddons" {
		t.Fatalf("expected only kcoreaddons, got %v", out)
	}
}

func TestResolveCmdlinePerModuleOverride(t *testing.T) {
	m := module.New("foo")
	decls := []*config.Decl{{Kind: config.DeclModule, Name: "foo", Module: m}}
	overrides := CmdlineOverrides{PerModule: map[string]*option.OptionMap{
		"foo": func() *option.OptionMap {
			om := option.NewMap()
			om.Set("branch", option.String("work/feature"))
			return om
		}(),
	}}
	out, err := Resolve(Input{Decls: decls, Expander: fakeExpander{}, Overrides: overrides})
	if err != nil {
		t.Fatal(err)
	}
	v, ok := out[0].Options.Get("branch")
	if !ok || v.AsString() != "work/feature" {
		t.Fatalf("expected cmdline override to win, got %v %v", v, ok)
	}
}

func TestResolveDuplicateSelectorDeduped(t *testing.T) {
	m := module.New("foo")
	decls := []*config.Decl{{Kind: config.DeclModule, Name: "foo", Module: m}}
	out, err := Resolve(Input{Decls: decls, Selectors: []string{"foo", "foo"}, Expander: fakeExpander{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected selector to be deduplicated, got %d", len(out))
	}
}
