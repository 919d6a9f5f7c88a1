package kdeprojects

import (
	"testing"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

func TestExpandKDEProjects(t *testing.T) {
	r := NewReaderFromMock("juk", "kcalc")
	e := NewExpander(r, nil, nil)
	ms := module.NewModuleSet("apps")
	ms.Repository = kdebuilder.RepoKDEProjects
	ms.Find = []string{"juk", "kcalc"}
	mods, err := e.Expand(ms)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 modules, got %d: %v", len(mods), mods)
	}
}

func TestExpandKDEProjectsRespectsIgnoreList(t *testing.T) {
	r := NewReaderFromMock("juk", "kcalc")
	e := NewExpander(r, nil, []string{"test/kcalc"})
	ms := module.NewModuleSet("apps")
	ms.Repository = kdebuilder.RepoKDEProjects
	ms.Find = []string{"juk", "kcalc"}
	mods, err := e.Expand(ms)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 1 || mods[0].Name != "juk" {
		t.Fatalf("expected only juk after ignoring kcalc, got %v", mods)
	}
}

func TestExpandQtProjectsSingleModule(t *testing.T) {
	e := NewExpander(nil, nil, nil)
	ms := module.NewModuleSet("qt6")
	ms.Repository = kdebuilder.RepoQtProjects
	mods, err := e.Expand(ms)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 1 || mods[0].Name != "qt6" || !mods[0].IsQt() {
		t.Fatalf("expected a single Qt module named qt6, got %v", mods)
	}
}

func TestExpandCustomBase(t *testing.T) {
	e := NewExpander(nil, map[string]string{"mybase": "https://example.org/"}, nil)
	ms := module.NewModuleSet("extra")
	ms.RepositoryBaseKey = "mybase"
	ms.Find = []string{"foo", "bar"}
	mods, err := e.Expand(ms)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 modules, got %v", mods)
	}
	v, ok := mods[0].Options.Get("repository")
	if !ok || v.AsString() != "https://example.org/foo" {
		t.Fatalf("expected computed repository URL, got %v", v)
	}
}
