package query

import (
	"testing"

	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

func TestRunBuiltinKeys(t *testing.T) {
	ctx := module.NewContext()
	m := module.New("kcoreaddons")
	m.SourceDir = "/src/kcoreaddons"
	m.BuildDir = "/build/kcoreaddons"
	m.InstallPrefix = "/usr/local"
	m.ProjectPath = "frameworks/kcoreaddons"
	m.Origin.FromModuleSet = "kf6"

	cases := map[string]string{
		"source-dir":   "/src/kcoreaddons",
		"build-dir":    "/build/kcoreaddons",
		"install-dir":  "/usr/local",
		"project-path": "frameworks/kcoreaddons",
		"module-set":   "kf6",
	}
	for key, want := range cases {
		if got := Run(m, ctx, key); got != want {
			t.Errorf("Run(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestRunBranchPrefersBranchOverTag(t *testing.T) {
	ctx := module.NewContext()
	m := module.New("kcoreaddons")
	m.SetOption("branch", option.String("master"))
	m.SetOption("tag", option.String("v5.0"))
	if got := Run(m, ctx, "branch"); got != "master" {
		t.Fatalf("got %q", got)
	}
}

func TestRunArbitraryOption(t *testing.T) {
	ctx := module.NewContext()
	m := module.New("kcoreaddons")
	m.SetOption("cmake-options", option.String("-DBUILD_TESTING=ON"))
	if got := Run(m, ctx, "cmake-options"); got != "-DBUILD_TESTING=ON" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatAll(t *testing.T) {
	ctx := module.NewContext()
	a := module.New("a")
	a.SourceDir = "/src/a"
	b := module.New("b")
	b.SourceDir = "/src/b"
	got := FormatAll([]*module.Module{a, b}, ctx, "source-dir")
	want := "a: /src/a\nb: /src/b\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestListInstalled(t *testing.T) {
	got := ListInstalled([]string{"a", "b", "c"})
	if got != "a\nb\nc" {
		t.Fatalf("got %q", got)
	}
}
