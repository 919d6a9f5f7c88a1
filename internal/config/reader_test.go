package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "included.rc", `
global
  _mygroup kf5-qt5
  branch-group ${_mygroup}
end global
`)
	rc := writeFile(t, dir, "kdesrc-buildrc", `
include included.rc

global
  num-cores 8
  cmake-options -DBUILD_TESTING=ON
end global

module-set kf5
  repository kde-projects
  use-modules kcoreaddons kconfig
end module-set

module standalone
  cmake-options -DFOO=bar
  branch master
end module
`)
	res, err := Read(rc)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := res.Global.Get("branch-group"); !ok || v.AsString() != "kf5-qt5" {
		t.Fatalf("expected expanded branch-group, got %v %v", v, ok)
	}
	if v, ok := res.Global.Get("num-cores"); !ok || v.AsString() != "8" {
		t.Fatalf("expected num-cores 8, got %v %v", v, ok)
	}
	var sawSet, sawModule bool
	for _, d := range res.Decls {
		switch d.Kind {
		case DeclModuleSet:
			sawSet = true
			if d.ModuleSet.Name != "kf5" || d.ModuleSet.Repository != "kde-projects" {
				t.Fatalf("unexpected module-set: %+v", d.ModuleSet)
			}
			if len(d.ModuleSet.Find) != 2 {
				t.Fatalf("expected 2 use-modules, got %v", d.ModuleSet.Find)
			}
		case DeclModule:
			sawModule = true
			if d.Name != "standalone" {
				t.Fatalf("unexpected module: %+v", d.Module)
			}
		}
	}
	if !sawSet || !sawModule {
		t.Fatal("expected both a module-set and a module declaration")
	}
}

func TestReadDuplicateModuleNameIsConfigError(t *testing.T) {
	dir := t.TempDir()
	rc := writeFile(t, dir, "kdesrc-buildrc", `
module foo
end module
module foo
end module
`)
	if _, err := Read(rc); err == nil {
		t.Fatal("expected a config error for duplicate module names")
	}
}

func TestReadMissingIncludeIsConfigError(t *testing.T) {
	dir := t.TempDir()
	rc := writeFile(t, dir, "kdesrc-buildrc", `include does-not-exist.rc`)
	if _, err := Read(rc); err == nil {
		t.Fatal("expected a config error for a missing include file")
	}
}
