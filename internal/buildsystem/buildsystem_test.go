package buildsystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

func TestDetectCMakeBootstrap(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "CMakeLists.txt", "")
	write(t, dir, "bootstrap", "")
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemCMakeBootstrap {
		t.Fatalf("expected cmake-bootstrap, got %v", got)
	}
}

func TestDetectKDECMake(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "CMakeLists.txt", "")
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemKDECMake {
		t.Fatalf("expected KDECMake, got %v", got)
	}
}

func TestDetectKDEProjectWithoutCMakeListsStillKDECMake(t *testing.T) {
	dir := t.TempDir()
	if got := Detect(dir, module.BuildSystemAuto, true); got != module.BuildSystemKDECMake {
		t.Fatalf("expected KDECMake for a kde-project with no CMakeLists.txt yet, got %v", got)
	}
}

func TestDetectQMake(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "foo.pro", "")
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemQMake {
		t.Fatalf("expected QMake, got %v", got)
	}
}

func TestDetectAutotools(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "configure", "")
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemAutotools {
		t.Fatalf("expected autotools, got %v", got)
	}
}

func TestDetectMeson(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "meson.build", "")
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemMeson {
		t.Fatalf("expected meson, got %v", got)
	}
}

func TestDetectGenericFallback(t *testing.T) {
	dir := t.TempDir()
	if got := Detect(dir, module.BuildSystemAuto, false); got != module.BuildSystemGeneric {
		t.Fatalf("expected generic, got %v", got)
	}
}

func TestDetectOverrideWins(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "CMakeLists.txt", "")
	if got := Detect(dir, module.BuildSystemMeson, false); got != module.BuildSystemMeson {
		t.Fatalf("expected override to win, got %v", got)
	}
}

func TestParseProgressLinePercent(t *testing.T) {
	p, ok := parseProgressLine("[42%] Building CXX object foo.cpp.o")
	if !ok || p.Fraction != 0.42 {
		t.Fatalf("expected 0.42, got %v %v", p, ok)
	}
}

func TestParseProgressLineFraction(t *testing.T) {
	p, ok := parseProgressLine("[3/10] Linking CXX executable foo")
	if !ok || p.Have != 3 || p.Total != 10 {
		t.Fatalf("unexpected parse: %v %v", p, ok)
	}
}

func TestParseProgressLineUnrecognized(t *testing.T) {
	if _, ok := parseProgressLine("Scanning dependencies of target foo"); ok {
		t.Fatal("expected no match")
	}
}

func TestStripDashJBareStripped(t *testing.T) {
	got := stripDashJ([]string{"make", "-j"})
	if len(got) != 1 || got[0] != "make" {
		t.Fatalf("expected bare -j to be stripped, got %v", got)
	}
}

func TestStripDashJWithIntegerKept(t *testing.T) {
	got := stripDashJ([]string{"make", "-j", "4"})
	want := []string{"make", "-j", "4"}
	if len(got) != len(want) {
		t.Fatalf("expected -j 4 to survive, got %v", got)
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
