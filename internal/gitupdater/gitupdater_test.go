package gitupdater

import (
	"os"
	"testing"
)

func TestDetectStateAbsent(t *testing.T) {
	dir := t.TempDir() + "/does-not-exist"
	st, err := DetectState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st != Absent {
		t.Fatalf("expected Absent, got %v", st)
	}
}

func TestDetectStateEmptyDirIsAbsent(t *testing.T) {
	dir := t.TempDir()
	st, err := DetectState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st != Absent {
		t.Fatalf("expected Absent for empty dir, got %v", st)
	}
}

func TestDetectStatePresentWithGit(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir+"/.git")
	st, err := DetectState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st != PresentWithGit {
		t.Fatalf("expected PresentWithGit, got %v", st)
	}
}

func TestDetectStatePresentWithoutGit(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, dir+"/README", "hi")
	st, err := DetectState(dir)
	if err != nil {
		t.Fatal(err)
	}
	if st != PresentWithoutGit {
		t.Fatalf("expected PresentWithoutGit, got %v", st)
	}
}

func TestResolveCheckoutCommitWins(t *testing.T) {
	c := ResolveCheckout(Source{Commit: "abc123", Branch: "master", Tag: "v1"})
	if c.Mode != ModeDetached || c.Ref != "abc123" {
		t.Fatalf("expected detached abc123, got %+v", c)
	}
}

func TestResolveCheckoutRevisionBeatsTagAndBranch(t *testing.T) {
	c := ResolveCheckout(Source{Revision: "HEAD~3", Branch: "master", Tag: "v1"})
	if c.Mode != ModeDetached || c.Ref != "HEAD~3" {
		t.Fatalf("expected detached HEAD~3, got %+v", c)
	}
}

func TestResolveCheckoutTagBeatsBranch(t *testing.T) {
	c := ResolveCheckout(Source{Tag: "refs/tags/v5.0", Branch: "master"})
	if c.Mode != ModeTag || c.Ref != "v5.0" {
		t.Fatalf("expected tag v5.0, got %+v", c)
	}
}

func TestResolveCheckoutModuleBranch(t *testing.T) {
	c := ResolveCheckout(Source{Branch: "work/feature", GlobalBranch: "master"})
	if c.Mode != ModeBranch || c.Ref != "work/feature" {
		t.Fatalf("expected work/feature, got %+v", c)
	}
}

func TestResolveCheckoutModuleBranchGroup(t *testing.T) {
	c := ResolveCheckout(Source{
		IsKDEProject: true,
		BranchGroup:  "kf6-qt6",
		ResolveBranchGroup: func(g string) (string, bool) {
			if g == "kf6-qt6" {
				return "master", true
			}
			return "", false
		},
	})
	if c.Mode != ModeBranch || c.Ref != "master" {
		t.Fatalf("expected master from branch group, got %+v", c)
	}
}

func TestResolveCheckoutModuleBranchGroupUnresolvedFallsBackToMaster(t *testing.T) {
	c := ResolveCheckout(Source{
		IsKDEProject:       true,
		BranchGroup:        "unknown-group",
		ResolveBranchGroup: func(string) (string, bool) { return "", false },
	})
	if c.Mode != ModeBranch || c.Ref != "master" {
		t.Fatalf("expected master fallback, got %+v", c)
	}
}

func TestResolveCheckoutInheritedBranch(t *testing.T) {
	c := ResolveCheckout(Source{GlobalBranch: "kf6-qt6-stable"})
	if c.Mode != ModeBranch || c.Ref != "kf6-qt6-stable" {
		t.Fatalf("expected global branch, got %+v", c)
	}
}

func TestResolveCheckoutInheritedBranchGroup(t *testing.T) {
	c := ResolveCheckout(Source{
		IsKDEProject:      true,
		GlobalBranchGroup: "kf6-qt6",
		ResolveBranchGroup: func(g string) (string, bool) {
			return "kf6-qt6-branch", true
		},
	})
	if c.Mode != ModeBranch || c.Ref != "kf6-qt6-branch" {
		t.Fatalf("expected resolved global branch group, got %+v", c)
	}
}

func TestResolveCheckoutNoneWhenNothingSet(t *testing.T) {
	c := ResolveCheckout(Source{})
	if c.Mode != ModeNone {
		t.Fatalf("expected ModeNone, got %+v", c)
	}
}

func TestParseGitUser(t *testing.T) {
	name, email, ok := parseGitUser("Jane Dev <jane@example.com>")
	if !ok || name != "Jane Dev" || email != "jane@example.com" {
		t.Fatalf("unexpected parse: %q %q %v", name, email, ok)
	}
}

func TestParseGitUserInvalid(t *testing.T) {
	if _, _, ok := parseGitUser("not-an-email"); ok {
		t.Fatal("expected parse failure")
	}
}

func TestIsValidRemoteName(t *testing.T) {
	cases := map[string]bool{
		"origin":       true,
		"kde-upstream": true,
		"a.b_c":        true,
		"has space":    false,
		"":             false,
	}
	for name, want := range cases {
		if got := isValidRemoteName(name); got != want {
			t.Errorf("isValidRemoteName(%q) = %v, want %v", name, got, want)
		}
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
