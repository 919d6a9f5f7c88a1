package kdeprojects

import "testing"

func TestProjectPathMatchesWildcardSearch(t *testing.T) {
	cases := []struct {
		path, search string
		want         bool
	}{
		{"kde/kdelibs", "kdelibs", true},
		{"kde/kdelibs/nepomuk-core", "kdelibs", true},
		{"kde/kdelibs/nepomuk-core", "kdelibs/*", true},
		{"kde/kdelibs/nepomuk-core", "other", false},
		{"frameworks/kcoreaddons", "frameworks/*", true},
		{"frameworks/kcoreaddons", "kcoreaddons", true},
		{"a/a/b/c", "a/b/*", true},
		{"a/b/c", "x/*", false},
	}
	for _, c := range cases {
		got := projectPathMatchesWildcardSearch(c.path, c.search)
		if got != c.want {
			t.Errorf("projectPathMatchesWildcardSearch(%q, %q) = %v, want %v", c.path, c.search, got, c.want)
		}
	}
}

func TestGetModulesForProjectDirect(t *testing.T) {
	r := NewReaderFromMock("juk", "kcalc")
	mods := r.GetModulesForProject("juk")
	if len(mods) != 1 || mods[0].Name != "juk" {
		t.Fatalf("expected exact match for juk, got %v", mods)
	}
}

func TestGetModulesForProjectWildcard(t *testing.T) {
	r := &Reader{repositories: map[string]*ProjectInfo{
		"kcoreaddons": {FullName: "frameworks/kcoreaddons", Name: "kcoreaddons", Active: true},
		"kconfig":     {FullName: "frameworks/kconfig", Name: "kconfig", Active: true},
		"juk":         {FullName: "kde/juk", Name: "juk", Active: true},
	}}
	mods := r.GetModulesForProject("frameworks")
	if len(mods) != 2 {
		t.Fatalf("expected 2 frameworks modules, got %v", mods)
	}
	for _, m := range mods {
		if m.FoundBy != "wildcard" {
			t.Fatalf("expected implicit wildcard search to mark found_by=wildcard, got %v", m.FoundBy)
		}
	}
}

func TestGetModulesForProjectExplicitWildcard(t *testing.T) {
	r := &Reader{repositories: map[string]*ProjectInfo{
		"kcoreaddons": {FullName: "frameworks/kcoreaddons", Name: "kcoreaddons", Active: true},
	}}
	mods := r.GetModulesForProject("frameworks/*")
	if len(mods) != 1 {
		t.Fatalf("expected 1 match, got %v", mods)
	}
}
