package main

import (
	"path/filepath"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

// moduleRelPath is the path segment a module contributes under
// source-dir/build-dir, preferring its kde-projects path when it has
// one so frameworks/kcoreaddons doesn't collide with a plasma project
// of the same short name.
func moduleRelPath(m *module.Module) string {
	if m.ProjectPath != "" {
		return m.ProjectPath
	}
	return m.Name
}

// assignDirs fills in SourceDir, BuildDir and InstallPrefix for every
// resolved module from the layered source-dir/build-dir/install-dir
// options, honoring a module's own override of any of the three.
func assignDirs(ctx *module.Context, mods []*module.Module, sourceBase, buildBase, installBase string) {
	for _, m := range mods {
		rel := moduleRelPath(m)
		m.SourceDir = m.OptionString(ctx, "source-dir", filepath.Join(sourceBase, rel))
		m.BuildDir = m.OptionString(ctx, "build-dir", filepath.Join(buildBase, rel))
		m.InstallPrefix = m.OptionString(ctx, "install-dir", installBase)
	}
}

// repoURLFor resolves the git remote a module updates against:
// an explicit "repository" option is used verbatim unless it's the
// literal sentinel "kde-projects", in which case (or when the module
// was only guessed) the module's kde-projects identity is used to
// build the conventional kde: alias URL.
func repoURLFor(m *module.Module, ctx *module.Context) (repoURL string, isKDEProject bool) {
	if v, ok := m.Option(ctx, "repository"); ok {
		s := v.AsString()
		if s != "" && s != "kde-projects" {
			return s, strings.HasPrefix(s, "kde:")
		}
	}
	path := m.ProjectPath
	if path == "" {
		path = m.Name
	}
	return "kde:" + path + ".git", true
}
