// Package query implements the --query subcommand: reporting a
// single fact about each selected module without running any phase.
package query

import (
	"fmt"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/buildsystem"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

// Key is one of the built-in query targets; any other string is
// treated as an arbitrary option name.
type Key string

const (
	KeySourceDir   Key = "source-dir"
	KeyBuildDir    Key = "build-dir"
	KeyInstallDir  Key = "install-dir"
	KeyProjectPath Key = "project-path"
	KeyBranch      Key = "branch"
	KeyModuleSet   Key = "module-set"
	KeyBuildSystem Key = "build-system"
)

// Run evaluates key for m and returns its string value. ctx supplies
// the option-inheritance fallback for arbitrary-option queries and
// "branch" resolution.
func Run(m *module.Module, ctx *module.Context, key string) string {
	switch Key(key) {
	case KeySourceDir:
		return m.SourceDir
	case KeyBuildDir:
		return m.BuildDir
	case KeyInstallDir:
		return m.InstallPrefix
	case KeyProjectPath:
		return m.ProjectPath
	case KeyBranch:
		return branchOf(m, ctx)
	case KeyModuleSet:
		return m.Origin.FromModuleSet
	case KeyBuildSystem:
		return buildSystemOf(m)
	default:
		return m.OptionString(ctx, key, "")
	}
}

func branchOf(m *module.Module, ctx *module.Context) string {
	if v, ok := m.Option(ctx, "branch"); ok {
		return v.AsString()
	}
	if v, ok := m.Option(ctx, "tag"); ok {
		return v.AsString()
	}
	return ""
}

func buildSystemOf(m *module.Module) string {
	if m.BuildSystem != module.BuildSystemAuto {
		return string(m.BuildSystem)
	}
	kind := buildsystem.Detect(m.SourceDir, module.BuildSystemAuto, m.ProjectPath != "")
	return string(kind)
}

// FormatAll renders one "module: value" line per module, in the order given.
func FormatAll(mods []*module.Module, ctx *module.Context, key string) string {
	var b strings.Builder
	for _, m := range mods {
		fmt.Fprintf(&b, "%s: %s\n", m.Name, Run(m, ctx, key))
	}
	return b.String()
}

// ListInstalled formats the --list-installed output: one module name
// per line, already sorted by the caller (internal/state.InstalledModules).
func ListInstalled(names []string) string {
	return strings.Join(names, "\n")
}
