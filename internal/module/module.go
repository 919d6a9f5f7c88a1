// Package module implements the Module/Module-set/BuildContext data
// model and the option-inheritance plumbing on top of internal/option.
package module

import (
	"strings"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// BuildSystemKind identifies which buildsystem adapter drives a module,
// either auto-detected or pinned via override-build-system.
type BuildSystemKind string

const (
	BuildSystemAuto           BuildSystemKind = ""
	BuildSystemCMakeBootstrap BuildSystemKind = "cmake-bootstrap"
	BuildSystemKDECMake       BuildSystemKind = "KDECMake"
	BuildSystemQMake          BuildSystemKind = "QMake"
	BuildSystemAutotools      BuildSystemKind = "autotools"
	BuildSystemMeson          BuildSystemKind = "meson"
	BuildSystemQt             BuildSystemKind = "Qt"
	BuildSystemGeneric        BuildSystemKind = "generic"
)

// Origin records where a Module came from, for diagnostics and for the
// "guessed kde-project" replace-on-resolve behavior.
type Origin struct {
	FromModuleSet string // name of the module-set that expanded to this module, if any
	Guessed       bool   // true until a guessed kde-project module is confirmed real
}

// Module is a buildable unit.
type Module struct {
	Name string

	SourceDir     string
	BuildDir      string
	InstallPrefix string

	VCS         kdebuilder.VCSKind
	BuildSystem BuildSystemKind

	Options *option.OptionMap
	Phases  *PhaseList

	Origin Origin

	// CreationID is the monotonically increasing id assigned by the
	// config reader, used to break build-order and deferred
	// option-block ties.
	CreationID int

	// PostBuildMessages is the queue of messages to print after the
	// run completes.
	PostBuildMessages []string

	// ProjectPath is the kde-projects metadata path (e.g.
	// "frameworks/kcoreaddons"), empty for non-kde-projects modules.
	ProjectPath string
}

// New creates a Module with the default phase list and an empty option map.
func New(name string) *Module {
	return &Module{
		Name:    name,
		VCS:     kdebuilder.VCSGit,
		Options: option.NewMap(),
		Phases:  NewPhaseList(),
	}
}

// IsQt reports whether this module's resolved buildsystem is one of the
// Qt-family adapters, which withhold a handful of keys from context
// inheritance.
func (m *Module) IsQt() bool {
	return m.BuildSystem == BuildSystemQt
}

// AddPostBuildMessage appends a message to be shown after the run.
func (m *Module) AddPostBuildMessage(msg string) {
	m.PostBuildMessages = append(m.PostBuildMessages, msg)
}

// SetOption stores key=value on the module, handling the phase-mutating
// convenience keys, the merge-append env map and the git-repository-base
// table specially.
func (m *Module) SetOption(key string, v option.Value) error {
	bare := key
	if option.IsSticky(key) {
		bare = key[1:]
	}
	if option.IsPhaseConvenienceKey(bare) {
		m.Phases.ApplyConvenienceKey(bare, v.AsString())
		return nil
	}
	switch bare {
	case "set-env":
		if v.Kind == option.KindMap {
			return m.Options.MergeEnv(v.Map)
		}
		return m.Options.MergeEnv(map[string]string{v.AsString(): ""})
	case "git-repository-base":
		if v.Kind == option.KindMap {
			for name, url := range v.Map {
				if err := m.Options.MergeGitRepositoryBase(name, url); err != nil {
					return err
				}
			}
			return nil
		}
		if f := strings.Fields(v.AsString()); len(f) == 2 && !strings.Contains(f[0], "=") {
			return m.Options.MergeGitRepositoryBase(f[0], f[1])
		}
		return m.Options.MergeGitRepositoryBase(v.AsString(), "")
	default:
		m.Options.Set(key, v)
		return nil
	}
}

// Option resolves key against this module with ctx as fallback context.
func (m *Module) Option(ctx *Context, key string) (option.Value, bool) {
	return option.Lookup(m.Options, ctx.Options, key, m.IsQt())
}

// OptionString is a convenience wrapper returning the string form of an
// option, or def if unset.
func (m *Module) OptionString(ctx *Context, key, def string) string {
	if v, ok := m.Option(ctx, key); ok {
		return v.AsString()
	}
	return def
}

// OptionBool is a convenience wrapper for boolean options.
func (m *Module) OptionBool(ctx *Context, key string, def bool) bool {
	if v, ok := m.Option(ctx, key); ok {
		if v.Kind == option.KindBool {
			return v.Bool
		}
		return v.AsString() == "true"
	}
	return def
}
