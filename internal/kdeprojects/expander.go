package kdeprojects

import (
	"sort"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// Expander implements resolve.Expander for all three module-set
// repository kinds: kde-projects via the metadata
// Reader, qt-projects as a single synthetic module, and a plain
// repository-base key as one module per selector with a computed URL.
type Expander struct {
	Reader *Reader
	// RepoBase is the user-declared git-repository-base table
	// (global "git-repository-base" option), keyed by name.
	RepoBase map[string]string
	// IgnoreModules holds kde-projects full paths to never expand
	// into a Module, ported from the metadata module's
	// dependencies/build-script-ignore file.
	IgnoreModules []string
}

// NewExpander builds an Expander over reader (nil is valid — a run
// with no kde-projects module-sets never needs one) and the resolved
// repository-base table.
func NewExpander(reader *Reader, repoBase map[string]string, ignoreModules []string) *Expander {
	return &Expander{Reader: reader, RepoBase: repoBase, IgnoreModules: ignoreModules}
}

func (e *Expander) Expand(ms *module.ModuleSet) ([]*module.Module, error) {
	switch ms.Repository {
	case kdebuilder.RepoKDEProjects:
		return e.expandKDEProjects(ms)
	case kdebuilder.RepoQtProjects:
		return e.expandQtProjects(ms)
	default:
		return e.expandCustomBase(ms)
	}
}

func (e *Expander) expandKDEProjects(ms *module.ModuleSet) ([]*module.Module, error) {
	ignored := make(map[string]bool, len(e.IgnoreModules))
	for _, name := range e.IgnoreModules {
		ignored[name] = true
	}

	seen := make(map[string]bool)
	var out []*module.Module
	for _, selector := range ms.Find {
		for _, info := range e.Reader.GetModulesForProject(selector) {
			if !info.Active || ignored[info.FullName] || seen[info.Name] {
				continue
			}
			if ms.IsIgnored(info.Name) || ms.IsIgnored(info.FullName) {
				continue
			}
			seen[info.Name] = true
			m := module.New(info.Name)
			m.ProjectPath = info.FullName
			m.Options.Set("repository", option.String(info.Repo))
			for _, key := range ms.Options.Keys() {
				v, _ := ms.Options.Get(key)
				if err := m.SetOption(key, v); err != nil {
					return nil, err
				}
			}
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// expandQtProjects builds the single synthetic Qt module: Qt's
// own init-repository script fans out the actual Qt module checkouts,
// so from the graph's perspective this is one buildable unit.
func (e *Expander) expandQtProjects(ms *module.ModuleSet) ([]*module.Module, error) {
	name := ms.Name
	if name == "" {
		name = "qt5"
	}
	m := module.New(name)
	m.BuildSystem = module.BuildSystemQt
	m.Options.Set("#qt-init-repository", option.Bool(true))
	for _, key := range ms.Options.Keys() {
		v, _ := ms.Options.Get(key)
		if err := m.SetOption(key, v); err != nil {
			return nil, err
		}
	}
	return []*module.Module{m}, nil
}

func (e *Expander) expandCustomBase(ms *module.ModuleSet) ([]*module.Module, error) {
	base := e.RepoBase[ms.RepositoryBaseKey]
	var out []*module.Module
	for _, selector := range ms.Find {
		if ms.IsIgnored(selector) {
			continue
		}
		m := module.New(selector)
		m.Options.Set("repository", option.String(base+selector))
		for _, key := range ms.Options.Keys() {
			v, _ := ms.Options.Get(key)
			if err := m.SetOption(key, v); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}
