// Package resolve implements the module resolver: expanding selectors
// against declared modules and module-sets, applying the layered
// option-inheritance order, and filtering by the ignore list.
package resolve

import (
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/config"
	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// Expander expands a module-set into concrete modules. The kde-projects
// case needs an external metadata source, so the
// resolver depends on this interface rather than importing
// internal/kdeprojects directly.
type Expander interface {
	// Expand returns the modules a module-set resolves to.
	Expand(ms *module.ModuleSet) ([]*module.Module, error)
}

// CmdlineOverrides are the --set-module-option-value overrides.
type CmdlineOverrides struct {
	Global    *option.OptionMap
	PerModule map[string]*option.OptionMap
}

// Input bundles everything the resolver needs.
type Input struct {
	Decls     []*config.Decl
	Blocks    []*config.OptionsBlock
	Selectors []string // empty means "everything"
	Ignore    []string
	Overrides CmdlineOverrides
	Expander  Expander
}

// Resolve expands selectors/module-sets and returns the ordered list
// of fully-merged Modules.
func Resolve(in Input) ([]*module.Module, error) {
	defined := make(map[string]*module.Module)
	definedSets := make(map[string]*module.ModuleSet)
	// referenced-but-not-yet-expanded: member name -> owning set
	referenced := make(map[string]*module.ModuleSet)

	var setOrder []*module.ModuleSet
	for _, d := range in.Decls {
		switch d.Kind {
		case config.DeclModule:
			defined[d.Name] = d.Module
		case config.DeclModuleSet:
			definedSets[d.Name] = d.ModuleSet
			setOrder = append(setOrder, d.ModuleSet)
			for _, name := range d.ModuleSet.Find {
				referenced[name] = d.ModuleSet
			}
		}
	}

	expandSet := func(ms *module.ModuleSet) ([]*module.Module, error) {
		mods, err := in.Expander.Expand(ms)
		if err != nil {
			return nil, kdeerr.Wrap(err, "expanding module-set "+ms.Name)
		}
		for _, m := range mods {
			m.Origin.FromModuleSet = ms.Name
			defined[m.Name] = m
			delete(referenced, m.Name)
		}
		return mods, nil
	}

	var ordered []*module.Module
	addedOnce := make(map[string]bool)
	add := func(m *module.Module) {
		if addedOnce[m.Name] {
			return
		}
		addedOnce[m.Name] = true
		ordered = append(ordered, m)
	}

	resolveSelector := func(sel string) error {
		if owner, ok := referenced[sel]; ok {
			mods, err := expandSet(owner)
			if err != nil {
				return err
			}
			for _, m := range mods {
				if m.Name == sel {
					add(m)
				}
			}
			return nil
		}
		if m, ok := defined[sel]; ok {
			add(m)
			return nil
		}
		if ms, ok := definedSets[sel]; ok {
			mods, err := expandSet(ms)
			if err != nil {
				return err
			}
			for _, m := range mods {
				add(m)
			}
			return nil
		}
		if strings.HasPrefix(sel, "+") {
			forced := module.NewModuleSet("")
			forced.Repository = "kde-projects"
			forced.Find = []string{strings.TrimPrefix(sel, "+")}
			mods, err := expandSet(forced)
			if err != nil {
				return err
			}
			for _, m := range mods {
				add(m)
			}
			return nil
		}
		// guessed kde-project module
		m := module.New(sel)
		m.Origin.Guessed = true
		add(m)
		return nil
	}

	if len(in.Selectors) == 0 {
		for _, ms := range setOrder {
			mods, err := expandSet(ms)
			if err != nil {
				return nil, err
			}
			for _, m := range mods {
				add(m)
			}
		}
		for _, d := range in.Decls {
			if d.Kind == config.DeclModule {
				add(d.Module)
			}
		}
	} else {
		for _, sel := range in.Selectors {
			if err := resolveSelector(sel); err != nil {
				return nil, err
			}
		}
	}

	// Step 3: any guessed module that a later-expanded set turns out to
	// contain for real gets replaced transparently, since expandSet
	// rewrites defined[name] and we re-fetch it below.
	for i, m := range ordered {
		if m.Origin.Guessed {
			if real, ok := defined[m.Name]; ok && real != m {
				ordered[i] = real
			}
		}
	}

	ignore := make(map[string]bool)
	for _, i := range in.Ignore {
		ignore[i] = true
	}

	var out []*module.Module
	for _, m := range ordered {
		if ignore[m.Name] || ignore[m.Origin.FromModuleSet] {
			continue
		}
		if err := applyLayeredOptions(m, in.Blocks, in.Overrides); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// applyLayeredOptions layers options on top of a module's own (which
// are already on m.Options): deferred options blocks (by ascending
// creation-id, so a later block wins), then cmdline global overrides,
// then cmdline per-module overrides.
func applyLayeredOptions(m *module.Module, blocks []*config.OptionsBlock, overrides CmdlineOverrides) error {
	for _, b := range blocks {
		applies := b.Target == m.Name
		if len(b.Distribute) > 0 {
			applies = false
			for _, name := range b.Distribute {
				if name == m.Name {
					applies = true
					break
				}
			}
		}
		if !applies {
			continue
		}
		for _, key := range b.Options.Keys() {
			v, _ := b.Options.Get(key)
			if err := m.SetOption(key, v); err != nil {
				return err
			}
		}
	}
	if overrides.Global != nil {
		for _, key := range overrides.Global.Keys() {
			v, _ := overrides.Global.Get(key)
			if err := m.SetOption(key, v); err != nil {
				return err
			}
		}
	}
	if per, ok := overrides.PerModule[m.Name]; ok {
		for _, key := range per.Keys() {
			v, _ := per.Get(key)
			if err := m.SetOption(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}
