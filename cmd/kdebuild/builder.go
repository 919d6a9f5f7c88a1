package main

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/buildsystem"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

// build implements pipeline.BuildFunc: configure/build/test/install (or
// just uninstall) for one module.
func (r *runState) build(ctx context.Context, name string) error {
	m, ok := r.mods[name]
	if !ok || m == nil {
		return fmt.Errorf("no module declaration for %s", name)
	}
	if m.Phases.Has(kdebuilder.PhaseUninstall) {
		return r.uninstall(ctx, m)
	}
	if !m.Phases.Has(kdebuilder.PhaseBuild) {
		return nil
	}

	kind := m.BuildSystem
	isKDE := m.ProjectPath != ""
	if kind == module.BuildSystemAuto {
		kind = buildsystem.Detect(m.SourceDir, module.BuildSystemAuto, isKDE)
		m.BuildSystem = kind
	}
	adapter := buildsystem.New(kind)

	e := r.envFor(ctx, m)

	if reason := adapter.NeedsRefreshed(e); reason != "" {
		r.moduleLog(name).Debugf("refreshing build system: %s", reason)
		if err := adapter.CleanBuildSystem(e); err != nil {
			return err
		}
	}
	if err := adapter.CreateBuildSystem(e); err != nil {
		return err
	}
	if err := adapter.Configure(e); err != nil {
		return err
	}
	if err := adapter.Build(e, "make-options"); err != nil {
		return err
	}

	if m.Phases.Has(kdebuilder.PhaseTest) {
		if ok, err := adapter.RunTestsuite(e); err != nil {
			r.moduleLog(name).Warnf("test suite failed: %v", err)
		} else if !ok {
			r.moduleLog(name).Warn("test suite reported failures")
		}
	}

	if m.Phases.Has(kdebuilder.PhaseInstall) {
		if err := adapter.Install(e, nil); err != nil {
			return err
		}
		if r.stateStore != nil {
			r.stateStore.SetModuleValue(name, "last-install-rev", "installed")
			r.stateStore.ResetFailureCount(name)
		}
	}

	return nil
}

func (r *runState) uninstall(ctx context.Context, m *module.Module) error {
	kind := m.BuildSystem
	if kind == module.BuildSystemAuto {
		kind = buildsystem.Detect(m.SourceDir, module.BuildSystemAuto, m.ProjectPath != "")
	}
	adapter := buildsystem.New(kind)
	e := r.envFor(ctx, m)
	return adapter.Uninstall(e, nil)
}

func (r *runState) envFor(ctx context.Context, m *module.Module) *buildsystem.Env {
	numCores := m.OptionString(r.ctx, "num-cores", "auto")
	auto := numCores == "auto" || numCores == ""
	n := 0
	if !auto {
		if v, err := strconv.Atoi(numCores); err == nil {
			n = v
		}
		if n <= 0 {
			n = runtime.NumCPU()
			if n <= 0 {
				n = 4
			}
		}
	}

	qtDir := m.OptionString(r.ctx, "qt-install-dir", "")

	return &buildsystem.Env{
		Ctx:           ctx,
		Module:        m,
		State:         r.stateStore,
		Log:           r.moduleLog(m.Name).Writer(),
		Pretend:       r.pretend,
		InstallPrefix: m.InstallPrefix,
		QtInstallDir:  qtDir,
		NumCoresAuto:  auto,
		NumCores:      n,
		Getenv: func(key string) (string, bool) {
			v, ok := m.Option(r.ctx, key)
			if !ok {
				return "", false
			}
			return v.AsString(), true
		},
		Setenv: func(key, value string) {
			r.ctx.QueueEnv(key, value, false)
		},
	}
}
