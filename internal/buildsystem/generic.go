package buildsystem

import (
	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

// genericAdapter drives custom-build-command, the fallback for a
// source tree that matches no known buildsystem.
type genericAdapter struct{}

func (a *genericAdapter) Kind() module.BuildSystemKind { return module.BuildSystemGeneric }

func (a *genericAdapter) NeedsRefreshed(e *Env) string { return "" }

func (a *genericAdapter) CleanBuildSystem(e *Env) error { return nil }

func (a *genericAdapter) CreateBuildSystem(e *Env) error { return nil }

func (a *genericAdapter) Configure(e *Env) error { return nil }

func (a *genericAdapter) command(e *Env) ([]string, error) {
	cmd := e.opt("custom-build-command")
	if cmd == "" {
		return nil, kdeerr.Configf("module %s has no recognized build system and no custom-build-command", e.Module.Name)
	}
	return splitOptionWords(e, "custom-build-command")
}

func (a *genericAdapter) Build(e *Env, optionsKey string) error {
	argv, err := a.command(e)
	if err != nil {
		return err
	}
	return run(e, e.Module.SourceDir, argv, progressLineFunc(new(int), e.OnProgress))
}

func (a *genericAdapter) Install(e *Env, prefixArgs []string) error { return nil }

func (a *genericAdapter) Uninstall(e *Env, prefixArgs []string) error { return nil }

func (a *genericAdapter) RunTestsuite(e *Env) (bool, error) { return true, nil }
