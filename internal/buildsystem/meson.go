package buildsystem

import (
	"os"
	"path/filepath"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

type mesonAdapter struct{}

func (a *mesonAdapter) Kind() module.BuildSystemKind { return module.BuildSystemMeson }

func (a *mesonAdapter) NeedsRefreshed(e *Env) string {
	if !exists(e.Module.BuildDir) {
		return "the build directory doesn't exist yet"
	}
	if exists(filepath.Join(e.Module.BuildDir, ".refresh-me")) {
		return "a .refresh-me file was found"
	}
	if e.optBool("refresh-build") {
		return "refresh-build is set"
	}
	if !exists(filepath.Join(e.Module.BuildDir, "build.ninja")) {
		return "build.ninja is missing"
	}
	return ""
}

func (a *mesonAdapter) CleanBuildSystem(e *Env) error { return cleanBuildDir(e) }

func (a *mesonAdapter) CreateBuildSystem(e *Env) error {
	return os.MkdirAll(e.Module.BuildDir, 0755)
}

func (a *mesonAdapter) Configure(e *Env) error {
	words, err := splitOptionWords(e, "configure-flags")
	if err != nil {
		return err
	}
	argv := append([]string{"meson", "setup", e.Module.BuildDir, "--prefix", e.InstallPrefix}, words...)
	return run(e, e.Module.SourceDir, argv, nil)
}

// Build uses ninja's own auto-parallelism ("advertises
// auto-parallelism").
func (a *mesonAdapter) Build(e *Env, optionsKey string) error {
	words, err := splitOptionWords(e, optionsKey)
	if err != nil {
		return err
	}
	argv := append([]string{"ninja"}, stripDashJ(words)...)
	return run(e, e.Module.BuildDir, argv, progressLineFunc(new(int), e.OnProgress))
}

func (a *mesonAdapter) Install(e *Env, prefixArgs []string) error {
	return run(e, e.Module.BuildDir, append([]string{"ninja", "install"}, prefixArgs...), nil)
}

func (a *mesonAdapter) Uninstall(e *Env, prefixArgs []string) error {
	if err := run(e, e.Module.BuildDir, append([]string{"ninja", "uninstall"}, prefixArgs...), nil); err != nil {
		return err
	}
	e.State.SetModuleValue(e.Module.Name, "last-install-rev", "")
	return nil
}

func (a *mesonAdapter) RunTestsuite(e *Env) (bool, error) {
	err := run(e, e.Module.BuildDir, []string{"meson", "test"}, nil)
	return err == nil, err
}
