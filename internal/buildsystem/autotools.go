package buildsystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

type autotoolsAdapter struct{}

func (a *autotoolsAdapter) Kind() module.BuildSystemKind { return module.BuildSystemAutotools }

func (a *autotoolsAdapter) NeedsRefreshed(e *Env) string {
	if !exists(e.Module.BuildDir) {
		return "the build directory doesn't exist yet"
	}
	if exists(filepath.Join(e.Module.BuildDir, ".refresh-me")) {
		return "a .refresh-me file was found"
	}
	if e.optBool("refresh-build") {
		return "refresh-build is set"
	}
	if !exists(filepath.Join(e.Module.BuildDir, "Makefile")) {
		return "Makefile is missing"
	}
	return ""
}

func (a *autotoolsAdapter) CleanBuildSystem(e *Env) error { return cleanBuildDir(e) }

func (a *autotoolsAdapter) CreateBuildSystem(e *Env) error {
	return os.MkdirAll(e.Module.BuildDir, 0755)
}

func (a *autotoolsAdapter) Configure(e *Env) error {
	src := e.Module.SourceDir
	hasConfigureScript := exists(filepath.Join(src, "configure"))
	hasConfigureAc := exists(filepath.Join(src, "configure.in")) || exists(filepath.Join(src, "configure.ac"))
	hasAutogen := exists(filepath.Join(src, "autogen.sh"))

	if !hasConfigureScript && hasConfigureAc && hasAutogen {
		if err := run(e, src, []string{"./autogen.sh"}, nil); err != nil {
			return err
		}
		if exists(filepath.Join(src, "Makefile")) {
			if err := run(e, src, []string{"make", "distclean"}, nil); err != nil {
				return err
			}
		}
	}

	words, err := splitOptionWords(e, "configure-flags")
	if err != nil {
		return err
	}
	argv := append([]string{filepath.Join(src, "configure"), fmt.Sprintf("--prefix=%s", e.InstallPrefix)}, words...)
	return run(e, e.Module.BuildDir, argv, nil)
}

func (a *autotoolsAdapter) Build(e *Env, optionsKey string) error {
	words, err := splitOptionWords(e, optionsKey)
	if err != nil {
		return err
	}
	n := resolveParallelism(e, false)
	words = append(words, "-j", fmt.Sprint(n))
	words = stripDashJ(words)
	return run(e, e.Module.BuildDir, append([]string{"make"}, words...), progressLineFunc(new(int), e.OnProgress))
}

func (a *autotoolsAdapter) Install(e *Env, prefixArgs []string) error {
	return run(e, e.Module.BuildDir, append([]string{"make", "install"}, prefixArgs...), nil)
}

func (a *autotoolsAdapter) Uninstall(e *Env, prefixArgs []string) error {
	if err := run(e, e.Module.BuildDir, append([]string{"make", "uninstall"}, prefixArgs...), nil); err != nil {
		return err
	}
	e.State.SetModuleValue(e.Module.Name, "last-install-rev", "")
	return nil
}

func (a *autotoolsAdapter) RunTestsuite(e *Env) (bool, error) {
	err := run(e, e.Module.BuildDir, []string{"make", "check"}, nil)
	return err == nil, err
}
