package buildsystem

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
	"github.com/kdebuilder/kdebuilder/internal/module"
)

var qmakeAliases = []string{"qmake-qt5", "qmake5", "qmake-mac", "qmake", "qmake-qt4", "qmake4"}

type qmakeAdapter struct{}

func (a *qmakeAdapter) Kind() module.BuildSystemKind { return module.BuildSystemQMake }

func findQmake() (string, bool) {
	for _, alias := range qmakeAliases {
		if path, err := exec.LookPath(alias); err == nil {
			return path, true
		}
	}
	return "", false
}

func (a *qmakeAdapter) NeedsRefreshed(e *Env) string {
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

func (a *qmakeAdapter) CleanBuildSystem(e *Env) error { return cleanBuildDir(e) }

func (a *qmakeAdapter) CreateBuildSystem(e *Env) error {
	return os.MkdirAll(e.Module.BuildDir, 0755)
}

func (a *qmakeAdapter) Configure(e *Env) error {
	qmake, ok := findQmake()
	if !ok {
		return kdeerr.Runtimef("no qmake binary found (tried: %v)", qmakeAliases)
	}
	matches, _ := filepath.Glob(filepath.Join(e.Module.SourceDir, "*.pro"))
	if len(matches) != 1 {
		return kdeerr.Runtimef("expected exactly one .pro file in %s, found %d", e.Module.SourceDir, len(matches))
	}
	words, err := splitOptionWords(e, "configure-flags")
	if err != nil {
		return err
	}
	argv := append([]string{qmake}, words...)
	argv = append(argv, matches[0])
	return run(e, e.Module.BuildDir, argv, nil)
}

func (a *qmakeAdapter) Build(e *Env, optionsKey string) error {
	words, err := splitOptionWords(e, optionsKey)
	if err != nil {
		return err
	}
	n := resolveParallelism(e, false)
	words = append(words, "-j", fmt.Sprint(n))
	words = stripDashJ(words)
	return run(e, e.Module.BuildDir, append([]string{"make"}, words...), progressLineFunc(new(int), e.OnProgress))
}

func (a *qmakeAdapter) Install(e *Env, prefixArgs []string) error {
	return run(e, e.Module.BuildDir, append([]string{"make", "install"}, prefixArgs...), nil)
}

func (a *qmakeAdapter) Uninstall(e *Env, prefixArgs []string) error {
	if err := run(e, e.Module.BuildDir, append([]string{"make", "uninstall"}, prefixArgs...), nil); err != nil {
		return err
	}
	e.State.SetModuleValue(e.Module.Name, "last-install-rev", "")
	return nil
}

func (a *qmakeAdapter) RunTestsuite(e *Env) (bool, error) {
	err := run(e, e.Module.BuildDir, []string{"make", "check"}, nil)
	return err == nil, err
}
