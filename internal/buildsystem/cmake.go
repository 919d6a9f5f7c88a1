package buildsystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/kdebuilder/kdebuilder/internal/module"
)

var allowedGenerators = map[string]bool{
	"Unix Makefiles":     true,
	"Ninja":              true,
	"Ninja Multi-Config": true,
}

type cmakeAdapter struct {
	bootstrap bool
}

func (a *cmakeAdapter) Kind() module.BuildSystemKind {
	if a.bootstrap {
		return module.BuildSystemCMakeBootstrap
	}
	return module.BuildSystemKDECMake
}

func (a *cmakeAdapter) marker(e *Env) string {
	if a.usesNinja(e) {
		return "build.ninja"
	}
	return "Makefile"
}

func (a *cmakeAdapter) usesNinja(e *Env) bool {
	return strings.HasPrefix(e.opt("cmake-generator"), "Ninja")
}

func (a *cmakeAdapter) NeedsRefreshed(e *Env) string {
	buildDir := e.Module.BuildDir
	if !exists(buildDir) {
		return "the build directory doesn't exist yet"
	}
	if exists(filepath.Join(buildDir, ".refresh-me")) {
		return "a .refresh-me file was found"
	}
	if e.optBool("refresh-build") {
		return "refresh-build is set"
	}
	if !exists(filepath.Join(buildDir, "CMakeCache.txt")) {
		return "CMakeCache.txt is missing"
	}
	if !exists(filepath.Join(buildDir, a.marker(e))) {
		return fmt.Sprintf("%s is missing", a.marker(e))
	}
	return ""
}

func (a *cmakeAdapter) CleanBuildSystem(e *Env) error {
	return cleanBuildDir(e)
}

func (a *cmakeAdapter) CreateBuildSystem(e *Env) error {
	return os.MkdirAll(e.Module.BuildDir, 0755)
}

func (a *cmakeAdapter) Configure(e *Env) error {
	removeStrayCache(e.Module.SourceDir)
	removeStrayCache(e.Module.BuildDir)

	argv := a.buildArgv(e)
	dg := digest(argv)
	if !e.optBool("reconfigure") {
		if prev, ok := e.State.GetModuleValue(e.Module.Name, "last-cmake-options"); ok && prev == dg {
			if exists(filepath.Join(e.Module.BuildDir, a.marker(e))) {
				return nil
			}
		}
	}

	full := append([]string{"cmake"}, argv...)
	full = append(full, e.Module.SourceDir)
	if err := run(e, e.Module.BuildDir, full, nil); err != nil {
		return err
	}
	e.State.SetModuleValue(e.Module.Name, "last-cmake-options", dg)
	return nil
}

func (a *cmakeAdapter) buildArgv(e *Env) []string {
	words, _ := splitOptionWords(e, "cmake-options")
	var argv []string
	skipNext := false
	for i := 0; i < len(words); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		w := words[i]
		if w == "-G" {
			skipNext = true
			continue
		}
		if strings.HasPrefix(w, "-DCMAKE_TOOLCHAIN_FILE=") {
			continue
		}
		argv = append(argv, w)
	}

	generator := e.opt("cmake-generator")
	if generator == "" {
		generator = "Unix Makefiles"
	}
	if allowedGenerators[generator] {
		argv = append(argv, "-G", generator)
	}

	toolchain := e.opt("cmake-toolchain")
	usesToolchain := toolchain != "" && fileReadable(toolchain)
	if usesToolchain {
		argv = append(argv, "-DCMAKE_TOOLCHAIN_FILE="+toolchain)
	} else {
		prefixes := e.InstallPrefix
		if e.QtInstallDir != "" && e.QtInstallDir != e.InstallPrefix {
			prefixes = e.InstallPrefix + ";" + e.QtInstallDir
		}
		for _, v := range []string{"CMAKE_PREFIX_PATH", "CMAKE_MODULE_PATH", "QT_PLUGIN_PATH", "XDG_DATA_DIRS"} {
			if e.Setenv != nil {
				e.Setenv(v, prefixes)
			}
		}
	}

	for _, dir := range strings.Fields(e.opt("do-not-compile")) {
		argv = append(argv, fmt.Sprintf("-DBUILD_%s=OFF", dir))
	}

	if cxx := e.opt("cxxflags"); cxx != "" && !hasFlag(argv, "-DCMAKE_CXX_FLAGS") {
		argv = append(argv, "-DCMAKE_CXX_FLAGS:STRING="+cxx)
	}

	argv = append(argv, "-DCMAKE_INSTALL_PREFIX="+e.InstallPrefix)

	if e.QtInstallDir != "" && e.QtInstallDir != e.InstallPrefix && !hasFlag(argv, "-DCMAKE_PREFIX_PATH") {
		argv = append(argv, "-DCMAKE_PREFIX_PATH="+e.QtInstallDir)
	}

	if e.optBool("run-tests") {
		argv = append(argv, "-DBUILD_TESTING:BOOL=ON")
		if e.opt("run-tests") == "upload" {
			argv = append(argv, "-DBUILD_experimental:BOOL=ON")
		}
	}

	if e.optBool("compile-commands-export") {
		argv = append([]string{"-DCMAKE_EXPORT_COMPILE_COMMANDS:BOOL=ON"}, argv...)
	}

	return argv
}

func (a *cmakeAdapter) Build(e *Env, optionsKey string) error {
	argv, err := splitOptionWords(e, optionsKey)
	if err != nil {
		return err
	}
	if !a.usesNinja(e) {
		n := resolveParallelism(e, false)
		argv = append(argv, "-j", fmt.Sprint(n))
	}
	argv = stripDashJ(argv)
	full := append([]string{"cmake", "--build", "."}, argv...)
	var warnings int
	err = run(e, e.Module.BuildDir, full, progressLineFunc(&warnings, e.OnProgress))
	if err == nil && warnings > 0 {
		e.State.SetModuleValue(e.Module.Name, "last-compile-warnings", fmt.Sprint(warnings))
	}
	if err != nil {
		return err
	}
	if e.optBool("compile-commands-linking") {
		src := filepath.Join(e.Module.BuildDir, "compile_commands.json")
		dst := filepath.Join(e.Module.SourceDir, "compile_commands.json")
		if exists(src) {
			os.Remove(dst)
			os.Symlink(src, dst)
		}
	}
	return nil
}

func (a *cmakeAdapter) Install(e *Env, prefixArgs []string) error {
	target := "install"
	if !a.usesNinja(e) {
		target = "install/fast"
	}
	argv := append([]string{"cmake", "--build", ".", "--target", target}, prefixArgs...)
	return run(e, e.Module.BuildDir, argv, nil)
}

func (a *cmakeAdapter) Uninstall(e *Env, prefixArgs []string) error {
	argv := append([]string{"cmake", "--build", ".", "--target", "uninstall"}, prefixArgs...)
	if err := run(e, e.Module.BuildDir, argv, nil); err != nil {
		return err
	}
	e.State.SetModuleValue(e.Module.Name, "last-install-rev", "")
	return nil
}

func (a *cmakeAdapter) RunTestsuite(e *Env) (bool, error) {
	err := run(e, e.Module.BuildDir, []string{"ctest", "--output-on-failure"}, nil)
	return err == nil, err
}

func removeStrayCache(dir string) {
	os.Remove(filepath.Join(dir, "CMakeCache.txt"))
}

func hasFlag(argv []string, prefix string) bool {
	for _, a := range argv {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

func fileReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func splitOptionWords(e *Env, key string) ([]string, error) {
	s := strings.TrimSpace(e.opt(key))
	if s == "" {
		return nil, nil
	}
	return shlex.Split(s)
}
