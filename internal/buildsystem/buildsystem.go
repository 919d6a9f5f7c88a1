// Package buildsystem implements the build-system dispatcher:
// auto-detection of the right adapter for a module's source tree, and
// the common configure/build/install/uninstall/test contract every
// adapter implements.
package buildsystem

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/procexec"
)

// StateStore is the slice of the persistent-state store an
// adapter needs: per-module string digests used to skip unnecessary
// reconfigures and to report warning counts.
type StateStore interface {
	GetModuleValue(module, key string) (string, bool)
	SetModuleValue(module, key, value string)
}

// Logger receives the combined stdout/stderr of one command's run, a
// narrow slice of the pipeline's per-module log sink.
type Logger interface {
	Write(p []byte) (int, error)
}

// Env bundles what an adapter needs to run a module's build.
// QtInstallDir carries the qt-install-dir option so the CMake adapter
// can detect a Qt prefix distinct from install-dir without depending on
// internal/module's option-lookup API directly.
type Env struct {
	Ctx     context.Context
	Module  *module.Module
	State   StateStore
	Log     Logger
	Pretend bool

	InstallPrefix string
	QtInstallDir  string // qt-install-dir option as set; "" if unset, may equal InstallPrefix
	NumCoresAuto  bool   // true if num-cores option is "auto"
	NumCores      int    // resolved core count when not auto

	Getenv func(key string) (string, bool) // resolved module option accessor
	Setenv func(key, value string)         // queues a module-environment override (CMake env injection)

	// OnProgress, if set, is called for each recognized "[NN%]"/"[x/y]"
	// build-output line, to drive the pipeline's status view.
	OnProgress func(Progress)
}

func (e *Env) opt(key string) string {
	if e.Getenv == nil {
		return ""
	}
	v, _ := e.Getenv(key)
	return v
}

func (e *Env) optBool(key string) bool {
	return e.opt(key) == "true"
}

// Adapter is the common contract every buildsystem implements.
type Adapter interface {
	Kind() module.BuildSystemKind
	// NeedsRefreshed returns a non-empty reason when the build system
	// must be recreated.
	NeedsRefreshed(e *Env) string
	CleanBuildSystem(e *Env) error
	CreateBuildSystem(e *Env) error
	Configure(e *Env) error
	Build(e *Env, optionsKey string) error
	Install(e *Env, prefixArgs []string) error
	Uninstall(e *Env, prefixArgs []string) error
	RunTestsuite(e *Env) (bool, error)
}

// Detect chooses a buildsystem kind for sourceDir per an ordered set
// of checks, honoring an explicit override first.
func Detect(sourceDir string, override module.BuildSystemKind, isKDEProject bool) module.BuildSystemKind {
	if override != module.BuildSystemAuto {
		return override
	}
	hasCMakeLists := exists(filepath.Join(sourceDir, "CMakeLists.txt"))
	hasBootstrap := exists(filepath.Join(sourceDir, "bootstrap"))
	if hasCMakeLists && hasBootstrap {
		return module.BuildSystemCMakeBootstrap
	}
	if hasCMakeLists || isKDEProject {
		return module.BuildSystemKDECMake
	}
	if hasProFiles(sourceDir) {
		return module.BuildSystemQMake
	}
	if exists(filepath.Join(sourceDir, "configure")) || exists(filepath.Join(sourceDir, "autogen.sh")) {
		return module.BuildSystemAutotools
	}
	if exists(filepath.Join(sourceDir, "meson.build")) {
		return module.BuildSystemMeson
	}
	return module.BuildSystemGeneric
}

// New constructs the adapter for kind.
func New(kind module.BuildSystemKind) Adapter {
	switch kind {
	case module.BuildSystemCMakeBootstrap:
		return &cmakeAdapter{bootstrap: true}
	case module.BuildSystemKDECMake:
		return &cmakeAdapter{}
	case module.BuildSystemQMake:
		return &qmakeAdapter{}
	case module.BuildSystemAutotools:
		return &autotoolsAdapter{}
	case module.BuildSystemMeson:
		return &mesonAdapter{}
	default:
		return &genericAdapter{}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasProFiles(dir string) bool {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.pro"))
	return len(matches) > 0
}

// resolveParallelism maps num-cores (possibly "auto") to a concrete -j
// argument, per the adapter's build() contract.
func resolveParallelism(e *Env, adapterSupportsAuto bool) int {
	if e.NumCoresAuto {
		if adapterSupportsAuto {
			return 0 // adapter handles its own parallelism, no -j needed
		}
		n := runtime.NumCPU()
		if n <= 0 {
			return 4
		}
		return n
	}
	if e.NumCores <= 0 {
		return 4
	}
	return e.NumCores
}

// stripDashJ removes a trailing bare "-j" (no following integer) from
// argv, and any "-j" immediately followed by a non-numeric token,
// since an empty num-cores setting means "no -j" rather than
// "unlimited -j".
func stripDashJ(argv []string) []string {
	out := argv[:0:0]
	for i := 0; i < len(argv); i++ {
		if argv[i] == "-j" {
			if i+1 >= len(argv) {
				continue
			}
			if _, err := strconv.Atoi(argv[i+1]); err != nil {
				continue
			}
		}
		out = append(out, argv[i])
	}
	return out
}

func run(e *Env, dir string, argv []string, onLine procexec.LineFunc) error {
	if e.Pretend {
		return nil
	}
	var log procexec.Options
	log.Dir = dir
	log.OnLine = onLine
	if e.Log != nil {
		log.Log = e.Log
	}
	_, err := procexec.Run(e.Ctx, argv, log)
	return err
}

func digest(parts []string) string {
	return strings.Join(parts, "\x1f")
}

func cpuCountString(e *Env) string {
	return strconv.Itoa(resolveParallelism(e, false))
}
