package module

import (
	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// EnvOp is one step of the process-wide environment delta: an ordered
// queue of prepend/set operations, applied in order in front of the
// parent process's environment when a child command's effective
// environment is computed.
type EnvOp struct {
	Key     string
	Value   string
	Prepend bool // true: prepend to existing Key (':'-joined); false: set
}

// Context is the "global" build context. It is also a Module for
// option-lookup purposes: it serves as the fallback parent whenever a
// module looks up an option that isn't set locally.
type Context struct {
	*Module // embeds Options, Phases etc. acting as the global scope

	RCFilePath string

	// EnvQueue is the ordered prepend/set queue applied on top of the
	// parent environment when building a child command's environment.
	EnvQueue []EnvOp

	// IgnoreList holds module/module-set names filtered out during
	// resolution.
	IgnoreList map[string]bool

	// LogBaseToRunDir maps a base log-dir path to the timestamped
	// directory used for this run.
	LogBaseToRunDir map[string]string

	Pretend bool
}

// NewContext creates an empty build context with the default phase
// list (update/build/test/install — uninstall is opt-in).
func NewContext() *Context {
	return &Context{
		Module:          New("global"),
		IgnoreList:      make(map[string]bool),
		LogBaseToRunDir: make(map[string]string),
	}
}

// QueueEnv appends an environment operation to the context's delta.
func (c *Context) QueueEnv(key, value string, prepend bool) {
	c.EnvQueue = append(c.EnvQueue, EnvOp{Key: key, Value: value, Prepend: prepend})
}

// Environ computes the effective environment for a child process: the
// given base environment (typically os.Environ()) with the context's
// queued prepend/set operations applied on top. The base slice and the
// process's real environment are never mutated.
func Environ(base []string, queue []EnvOp) []string {
	env := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				k := kv[:i]
				if _, ok := env[k]; !ok {
					order = append(order, k)
				}
				env[k] = kv[i+1:]
				break
			}
		}
	}
	for _, op := range queue {
		if op.Prepend {
			if existing, ok := env[op.Key]; ok && existing != "" {
				env[op.Key] = op.Value + ":" + existing
			} else {
				env[op.Key] = op.Value
			}
		} else {
			env[op.Key] = op.Value
		}
		found := false
		for _, k := range order {
			if k == op.Key {
				found = true
				break
			}
		}
		if !found {
			order = append(order, op.Key)
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+env[k])
	}
	return out
}

// Option resolves a context (global) option: just the sticky/plain
// lookup against the context's own map, since there is no further
// parent.
func (c *Context) Option(key string) (option.Value, bool) {
	if v, ok := c.Options.Get("#" + key); ok {
		return v, true
	}
	return c.Options.Get(key)
}

// PhasesFromCmdline narrows the context's phase list according to the
// mutually-exclusive --no-foo / --foo-only flags.
func (c *Context) PhasesFromCmdline(noSrc, noBuild, noInstall, noTests, srcOnly, buildOnly, installOnly, uninstall bool) {
	switch {
	case uninstall:
		c.Phases = NewPhaseListFrom(kdebuilder.PhaseUninstall)
		return
	case srcOnly:
		c.Phases = NewPhaseListFrom(kdebuilder.PhaseUpdate)
		return
	case buildOnly:
		c.Phases = NewPhaseListFrom(kdebuilder.PhaseBuild)
		return
	case installOnly:
		c.Phases = NewPhaseListFrom(kdebuilder.PhaseInstall)
		return
	}
	if noSrc {
		c.Phases.Remove(kdebuilder.PhaseUpdate)
	}
	if noBuild {
		c.Phases.Remove(kdebuilder.PhaseBuild)
	}
	if noInstall {
		c.Phases.Remove(kdebuilder.PhaseInstall)
	}
	if noTests {
		c.Phases.Remove(kdebuilder.PhaseTest)
	}
}
