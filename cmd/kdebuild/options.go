package main

import (
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/option"
)

// stringList accumulates repeated occurrences of a flag, e.g.
// --set-module-option-value MODULE,KEY,VALUE (repeatable).
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// splitArgsForGreedyFlags extracts the two flags whose grammar isn't
// expressible with the stdlib flag package because they swallow every
// remaining argument rather than a single value: --ignore-modules
// NAMES... (stops at the next flag) and --run/--start-program EXE
// ARGS... (stops at nothing; everything left is forwarded verbatim).
// It returns the arguments flag.FlagSet should still see, plus the
// captured tails.
func splitArgsForGreedyFlags(args []string) (rest []string, ignoreModules []string, runProgram string, runArgs []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--ignore-modules", "-ignore-modules":
			j := i + 1
			for j < len(args) && !strings.HasPrefix(args[j], "-") {
				ignoreModules = append(ignoreModules, args[j])
				j++
			}
			i = j - 1
			continue
		case "--run", "-run", "--start-program", "-start-program":
			j := i + 1
			if j < len(args) {
				runProgram = args[j]
				runArgs = append([]string(nil), args[j+1:]...)
			}
			return rest, ignoreModules, runProgram, runArgs
		default:
			rest = append(rest, a)
		}
	}
	return rest, ignoreModules, runProgram, runArgs
}

// parseModuleOptionOverride splits one MODULE,KEY,VALUE triple
// (--set-module-option-value) at its first two commas, so VALUE may
// itself contain commas. ok is false unless all three parts are present.
func parseModuleOptionOverride(raw string) (module, key, value string, ok bool) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// buildOverrides turns the repeated --set-module-option-value triples
// into the global/per-module option maps resolve.CmdlineOverrides
// expects. A MODULE of "global" targets the context rather than a
// single module.
func buildOverrides(raw []string) (global *option.OptionMap, perModule map[string]*option.OptionMap, err error) {
	global = option.NewMap()
	perModule = make(map[string]*option.OptionMap)
	for _, r := range raw {
		mod, key, value, ok := parseModuleOptionOverride(r)
		if !ok {
			return nil, nil, &invalidOverrideError{raw: r}
		}
		v := option.String(value)
		if mod == "" || mod == globalStateKey {
			global.Set(key, v)
			continue
		}
		m, ok := perModule[mod]
		if !ok {
			m = option.NewMap()
			perModule[mod] = m
		}
		m.Set(key, v)
	}
	return global, perModule, nil
}

type invalidOverrideError struct{ raw string }

func (e *invalidOverrideError) Error() string {
	return "malformed --set-module-option-value " + e.raw + " (want MODULE,KEY,VALUE)"
}
