package option

import "strings"

// Lookup resolves key for a module, given its own map and the context
// (global) map: sticky form first, then module value, then context
// value; merge-append keys join module and context
// (context first, then module, space-joined and trimmed); a handful of
// keys are withheld from inheritance for Qt-buildsystem modules.
func Lookup(moduleMap, contextMap *OptionMap, key string, isQt bool) (Value, bool) {
	bare := bareKey(key)
	sticky := "#" + bare

	if v, ok := moduleMap.Get(sticky); ok {
		return v, true
	}
	if v, ok := contextMap.Get(sticky); ok {
		return v, true
	}

	if IsAppendKey(bare) {
		var parts []string
		if !isQt || !IsQtUninherited(bare) {
			if cv, ok := contextMap.Get(bare); ok {
				if s := strings.TrimSpace(cv.AsString()); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if mv, ok := moduleMap.Get(bare); ok {
			if s := strings.TrimSpace(mv.AsString()); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return Value{}, false
		}
		return String(strings.TrimSpace(strings.Join(parts, " "))), true
	}

	if v, ok := moduleMap.Get(bare); ok {
		return v, true
	}

	if isQt && IsQtUninherited(bare) {
		return Value{}, false
	}

	if v, ok := contextMap.Get(bare); ok {
		return v, true
	}

	return Value{}, false
}

// PhaseConvenienceKeys are the keys that mutate a module's phase list
// rather than storing a plain value.
var PhaseConvenienceKeys = map[string]bool{
	"no-src":            true,
	"no-install":        true,
	"no-tests":          true,
	"no-build":          true,
	"uninstall":         true,
	"build-only":        true,
	"install-only":      true,
	"filter-out-phases": true,
}

// IsPhaseConvenienceKey reports whether key mutates the phase list
// instead of being stored as an ordinary option.
func IsPhaseConvenienceKey(key string) bool {
	return PhaseConvenienceKeys[strings.TrimPrefix(key, "#")]
}
