// Package option implements the option-value model and its
// inheritance/merge rules: a tagged union of string/bool/list/map
// values, sticky (#-prefixed) overrides, and the small set of keys
// with merge-append or environment-merge semantics.
package option

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/imdario/mergo"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindList
	KindMap
)

// Value is a polymorphic option value: exactly one of Str, Bool, List
// or Map is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Bool bool
	List []string
	Map  map[string]string
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func List(l []string) Value { return Value{Kind: KindList, List: append([]string(nil), l...)} }
func Map(m map[string]string) Value {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{Kind: KindMap, Map: cp}
}

// AsString renders the value the way it would appear on an rc-file
// option line, for digesting and for --query.
func (v Value) AsString() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindList:
		return strings.Join(v.List, " ")
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.Map[k])
		}
		return strings.Join(parts, " ")
	default:
		return v.Str
	}
}

// Words shell-splits the value the way cmake-options/configure-flags
// are turned into argv.
func (v Value) Words() ([]string, error) {
	s := v.AsString()
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	words, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("splitting %q: %w", s, err)
	}
	return words, nil
}

// appendKeys merge-append context and module values instead of the
// module value replacing the context value.
var appendKeys = map[string]bool{
	"cmake-options":   true,
	"configure-flags": true,
	"cxxflags":        true,
}

// qtUninherited keys are not inherited from the context for modules
// whose buildsystem is Qt.
var qtUninherited = map[string]bool{
	"branch":          true,
	"configure-flags": true,
	"tag":             true,
	"cxxflags":        true,
}

// IsAppendKey reports whether key has merge-append semantics.
func IsAppendKey(key string) bool { return appendKeys[strings.TrimPrefix(key, "#")] }

// IsQtUninherited reports whether key is withheld from context
// inheritance for Qt-buildsystem modules.
func IsQtUninherited(key string) bool { return qtUninherited[strings.TrimPrefix(key, "#")] }

// IsSticky reports whether key is a sticky (#-prefixed) key.
func IsSticky(key string) bool { return strings.HasPrefix(key, "#") }

// bareKey strips a leading '#' from a sticky key.
func bareKey(key string) string { return strings.TrimPrefix(key, "#") }

// OptionMap holds an ordered set of (key, value) pairs. Insertion order is
// preserved for deterministic option-dump round trips.
type OptionMap struct {
	order  []string
	values map[string]Value
}

func NewMap() *OptionMap {
	return &OptionMap{values: make(map[string]Value)}
}

// Set stores key=value, appending key to the insertion order the first
// time it is seen.
func (m *OptionMap) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = v
}

// Get returns the raw value stored under key (no sticky/inheritance
// resolution — see Lookup for that).
func (m *OptionMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, if present.
func (m *OptionMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (m *OptionMap) Keys() []string {
	return append([]string(nil), m.order...)
}

// Clone deep-copies the map.
func (m *OptionMap) Clone() *OptionMap {
	cp := NewMap()
	for _, k := range m.order {
		v := m.values[k]
		if v.List != nil {
			v.List = append([]string(nil), v.List...)
		}
		if v.Map != nil {
			v.Map = Map(v.Map).Map
		}
		cp.Set(k, v)
	}
	return cp
}

// MergeEnv merges env into the module's set-env map rather than
// replacing it.
func (m *OptionMap) MergeEnv(env map[string]string) error {
	existing, ok := m.Get("set-env")
	var base map[string]string
	if ok && existing.Kind == KindMap {
		base = existing.Map
	} else {
		base = make(map[string]string)
	}
	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	if err := mergo.Merge(&merged, env, mergo.WithOverride); err != nil {
		return err
	}
	m.Set("set-env", Map(merged))
	return nil
}

// MergeGitRepositoryBase accepts either a single NAME URL pair or a
// ready-made map and merges it into the existing table.
func (m *OptionMap) MergeGitRepositoryBase(nameOrMap, url string) error {
	existing, ok := m.Get("git-repository-base")
	base := make(map[string]string)
	if ok && existing.Kind == KindMap {
		for k, v := range existing.Map {
			base[k] = v
		}
	}
	if url == "" {
		// nameOrMap is itself a "name=url name2=url2" encoded blob.
		for _, field := range strings.Fields(nameOrMap) {
			parts := strings.SplitN(field, "=", 2)
			if len(parts) != 2 {
				continue
			}
			base[parts[0]] = parts[1]
		}
	} else {
		base[nameOrMap] = url
	}
	m.Set("git-repository-base", Map(base))
	return nil
}
