// Package state implements the persistent JSON state store, the
// per-run log directory, and the single-instance PID lockfile.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// ModuleState is the persisted key/value bag for one module: last
// build/install revisions, compile-warning counts, failure counts,
// and anything else a module's build phase chooses to persist.
type ModuleState map[string]string

// Store is the run's view of the persistent-data file, shared by the
// update and build goroutines; its own mutex makes concurrent writes
// from either side safe.
type Store struct {
	mu      deadlock.Mutex
	path    string
	Modules map[string]ModuleState `json:"modules"`
}

type onDiskFormat struct {
	Modules map[string]ModuleState `json:"modules"`
}

// ResolvePath implements the persistent-state file location rules.
func ResolvePath(persistentDataFileOpt, configDir, xdgConfigHome, xdgStateHome, home string) string {
	if persistentDataFileOpt != "" {
		return expandHome(persistentDataFileOpt, home)
	}

	var newPath string
	if xdgConfigHome != "" && configDir == xdgConfigHome {
		stateHome := xdgStateHome
		if stateHome == "" {
			stateHome = filepath.Join(home, ".local", "state")
		}
		newPath = filepath.Join(stateHome, "kdesrc-build-data")
	} else {
		newPath = filepath.Join(configDir, ".kdesrc-build-data")
	}

	legacy := filepath.Join(home, ".kdesrc-build-data")
	if !exists(newPath) && exists(legacy) {
		return legacy
	}
	return newPath
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if len(p) >= 2 && p[:2] == "~/" {
		return filepath.Join(home, p[2:])
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Load reads the state file at path, returning an empty Store if it
// does not yet exist.
func Load(path string) (*Store, error) {
	s := &Store{path: path, Modules: map[string]ModuleState{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, kdeerr.Wrap(err, "reading persistent state file "+path)
	}
	if len(b) == 0 {
		return s, nil
	}
	var disk onDiskFormat
	if err := json.Unmarshal(b, &disk); err != nil {
		return nil, kdeerr.Wrap(err, "parsing persistent state file "+path)
	}
	if disk.Modules != nil {
		s.Modules = disk.Modules
	}
	return s, nil
}

// Save atomically writes the state file. Called on normal exit.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.MarshalIndent(onDiskFormat{Modules: s.Modules}, "", "  ")
	if err != nil {
		return kdeerr.Wrap(err, "marshaling persistent state")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return kdeerr.Wrap(err, "creating persistent state directory")
	}
	if err := renameio.WriteFile(s.path, b, 0644); err != nil {
		return kdeerr.Wrap(err, "writing persistent state file "+s.path)
	}
	return nil
}

// GetModuleValue implements buildsystem.StateStore.
func (s *Store) GetModuleValue(module, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Modules[module]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// SetModuleValue implements buildsystem.StateStore, applying the
// write immediately to the in-memory "modules" map.
func (s *Store) SetModuleValue(module, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Modules[module]
	if !ok {
		m = ModuleState{}
		s.Modules[module] = m
	}
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}

// FailureCount reads a module's persisted failure-count, defaulting
// to zero (used by the failure-ranking comparator).
func (s *Store) FailureCount(module string) int {
	v, ok := s.GetModuleValue(module, "failure-count")
	if !ok {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// IncrementFailureCount bumps and persists a module's failure-count.
func (s *Store) IncrementFailureCount(module string) {
	n := s.FailureCount(module) + 1
	s.SetModuleValue(module, "failure-count", itoa(n))
}

// ResetFailureCount clears a module's failure-count after a successful build.
func (s *Store) ResetFailureCount(module string) {
	s.SetModuleValue(module, "failure-count", "")
}

// InstalledModules lists every module name with a recorded
// last-install-rev, for --list-installed.
func (s *Store) InstalledModules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, m := range s.Modules {
		if m["last-install-rev"] != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
