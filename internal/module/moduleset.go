package module

import (
	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// ModuleSet is a declarative grouping that expands into zero or more
// Modules at resolution time. It is discarded after expansion but
// Modules keep an Origin reference to it.
type ModuleSet struct {
	Name string // may be empty (anonymous)

	Repository kdebuilder.RepositoryKind
	// RepositoryBaseKey is the key into the user-declared
	// git-repository-base table when Repository == RepoCustomBase.
	RepositoryBaseKey string

	Find   []string // ordered "find" selectors (use-modules)
	Ignore []string // "ignore" selectors

	Options *option.OptionMap

	CreationID      int
	FirstChildID    int // reserved id range start for expanded children
	ReservedIDCount int
}

// NewModuleSet creates an empty module-set with an option map ready for
// option lines to be installed into it.
func NewModuleSet(name string) *ModuleSet {
	return &ModuleSet{Name: name, Options: option.NewMap()}
}

// Contains reports whether name is one of the set's find selectors.
func (ms *ModuleSet) Contains(name string) bool {
	for _, f := range ms.Find {
		if f == name {
			return true
		}
	}
	return false
}

// IsIgnored reports whether name is one of the set's ignore selectors.
func (ms *ModuleSet) IsIgnored(name string) bool {
	for _, ig := range ms.Ignore {
		if ig == name {
			return true
		}
	}
	return false
}
