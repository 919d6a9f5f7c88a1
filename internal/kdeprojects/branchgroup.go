package kdeprojects

import (
	"encoding/json"
	"sort"
	"strings"
)

// BranchGroupResolver looks up the concrete git branch a module should
// use for a given logical branch group (e.g. "kf5-qt5"), using the
// layers/groups JSON published in repo-metadata's /dependencies
// directory.
type BranchGroupResolver struct {
	groups           map[string]map[string]string
	wildcardPrefixes map[string]string // group key (with trailing '*') -> prefix
}

type branchGroupDoc struct {
	Layers []string                     `json:"layers"`
	Groups map[string]map[string]string `json:"groups"`
}

// NewBranchGroupResolver parses the JSON document (logical-module-structure.json).
func NewBranchGroupResolver(data []byte) (*BranchGroupResolver, error) {
	var doc branchGroupDoc
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	r := &BranchGroupResolver{
		groups:           make(map[string]map[string]string),
		wildcardPrefixes: make(map[string]string),
	}
	for key, branches := range doc.Groups {
		// keys beginning with '_' are comments, per the format spec
		if strings.HasPrefix(key, "_") {
			continue
		}
		r.groups[key] = branches
		if strings.HasSuffix(key, "*") {
			r.wildcardPrefixes[key] = strings.TrimSuffix(key, "*")
		}
	}
	return r, nil
}

// FindModuleBranch resolves module's branch for logicalGroup: exact
// module match first, then the longest matching wildcarded group
// prefix, then the catch-all "*" group, else "" (not found).
func (r *BranchGroupResolver) FindModuleBranch(module, logicalGroup string) (string, bool) {
	if branches, ok := r.groups[module]; ok {
		b, ok := branches[logicalGroup]
		return b, ok
	}

	var candidates []string
	for key := range r.wildcardPrefixes {
		if strings.HasPrefix(module, r.wildcardPrefixes[key]) {
			candidates = append(candidates, key)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(r.wildcardPrefixes[candidates[i]]) > len(r.wildcardPrefixes[candidates[j]])
	})
	if len(candidates) > 0 {
		b, ok := r.groups[candidates[0]][logicalGroup]
		return b, ok
	}

	if branches, ok := r.groups["*"]; ok {
		b, ok := branches[logicalGroup]
		return b, ok
	}
	return "", false
}
