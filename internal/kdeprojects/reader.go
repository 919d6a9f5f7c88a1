// Package kdeprojects implements the kde-projects metadata reader:
// enumerating the repo-metadata checkout's per-project
// metadata.yaml files, answering wildcarded module-set "find"
// selectors against them, and resolving a module's logical branch
// group to a concrete git branch.
package kdeprojects

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// ProjectInfo is one entry of the repo-metadata database, keyed by
// repo identifier in Reader.repositories.
type ProjectInfo struct {
	FullName       string // kde-projects path, e.g. "frameworks/kcoreaddons"
	InventName     string // repopath as published by sysadmin/repo-management
	Repo           string // "kde:<repopath>.git"
	Name           string // identifier, or repopath if none given
	Active         bool
	FoundBy        string // "direct" or "wildcard"
	NameChangingTo string // set when identifier's suffix differs from repopath's
}

type metadataYAML struct {
	ProjectPath string `yaml:"projectpath"`
	RepoPath    string `yaml:"repopath"`
	Identifier  string `yaml:"identifier"`
	RepoActive  bool   `yaml:"repoactive"`
}

// Reader enumerates the KDE projects database rooted at a repo-metadata
// checkout's "projects" directory.
type Reader struct {
	repositories map[string]*ProjectInfo
}

// NewReader walks srcdir/projects for metadata.yaml files and indexes
// them by repository identifier.
func NewReader(srcdir string) (*Reader, error) {
	r := &Reader{repositories: make(map[string]*ProjectInfo)}
	root := filepath.Join(srcdir, "projects")
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "metadata.yaml" {
			return nil
		}
		count++
		return r.readYAML(path)
	})
	if err != nil {
		return nil, kdeerr.Wrap(err, "reading kde-projects metadata under "+root)
	}
	if count == 0 {
		return nil, kdeerr.Runtimef("no kde-projects metadata.yaml files found under %s", root)
	}
	return r, nil
}

// NewReaderFromMock builds a Reader over an in-memory fixture, for
// tests where no repo-metadata checkout exists.
func NewReaderFromMock(names ...string) *Reader {
	r := &Reader{repositories: make(map[string]*ProjectInfo)}
	for _, name := range names {
		r.repositories[name] = &ProjectInfo{
			FullName: "test/" + name,
			Repo:     "kde:" + name + ".git",
			Name:     name,
			Active:   true,
			FoundBy:  "direct",
		}
	}
	return r
}

func (r *Reader) readYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc metadataYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return kdeerr.Wrap(err, fmt.Sprintf("parsing %s", path))
	}
	if doc.ProjectPath == "repo-management" {
		return nil
	}
	repoName := doc.Identifier
	if repoName == "" {
		repoName = doc.RepoPath
	}
	info := &ProjectInfo{
		FullName:   doc.ProjectPath,
		InventName: doc.RepoPath,
		Repo:       "kde:" + doc.RepoPath + ".git",
		Name:       repoName,
		Active:     doc.RepoActive,
		FoundBy:    "direct",
	}
	inventSuffix := lastPathComponent(doc.RepoPath)
	legacySuffix := lastPathComponent(doc.ProjectPath)
	if inventSuffix != legacySuffix {
		info.NameChangingTo = inventSuffix
	}
	r.repositories[repoName] = info
	return nil
}

func lastPathComponent(s string) string {
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// GetModulesForProject resolves one find-selector to the matching
// ProjectInfo entries, supporting a wildcard-and-implicit-suffix search.
func (r *Reader) GetModulesForProject(proj string) []*ProjectInfo {
	hasWildcard := strings.Contains(proj, "*")
	hasGitSuffix := strings.HasSuffix(proj, ".git")

	find := func(p string) []string {
		var matches []string
		for key, info := range r.repositories {
			if projectPathMatchesWildcardSearch(info.FullName, p) {
				matches = append(matches, key)
			}
		}
		sort.Strings(matches)
		if strings.Contains(p, "*") {
			for _, key := range matches {
				r.repositories[key].FoundBy = "wildcard"
			}
		}
		return matches
	}

	var results []string
	if !hasWildcard && !hasGitSuffix {
		results = append(results, find(proj)...)
		proj += "/*"
	}
	proj = strings.TrimSuffix(proj, ".git")

	if !strings.Contains(proj, "*") && !strings.Contains(proj, "/") {
		if _, ok := r.repositories[proj]; ok {
			results = append(results, proj)
		} else {
			results = append(results, find(proj)...)
		}
	} else {
		results = append(results, find(proj)...)
	}

	seen := make(map[string]bool)
	var out []*ProjectInfo
	for _, name := range results {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, r.repositories[name])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// projectPathMatchesWildcardSearch implements the wildcard search: a
// item like "frameworks/*" matches any full path with "frameworks" as
// a path component. The search's components must match a contiguous run
// of the full path's components, starting anywhere; a "*" component
// matches the rest of the path.
func projectPathMatchesWildcardSearch(projectPath, searchItem string) bool {
	searchParts := strings.Split(searchItem, "/")
	nameStack := strings.Split(projectPath, "/")

	if len(nameStack) < len(searchParts) {
		return false
	}
	sizeDifference := len(nameStack) - len(searchParts)

	for i := 0; i <= sizeDifference; {
		for i <= sizeDifference && nameStack[i] != searchParts[0] {
			i++
		}
		if i > sizeDifference {
			return false
		}
		matched := true
		for j := 0; j < len(searchParts); j++ {
			if searchParts[j] == "*" {
				return true
			}
			if searchParts[j] != nameStack[i+j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
		i++
	}
	return false
}
