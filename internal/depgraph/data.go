package depgraph

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

const wildcardBranch = "*"

// rule is one DEP[:BRANCH] : SRC[:BRANCH] declaration, normalized.
type rule struct {
	dep       string
	depBranch string // wildcardBranch if none given
	src       string
	srcBranch string
	anti      bool // "-SRC" anti-dependency
	catchAll  bool // dep ended in '*'
}

// Data is the parsed dependency-data source: either the legacy
// line-oriented format or the JSON v2 format, both normalized into
// the same rule set.
type Data struct {
	rules []rule
}

// normalizeName strips leading path components, keeping the rightmost
// segment.
func normalizeName(s string) string {
	s = strings.TrimSuffix(s, "*")
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

func splitDepBranch(s string) (name, branch string) {
	star := strings.HasSuffix(s, "*")
	if star {
		s = strings.TrimSuffix(s, "*")
	}
	parts := strings.SplitN(s, ":", 2)
	name = parts[0]
	branch = wildcardBranch
	if len(parts) == 2 {
		branch = parts[1]
	}
	if star {
		name += "*"
	}
	return name, branch
}

// ParseLegacy parses the line-oriented dependency-data grammar
// `DEP[:BRANCH] : SRC[:BRANCH]`, with a `*`-suffixed DEP meaning a
// catch-all, a `*`-suffixed SRC being rejected with a warning (wildcard
// sources are meaningless), and a leading `-` on SRC meaning an
// anti-dependency.
func ParseLegacy(text string) (*Data, []string, error) {
	d := &Data{}
	var warnings []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		// Re-split properly: the grammar is "DEP[:BRANCH] : SRC[:BRANCH]",
		// so split on the first " : " (surrounded by spaces) rather than
		// on every colon, since DEP/SRC branches also use colons.
		idx := strings.Index(line, " : ")
		if idx < 0 {
			// tolerate "DEP:SRC" with no spaces around the separating colon
			if len(parts) != 2 {
				warnings = append(warnings, "malformed dependency line: "+line)
				continue
			}
		}
		var lhs, rhs string
		if idx >= 0 {
			lhs, rhs = line[:idx], line[idx+3:]
		} else {
			lhs, rhs = parts[0], parts[1]
		}
		lhs = strings.TrimSpace(lhs)
		rhs = strings.TrimSpace(rhs)

		depName, depBranch := splitDepBranch(lhs)
		catchAll := strings.HasSuffix(depName, "*")
		if catchAll {
			// a catch-all keeps its path prefix as-is ("frameworks/*"
			// matches any project path starting with "frameworks/"),
			// unlike a normal dep name which collapses to its leaf.
			depName = strings.TrimSuffix(depName, "*")
		} else {
			depName = normalizeName(depName)
		}

		anti := strings.HasPrefix(rhs, "-")
		rhs = strings.TrimPrefix(rhs, "-")
		srcName, srcBranch := splitDepBranch(rhs)
		if strings.HasSuffix(srcName, "*") {
			warnings = append(warnings, "wildcarded dependency source rejected: "+line)
			continue
		}
		srcName = normalizeName(srcName)

		d.rules = append(d.rules, rule{
			dep: depName, depBranch: depBranch,
			src: srcName, srcBranch: srcBranch,
			anti: anti, catchAll: catchAll,
		})
	}
	return d, warnings, nil
}

type v2Doc struct {
	MetadataVersion    int                 `json:"metadata_version"`
	ModuleDependencies map[string][]string `json:"module_dependencies"`
}

// ParseV2 parses the JSON v2 dependency-data format.
func ParseV2(b []byte) (*Data, error) {
	var doc v2Doc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	d := &Data{}
	deps := lo.Keys(doc.ModuleDependencies)
	for _, dep := range deps {
		depName := normalizeName(dep)
		for _, src := range doc.ModuleDependencies[dep] {
			d.rules = append(d.rules, rule{
				dep: depName, depBranch: wildcardBranch,
				src: normalizeName(src), srcBranch: wildcardBranch,
			})
		}
	}
	return d, nil
}

// Merge combines two Data sources (e.g. several branch-group files),
// used when the resolver is fed more than one dependency-data file.
func (d *Data) Merge(other *Data) {
	d.rules = append(d.rules, other.rules...)
}

// directDeps returns the resolved direct-dependency set of dep at
// branch (branch may be "" for "no explicit branch requested"): exact
// DEP:BRANCH ∪ DEP:* ∪ applicable catch-alls, minus anti-dependencies
// (exact anti-deps remove only exact matches, catch-all anti-deps
// remove catch-alls).
func (d *Data) directDeps(depName, branch, projectPath string) []string {
	b := branch
	if b == "" {
		b = wildcardBranch
	}
	plus := make(map[string]bool)
	minus := make(map[string]bool)

	isThirdParty := strings.HasPrefix(projectPath, "third-party/")

	for _, r := range d.rules {
		if r.catchAll {
			if isThirdParty {
				continue
			}
			prefix := strings.TrimSuffix(r.dep, "*")
			if projectPath != "" && !strings.HasPrefix(projectPath, prefix) {
				continue
			}
			if projectPath == "" && !strings.HasPrefix(depName, prefix) {
				continue
			}
		} else if r.dep != depName {
			continue
		}
		if r.depBranch != wildcardBranch && r.depBranch != b {
			continue
		}
		set := plus
		if r.anti {
			set = minus
		}
		set[r.src] = true
	}

	out := lo.Keys(plus)
	out = lo.Filter(out, func(s string, _ int) bool { return !minus[s] })
	return out
}
