// Package config implements the rc-file reader: a recursive,
// line-oriented parser producing a merged global-options record, an
// ordered list of module/module-set declarations and a list of
// deferred options blocks.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
)

// DeclKind distinguishes the kinds of top-level declaration the reader
// produces.
type DeclKind int

const (
	DeclModule DeclKind = iota
	DeclModuleSet
)

// Decl is one top-level module or module-set declaration, in file
// order, carrying its own option lines.
type Decl struct {
	Kind       DeclKind
	Name       string // module-set name may be ""
	CreationID int
	Module     *module.Module    // set when Kind == DeclModule
	ModuleSet  *module.ModuleSet // set when Kind == DeclModuleSet
}

// OptionsBlock is a free-standing `options NAME` block, deferred
// until after module-set expansion.
type OptionsBlock struct {
	Target     string
	CreationID int
	Options    *option.OptionMap
	// Distribute, when non-empty, lists the modules this block's
	// options must be applied to directly (the "repository +
	// use-modules inside an options block" special case).
	Distribute []string
}

// Result is everything the reader produces from one rc-file (after
// following all includes).
type Result struct {
	Global *option.OptionMap
	Decls  []*Decl
	Blocks []*OptionsBlock
	nextID int
}

func (r *Result) allocID() int {
	id := r.nextID
	r.nextID++
	return id
}

type sectionKind int

const (
	secNone sectionKind = iota
	secGlobal
	secModule
	secModuleSet
	secOptions
)

// Read parses path (following `include` directives recursively) and
// returns the assembled Result.
func Read(path string) (*Result, error) {
	r := &Result{Global: option.NewMap()}
	seen := make(map[string]bool)
	if err := r.readFile(path, seen); err != nil {
		return nil, err
	}
	if err := r.checkDuplicateNames(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Result) checkDuplicateNames() error {
	seenModule := make(map[string]bool)
	seenSet := make(map[string]bool)
	for _, d := range r.Decls {
		switch d.Kind {
		case DeclModule:
			if seenModule[d.Name] {
				return kdeerr.Configf("duplicate module declaration: %q", d.Name)
			}
			if seenSet[d.Name] {
				return kdeerr.Configf("module %q reuses a module-set name", d.Name)
			}
			seenModule[d.Name] = true
		case DeclModuleSet:
			if d.Name == "" {
				continue
			}
			if seenSet[d.Name] {
				return kdeerr.Configf("duplicate module-set declaration: %q", d.Name)
			}
			if seenModule[d.Name] {
				return kdeerr.Configf("module-set %q reuses a module name", d.Name)
			}
			seenSet[d.Name] = true
		}
	}
	return nil
}

func (r *Result) readFile(path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return kdeerr.Wrap(err, "resolving rc-file path")
	}
	if seen[abs] {
		return kdeerr.Configf("include cycle detected at %q", path)
	}
	seen[abs] = true

	f, err := os.Open(path)
	if err != nil {
		return kdeerr.Configf("opening rc-file %q: %v", path, err)
	}
	defer f.Close()

	lines, err := logicalLines(f)
	if err != nil {
		return err
	}

	var (
		curSection  sectionKind
		curName     string
		curModule   *module.Module
		curSet      *module.ModuleSet
		curBlock    *option.OptionMap
		curBlockTgt string
	)

	closeSection := func() error {
		switch curSection {
		case secModule:
			r.Decls = append(r.Decls, &Decl{Kind: DeclModule, Name: curName, CreationID: r.allocID(), Module: curModule})
		case secModuleSet:
			r.Decls = append(r.Decls, &Decl{Kind: DeclModuleSet, Name: curName, CreationID: r.allocID(), ModuleSet: curSet})
		case secOptions:
			block := &OptionsBlock{Target: curBlockTgt, CreationID: r.allocID(), Options: curBlock}
			if repo, ok := curBlock.Get("repository"); ok {
				if um, ok2 := curBlock.Get("use-modules"); ok2 {
					block.Distribute = strings.Fields(um.AsString())
					_ = repo
				}
			}
			r.Blocks = append(r.Blocks, block)
		}
		curSection = secNone
		return nil
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if curSection == secNone {
			if strings.HasPrefix(line, "include ") {
				target := r.expandValue(strings.TrimSpace(strings.TrimPrefix(line, "include")))
				target = expandHome(target)
				if !filepath.IsAbs(target) {
					target = filepath.Join(filepath.Dir(abs), target)
				}
				if _, err := os.Stat(target); err != nil {
					return kdeerr.Configf("include %q: %v", target, err)
				}
				if err := r.readFile(target, seen); err != nil {
					return err
				}
				continue
			}
			switch {
			case line == "global":
				curSection, curName = secGlobal, ""
			case strings.HasPrefix(line, "module-set"):
				curName = strings.TrimSpace(strings.TrimPrefix(line, "module-set"))
				curSection = secModuleSet
				curSet = module.NewModuleSet(curName)
			case strings.HasPrefix(line, "module "):
				curName = strings.TrimSpace(strings.TrimPrefix(line, "module"))
				curSection = secModule
				curModule = module.New(curName)
			case strings.HasPrefix(line, "options "):
				curBlockTgt = strings.TrimSpace(strings.TrimPrefix(line, "options"))
				curSection = secOptions
				curBlock = option.NewMap()
			default:
				return kdeerr.Configf("expected a section opener, got %q", line)
			}
			continue
		}

		if strings.HasPrefix(line, "end") {
			if err := closeSection(); err != nil {
				return err
			}
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		key := fields[0]
		val := ""
		if len(fields) == 2 {
			val = strings.TrimSpace(fields[1])
		}

		if strings.HasPrefix(key, "_") {
			// user variable: visible to subsequent ${...} expansions immediately.
			r.Global.Set(key, option.String(r.expandValue(val)))
			continue
		}

		v := r.transformValue(val)

		switch curSection {
		case secGlobal:
			r.Global.Set(key, v)
		case secModule:
			if err := curModule.SetOption(key, v); err != nil {
				return kdeerr.Wrap(err, "module "+curName)
			}
		case secModuleSet:
			if err := applyModuleSetOption(curSet, key, v); err != nil {
				return kdeerr.Wrap(err, "module-set "+curName)
			}
		case secOptions:
			curBlock.Set(key, v)
		}
	}

	if curSection != secNone {
		return kdeerr.Configf("unterminated section in %q", path)
	}
	return nil
}

func applyModuleSetOption(ms *module.ModuleSet, key string, v option.Value) error {
	switch key {
	case "use-modules":
		ms.Find = append(ms.Find, strings.Fields(v.AsString())...)
		return nil
	case "ignore-modules":
		ms.Ignore = append(ms.Ignore, strings.Fields(v.AsString())...)
		return nil
	case "repository":
		s := v.AsString()
		switch s {
		case "kde-projects":
			ms.Repository = "kde-projects"
		case "qt-projects":
			ms.Repository = "qt-projects"
		default:
			ms.Repository = "custom"
			ms.RepositoryBaseKey = s
		}
		return nil
	default:
		ms.Options.Set(key, v)
		return nil
	}
}

// transformValue applies the uniform value transforms:
// collapse whitespace, expand ${...}, expand ~/, map true/false to bool.
func (r *Result) transformValue(raw string) option.Value {
	s := r.expandValue(raw)
	s = expandHome(s)
	switch s {
	case "true":
		return option.Bool(true)
	case "false":
		return option.Bool(false)
	}
	return option.String(s)
}

func (r *Result) expandValue(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				out.WriteByte(s[i])
				continue
			}
			name := s[i+2 : i+2+end]
			if v, ok := r.Global.Get(name); ok {
				out.WriteString(v.AsString())
			} else {
				fmt.Fprintf(os.Stderr, "warning: ${%s} is not defined\n", name)
			}
			i += 2 + end
			continue
		}
		out.WriteByte(s[i])
	}
	return collapseWhitespace(out.String())
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func expandHome(s string) string {
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, s[2:])
		}
	}
	return s
}

// logicalLines strips comments and blank lines and merges
// trailing-backslash continuations into single logical lines.
func logicalLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var out []string
	var cur strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, `\`) {
			cur.WriteString(strings.TrimSuffix(trimmed, `\`))
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(trimmed)
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchPaths returns the rc-file search order, honoring an
// explicit override (--rc-file) first.
func SearchPaths(explicit, xdgConfigHome, home string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	var paths []string
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, "kdesrc-buildrc"))
	}
	if xdgConfigHome != "" {
		paths = append(paths, filepath.Join(xdgConfigHome, "kdesrc-buildrc"))
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".kdesrc-buildrc"))
	}
	return paths
}

// FirstExisting returns the first path in paths that exists on disk.
func FirstExisting(paths []string) (string, bool) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
