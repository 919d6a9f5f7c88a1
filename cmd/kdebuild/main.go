// Command kdebuild resolves a dependency graph of KDE modules from a
// kdesrc-buildrc-style configuration, updates each module's git
// checkout, and drives the matching build system to build, test and
// install it — a from-scratch Go reimplementation of the orchestration
// core kdesrc-build has historically done in Perl/Python.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/config"
	"github.com/kdebuilder/kdebuilder/internal/debughints"
	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
	"github.com/kdebuilder/kdebuilder/internal/kdeprojects"
	"github.com/kdebuilder/kdebuilder/internal/logging"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/option"
	"github.com/kdebuilder/kdebuilder/internal/pipeline"
	"github.com/kdebuilder/kdebuilder/internal/procutil"
	"github.com/kdebuilder/kdebuilder/internal/query"
	"github.com/kdebuilder/kdebuilder/internal/resolve"
	"github.com/kdebuilder/kdebuilder/internal/state"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(rawArgs []string) int {
	args, ignoreModules, runProgram, runArgs := splitArgsForGreedyFlags(rawArgs)

	fset := flag.NewFlagSet("kdebuild", flag.ExitOnError)
	fset.Usage = usage(fset, helpText)

	rcFile := fset.String("rc-file", "", "path to the configuration file, overriding the search order")
	pretend := fset.Bool("pretend", false, "describe what would happen without changing the filesystem")
	verbose := fset.Bool("verbose", false, "enable debug-level logging")
	quiet := fset.Bool("quiet", false, "only log warnings and errors")

	noSrc := fset.Bool("no-src", false, "skip the update phase")
	noBuild := fset.Bool("no-build", false, "skip the build phase")
	noInstall := fset.Bool("no-install", false, "skip the install phase")
	noTests := fset.Bool("no-tests", false, "skip the test phase")
	srcOnly := fset.Bool("src-only", false, "run only the update phase")
	buildOnly := fset.Bool("build-only", false, "run only the build phase")
	installOnly := fset.Bool("install-only", false, "run only the install phase")
	uninstall := fset.Bool("uninstall", false, "uninstall the selected modules instead of building them")

	resume := fset.Bool("resume", false, "resume from the persisted resume-list of a previous failed run")
	resumeFrom := fset.String("resume-from", "", "resume the build order starting at NAME")
	resumeAfter := fset.String("resume-after", "", "resume the build order starting just after NAME")
	stopBefore := fset.String("stop-before", "", "stop the build order just before NAME")
	stopAfter := fset.String("stop-after", "", "stop the build order just after NAME")
	rebuildFailures := fset.Bool("rebuild-failures", false, "limit this run to the modules left unbuilt from the first failure of the last failed run")

	refreshBuild := fset.Bool("refresh-build", false, "force the build system to be recreated")
	reconfigure := fset.Bool("reconfigure", false, "force a reconfigure even if options are unchanged")
	metadataOnly := fset.Bool("metadata-only", false, "update the kde-projects metadata and exit")
	includeDeps := fset.Bool("include-dependencies", true, "pull in dependencies not explicitly selected")
	noIncludeDeps := fset.Bool("no-include-dependencies", false, "build only the explicitly selected modules")

	queryKey := fset.String("query", "", "print a fact about each selected module instead of building it")
	listInstalled := fset.Bool("list-installed", false, "list modules with a recorded successful install")
	depTree := fset.Bool("dependency-tree", false, "print the dependency tree of the selected modules")
	depTreeFull := fset.Bool("dependency-tree-fullpath", false, "like --dependency-tree, using kde-projects full paths")

	var setOpts stringList
	fset.Var(&setOpts, "set-module-option-value", "MODULE,KEY,VALUE override (repeatable)")

	stopOnFailure := fset.Bool("stop-on-failure", false, "end the run on the first module failure")

	if err := fset.Parse(args); err != nil {
		return 1
	}
	selectors := fset.Args()

	home, _ := os.UserHomeDir()
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	xdgStateHome := os.Getenv("XDG_STATE_HOME")

	rcPath, ok := config.FirstExisting(config.SearchPaths(*rcFile, xdgConfigHome, home))
	if !ok {
		fmt.Fprintln(os.Stderr, "kdebuild: no configuration file found (see --rc-file)")
		return 1
	}

	result, err := config.Read(rcPath)
	if err != nil {
		return reportErr(err)
	}

	ctx := module.NewContext()
	ctx.RCFilePath = rcPath
	ctx.Pretend = *pretend
	for _, key := range result.Global.Keys() {
		v, _ := result.Global.Get(key)
		if err := ctx.SetOption(key, v); err != nil {
			return reportErr(err)
		}
	}
	ctx.PhasesFromCmdline(*noSrc, *noBuild, *noInstall, *noTests, *srcOnly, *buildOnly, *installOnly, *uninstall)
	if *refreshBuild {
		ctx.Options.Set("refresh-build", option.Bool(true))
	}
	if *reconfigure {
		ctx.Options.Set("reconfigure", option.Bool(true))
	}

	globalOverrides, perModuleOverrides, err := buildOverrides(setOpts)
	if err != nil {
		return reportErr(err)
	}
	for _, key := range globalOverrides.Keys() {
		v, _ := globalOverrides.Get(key)
		ctx.SetOption(key, v)
	}

	runCtx, cancel := procutil.InterruptibleContext()
	defer cancel()
	runCtx, cancelOnFailure := context.WithCancel(runCtx)
	defer cancelOnFailure()

	metadataDir := ctx.OptionString(ctx, "metadata-dir", filepath.Join(stateBaseDir(xdgStateHome, home), "kde-projects-metadata"))
	metadataRepo := ctx.OptionString(ctx, "metadata-repo", defaultMetadataRepoURL)

	var bundle *metadataBundle
	needsMetadata := moduleSetNeedsKDEProjects(result) || anyForcedSelector(selectors)
	if needsMetadata || *metadataOnly {
		var warnings []string
		bundle, warnings, err = fetchMetadata(runCtx, metadataDir, metadataRepo, *pretend)
		if err != nil {
			return reportErr(err)
		}
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning: "+w)
		}
	} else {
		bundle = &metadataBundle{data: &depgraph.Data{}}
	}
	if *metadataOnly {
		return 0
	}

	repoBase := gitRepositoryBase(ctx)
	expander := kdeprojects.NewExpander(bundle.reader, repoBase, nil)

	include := *includeDeps && !*noIncludeDeps

	mods, err := resolve.Resolve(resolve.Input{
		Decls:     result.Decls,
		Blocks:    result.Blocks,
		Selectors: selectors,
		Ignore:    ignoreModules,
		Overrides: resolve.CmdlineOverrides{Global: globalOverrides, PerModule: perModuleOverrides},
		Expander:  expander,
	})
	if err != nil {
		return reportErr(err)
	}
	if len(mods) == 0 {
		fmt.Fprintln(os.Stderr, "kdebuild: no modules selected")
		return 1
	}
	for _, m := range mods {
		m.Phases.Filter(ctx.Phases)
	}

	sourceBase := ctx.OptionString(ctx, "source-basedir", filepath.Join(home, "kde", "src"))
	buildBase := ctx.OptionString(ctx, "build-basedir", filepath.Join(home, "kde", "build"))
	installBase := ctx.OptionString(ctx, "install-dir", filepath.Join(home, "kde", "usr"))
	assignDirs(ctx, mods, sourceBase, buildBase, installBase)

	if *queryKey != "" {
		fmt.Print(query.FormatAll(mods, ctx, *queryKey))
		return 0
	}

	persistPath := state.ResolvePath(ctx.OptionString(ctx, "persistent-data-file", ""), filepath.Dir(rcPath), xdgConfigHome, xdgStateHome, home)
	st, err := state.Load(persistPath)
	if err != nil {
		return reportErr(err)
	}

	if *listInstalled {
		fmt.Println(query.ListInstalled(st.InstalledModules()))
		return 0
	}

	byName := make(map[string]*module.Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}
	factory := func(name string) (*module.Module, bool) {
		m, ok := byName[name]
		return m, ok
	}
	graph, err := depgraph.Resolve(mods, bundle.data, factory, include)
	if err != nil {
		return reportErr(err)
	}
	order := depgraph.BuildOrder(graph)

	if *depTree || *depTreeFull {
		var roots []string
		for _, m := range mods {
			roots = append(roots, m.Name)
		}
		fmt.Print(depgraph.RenderTree(graph, roots, *depTreeFull))
		return 0
	}

	order = applyResume(order, st, resumeFlags{
		resume:          *resume,
		resumeFrom:      *resumeFrom,
		resumeAfter:     *resumeAfter,
		stopBefore:      *stopBefore,
		stopAfter:       *stopAfter,
		rebuildFailures: *rebuildFailures,
	})
	if len(order) == 0 {
		fmt.Fprintln(os.Stderr, "kdebuild: resume range selected no modules")
		return 1
	}
	// The resume point of an earlier run has been consumed; clearing it
	// lets recordFailureList record this run's first failure.
	st.SetModuleValue(globalStateKey, "resume-list", "")

	lockPath := filepath.Join(filepath.Dir(persistPath), ".kdebuild-lock")
	lock, acquired, err := state.AcquireLock(lockPath)
	if err != nil {
		return reportErr(err)
	}
	if !acquired {
		fmt.Fprintln(os.Stderr, "kdebuild: another run holds the lock at "+lockPath)
		return 1
	}
	procutil.RegisterCleanup(func() { lock.Release() })
	procutil.RegisterAtExit(func() error { return lock.Release() })
	procutil.RegisterAtExit(func() error { return st.Save() })
	procutil.Watch(nil, cancel)

	logDir := ctx.OptionString(ctx, "log-dir", filepath.Join(filepath.Dir(persistPath), "log"))
	runDir, err := state.NewRunLogDir(logDir, time.Now().UTC().Format("2006-01-02-15-04-05"))
	if err != nil {
		return reportErr(err)
	}

	logger := logging.New(os.Stderr, *verbose, *quiet)
	fileHook := logging.NewModuleFileHook(runDir)
	logger.AddHook(fileHook)
	defer fileHook.Close()

	var groups *branchGroups
	if bundle.groups != nil {
		groups = &branchGroups{resolve: bundle.groups.FindModuleBranch}
	}

	pipe := pipeline.New()
	pipe.ReplayEarlyLog = func(module, line string) {
		logger.WithField("module", module).Info(strings.TrimRight(line, "\n"))
	}

	r := &runState{
		ctx:        ctx,
		mods:       byName,
		groups:     groups,
		logger:     logger,
		pretend:    *pretend,
		stateStore: st,
		pipe:       pipe,
	}

	var failed []debughints.Failure
	failIdx := -1

	err = pipeline.Run(runCtx, pipe, order, r.update, r.build, func(name string, buildErr error) {
		n, ok := graph.Node(name)
		if !ok {
			return
		}
		for i, ord := range order {
			if ord.Name == name {
				if failIdx < 0 || i < failIdx {
					failIdx = i
				}
				break
			}
		}
		st.IncrementFailureCount(name)
		failed = append(failed, debughints.Failure{
			Node:         n,
			Phase:        debughints.PhaseBuild,
			FailureCount: st.FailureCount(name),
		})
		logger.WithField("module", name).Errorf("build failed: %v", buildErr)
		if *stopOnFailure {
			cancelOnFailure()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return reportErr(err)
	}

	if failIdx >= 0 {
		recordFailureList(st, order, failIdx)
	} else {
		st.SetModuleValue(globalStateKey, "resume-list", "")
	}

	if err := procutil.RunAtExit(); err != nil {
		return reportErr(err)
	}

	if runProgram != "" {
		if err := runStartProgram(runCtx, runProgram, runArgs, ctx); err != nil {
			fmt.Fprintln(os.Stderr, "kdebuild: "+err.Error())
		}
	}

	for _, m := range mods {
		for _, msg := range m.PostBuildMessages {
			fmt.Fprintf(os.Stderr, "%s: %s\n", m.Name, msg)
		}
	}

	if len(failed) > 0 {
		ranked := debughints.RankFailures(failed, 5)
		fmt.Fprintln(os.Stderr, "\nMost interesting failures:")
		for _, f := range ranked {
			fmt.Fprintf(os.Stderr, "  %s\n", f.Node.Name)
		}
		return 1
	}
	return 0
}

func reportErr(err error) int {
	fmt.Fprintln(os.Stderr, "kdebuild: "+err.Error())
	if os.Getenv("KDESRC_BUILD_DEBUG") != "" && kdeerr.Is(err, kdeerr.Internal) {
		var e *kdeerr.Error
		if errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, e.Stack())
		}
	}
	return 1
}

func stateBaseDir(xdgStateHome, home string) string {
	if xdgStateHome != "" {
		return xdgStateHome
	}
	return filepath.Join(home, ".local", "state")
}

func moduleSetNeedsKDEProjects(r *config.Result) bool {
	for _, d := range r.Decls {
		if d.Kind == config.DeclModuleSet && d.ModuleSet.Repository == kdebuilder.RepoKDEProjects {
			return true
		}
	}
	return false
}

func anyForcedSelector(selectors []string) bool {
	for _, s := range selectors {
		if len(s) > 0 && s[0] == '+' {
			return true
		}
	}
	return false
}

func gitRepositoryBase(ctx *module.Context) map[string]string {
	v, ok := ctx.Options.Get("git-repository-base")
	if !ok || v.Kind != option.KindMap {
		return nil
	}
	return v.Map
}
