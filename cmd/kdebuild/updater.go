package main

import (
	"context"
	"fmt"

	"github.com/kdebuilder/kdebuilder"
	"github.com/kdebuilder/kdebuilder/internal/gitupdater"
	"github.com/kdebuilder/kdebuilder/internal/ipc"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/pipeline"
	"github.com/kdebuilder/kdebuilder/internal/state"
	"github.com/sirupsen/logrus"
)

// runState bundles what both the update and build phase functions need
// per module, assembled once in main before the pipeline starts.
type runState struct {
	ctx        *module.Context
	mods       map[string]*module.Module
	groups     *branchGroups
	logger     *logrus.Logger
	pretend    bool
	stateStore *state.Store
	pipe       *pipeline.Pipeline
}

// branchGroups adapts the optional kde-projects branch-group resolver
// into the callback shape gitupdater.Source expects, tolerating a nil
// resolver (no kde-projects metadata available).
type branchGroups struct {
	resolve func(module, group string) (string, bool)
}

func (r *runState) moduleLog(name string) *logrus.Entry {
	return r.logger.WithField("module", name)
}

// earlyLogWriter buffers a module's update-phase output on the
// pipeline instead of writing it straight to the console, so it can
// be replayed contiguously with that module's build output.
type earlyLogWriter struct {
	pipe   *pipeline.Pipeline
	module string
}

func (w earlyLogWriter) Write(p []byte) (int, error) {
	w.pipe.BufferEarlyLog(w.module, string(p))
	return len(p), nil
}

// update implements pipeline.UpdateFunc: the per-module git state
// machine driving clone/fetch/checkout.
func (r *runState) update(ctx context.Context, name string) (ipc.Type, string, string) {
	m, ok := r.mods[name]
	if !ok || m == nil {
		return ipc.ModuleFailure, "no module declaration for " + name, ""
	}
	if !m.Phases.Has(kdebuilder.PhaseUpdate) {
		return ipc.ModuleSkipped, "update phase not selected", ""
	}

	log := r.moduleLog(name)
	repoURL, isKDE := repoURLFor(m, r.ctx)

	src := gitupdater.Source{
		RepoURL:           repoURL,
		IsKDEProject:      isKDE,
		GitUser:           m.OptionString(r.ctx, "git-user", ""),
		PushProtocol:      m.OptionString(r.ctx, "git-push-protocol", "https"),
		Commit:            m.OptionString(r.ctx, "commit", ""),
		Revision:          m.OptionString(r.ctx, "revision", ""),
		Tag:               m.OptionString(r.ctx, "tag", ""),
		Branch:            m.OptionString(r.ctx, "branch", ""),
		BranchGroup:       m.OptionString(r.ctx, "branch-group", ""),
		GlobalBranch:      r.ctx.OptionString(r.ctx, "branch", ""),
		GlobalBranchGroup: r.ctx.OptionString(r.ctx, "branch-group", ""),
	}
	if r.groups != nil {
		key := m.ProjectPath
		if key == "" {
			key = m.Name
		}
		src.ResolveBranchGroup = func(group string) (string, bool) {
			return r.groups.resolve(key, group)
		}
	}
	checkout := gitupdater.ResolveCheckout(src)

	logWrite := log.Writer().Write
	if r.pipe != nil {
		logWrite = earlyLogWriter{pipe: r.pipe, module: name}.Write
	}
	u := &gitupdater.Updater{
		Ctx:        ctx,
		SourceDir:  m.SourceDir,
		ModuleName: name,
		Log:        logWrite,
	}

	state, err := gitupdater.DetectState(m.SourceDir)
	if err != nil {
		return ipc.ModuleFailure, err.Error(), ""
	}

	if r.pretend {
		switch state {
		case gitupdater.Absent:
			return ipc.ModuleSuccess, "would clone " + repoURL, ""
		default:
			return ipc.ModuleUptodate, "pretending: source left untouched", ""
		}
	}

	switch state {
	case gitupdater.Absent:
		commits, err := u.Clone(repoURL, checkout, src.GitUser)
		if err != nil {
			return ipc.ModuleFailure, err.Error(), ""
		}
		return ipc.ModuleSuccess, fmt.Sprintf("cloned, %d files", commits), ""

	case gitupdater.PresentWithoutGit:
		return ipc.ModuleConflict, "source directory exists but is not a git checkout", ""

	default: // PresentWithGit
		remote, err := u.BestRemote(repoURL, isKDE)
		if err != nil {
			return ipc.ModuleFailure, err.Error(), ""
		}
		commits, warning, err := u.Update(remote, checkout)
		if err != nil {
			return ipc.ModuleFailure, err.Error(), ""
		}
		if warning != "" {
			m.AddPostBuildMessage(warning)
		}
		if commits == 0 {
			return ipc.ModuleUptodate, "up to date", "no new commits"
		}
		return ipc.ModuleSuccess, fmt.Sprintf("updated, %d new commits", commits), ""
	}
}
