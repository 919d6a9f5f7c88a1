// Package pipeline implements the concurrent update/build coordination
// for a run: an updater goroutine walks the build order running the
// update phase for each module, a builder goroutine walks the same
// order waiting for each module's update status before starting its
// build. Update commonly runs ahead of build, so log lines produced
// during a module's update are held back and replayed contiguously
// with that module's build output instead of interleaving with
// whatever the builder is doing for an earlier module.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	deadlock "github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/errgroup"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/ipc"
	"github.com/kdebuilder/kdebuilder/internal/trace"
)

// UpdateFunc runs the update phase for one module, returning the ipc
// status type (ModuleSuccess/Failure/Skipped/Uptodate/Conflict), a
// short message, and a refresh reason (used only for ModuleUptodate).
type UpdateFunc func(ctx context.Context, moduleName string) (status ipc.Type, msg string, refreshReason string)

// BuildFunc runs the build (and later phases) for one module.
type BuildFunc func(ctx context.Context, moduleName string) error

// moduleStatus is what the builder learns about one module once its
// update phase concludes.
type moduleStatus struct {
	Type          ipc.Type
	RefreshReason string
}

// Pipeline coordinates one run's update and build streams.
type Pipeline struct {
	mu         deadlock.Mutex
	statuses   map[string]moduleStatus
	waiters    map[string][]chan struct{}
	streamUp   chan struct{}
	streamDone bool
	allDone    bool

	// StopRequested is polled between modules: a graceful stop after
	// the in-flight module, typically driven by a SIGHUP handler.
	StopRequested func() bool

	// ReplayEarlyLog, if set, is called with each log line buffered
	// for a module during its update phase, right before that
	// module's build starts.
	ReplayEarlyLog func(module, line string)

	earlyLogs *logBuffer
}

func New() *Pipeline {
	return &Pipeline{
		statuses:  make(map[string]moduleStatus),
		waiters:   make(map[string][]chan struct{}),
		streamUp:  make(chan struct{}),
		earlyLogs: newLogBuffer(),
	}
}

// BufferEarlyLog records a log line produced by a module's update
// phase, to be replayed once that module's build begins.
func (p *Pipeline) BufferEarlyLog(module, line string) {
	p.earlyLogs.Add(module, line)
}

// DrainEarlyLogs returns and clears the buffered early log lines for module.
func (p *Pipeline) DrainEarlyLogs(module string) []string {
	return p.earlyLogs.Drain(module)
}

// Run drives the full pipeline on p: the updater visits modules in
// dependency order running update, recording each module's status;
// the builder waits for each module's status (or stream end) before
// building it, also in dependency order, replaying that module's
// buffered early log lines first. Returns the first error from either
// side. Callers that want StopRequested or ReplayEarlyLog honored
// must set them on p before calling Run.
func Run(ctx context.Context, p *Pipeline, order []*depgraph.Node, update UpdateFunc, build BuildFunc, onFailure func(module string, err error)) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return p.runUpdater(ctx, order, update)
	})
	eg.Go(func() error {
		return p.runBuilder(ctx, order, build, onFailure)
	})

	return eg.Wait()
}

func (p *Pipeline) runUpdater(ctx context.Context, order []*depgraph.Node, update UpdateFunc) error {
	ev := trace.Event("update-stream", 2)
	defer ev.Done()

	p.setStreamStarted()
	for _, n := range order {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mev := trace.Event("update "+n.Name, 2)
		status, _, refreshReason := update(ctx, n.Name)
		mev.Done()
		p.setStatus(n.Name, status, refreshReason)
	}
	p.setAllDone()
	return nil
}

func (p *Pipeline) runBuilder(ctx context.Context, order []*depgraph.Node, build BuildFunc, onFailure func(string, error)) error {
	ev := trace.Event("build-stream", 0)
	defer ev.Done()

	p.waitStreamStart(ctx)

	for i, n := range order {
		if p.StopRequested != nil && p.StopRequested() {
			return nil // graceful stop after the last completed module
		}
		st, ok := p.waitStatus(ctx, n.Name)
		if !ok {
			return nil // ALL_DONE arrived with no status for this module: nothing left to build
		}

		for _, line := range p.DrainEarlyLogs(n.Name) {
			if p.ReplayEarlyLog != nil {
				p.ReplayEarlyLog(n.Name, line)
			}
		}

		switch st.Type {
		case ipc.ModuleFailure, ipc.ModuleConflict:
			if onFailure != nil {
				onFailure(n.Name, fmt.Errorf("update did not succeed for %s", n.Name))
			}
			continue
		}

		bev := trace.Event("build "+n.Name, int64IndexTid(i))
		err := build(ctx, n.Name)
		bev.Done()
		if err != nil && onFailure != nil {
			onFailure(n.Name, err)
		}
	}
	return nil
}

func int64IndexTid(i int) int { return 3 + i%4 }

func (p *Pipeline) setStreamStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamDone {
		return
	}
	p.streamDone = true
	close(p.streamUp)
}

func (p *Pipeline) waitStreamStart(ctx context.Context) {
	select {
	case <-p.streamUp:
	case <-ctx.Done():
	}
}

func (p *Pipeline) setStatus(module string, t ipc.Type, refreshReason string) {
	p.mu.Lock()
	p.statuses[module] = moduleStatus{Type: t, RefreshReason: refreshReason}
	waiters := p.waiters[module]
	delete(p.waiters, module)
	p.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

func (p *Pipeline) setAllDone() {
	p.mu.Lock()
	p.allDone = true
	var all []chan struct{}
	for _, ws := range p.waiters {
		all = append(all, ws...)
	}
	p.waiters = make(map[string][]chan struct{})
	p.mu.Unlock()
	for _, w := range all {
		close(w)
	}
}

// waitStatus blocks until module's status is known, or ALL_DONE fires
// with no status ever recorded for it (ok=false).
func (p *Pipeline) waitStatus(ctx context.Context, module string) (moduleStatus, bool) {
	for {
		p.mu.Lock()
		if st, ok := p.statuses[module]; ok {
			p.mu.Unlock()
			return st, true
		}
		if p.allDone {
			p.mu.Unlock()
			return moduleStatus{}, false
		}
		ch := make(chan struct{})
		p.waiters[module] = append(p.waiters[module], ch)
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return moduleStatus{}, false
		}
	}
}

// logBuffer buffers log lines produced by a module's update phase,
// grouped by module name, until the builder is ready to replay them.
type logBuffer struct {
	mu    sync.Mutex
	byMod map[string][]string
}

func newLogBuffer() *logBuffer {
	return &logBuffer{byMod: make(map[string][]string)}
}

func (b *logBuffer) Add(module, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byMod[module] = append(b.byMod[module], line)
}

func (b *logBuffer) Drain(module string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.byMod[module]
	delete(b.byMod, module)
	return lines
}
