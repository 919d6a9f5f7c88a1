package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kdebuilder/kdebuilder/internal/depgraph"
	"github.com/kdebuilder/kdebuilder/internal/ipc"
	"github.com/kdebuilder/kdebuilder/internal/module"
	"github.com/kdebuilder/kdebuilder/internal/pipeline"
)

func buildOrder(names ...string) []*depgraph.Node {
	var mods []*module.Module
	for i, n := range names {
		m := module.New(n)
		m.CreationID = i
		mods = append(mods, m)
	}
	g, err := depgraph.Resolve(mods, &depgraph.Data{}, func(string) (*module.Module, bool) { return nil, false }, false)
	Expect(err).NotTo(HaveOccurred())
	return depgraph.BuildOrder(g)
}

var _ = Describe("Pipeline", func() {
	It("builds a module only after its update status arrives, preserving per-module order", func() {
		order := buildOrder("a", "b", "c")

		var mu sync.Mutex
		var built []string
		updated := map[string]bool{}
		var builtBeforeUpdate []string

		update := func(ctx context.Context, name string) (ipc.Type, string, string) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			updated[name] = true
			mu.Unlock()
			return ipc.ModuleSuccess, "updated", ""
		}
		build := func(ctx context.Context, name string) error {
			mu.Lock()
			if !updated[name] {
				builtBeforeUpdate = append(builtBeforeUpdate, name)
			}
			built = append(built, name)
			mu.Unlock()
			return nil
		}

		err := pipeline.Run(context.Background(), pipeline.New(), order, update, build, nil)
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(builtBeforeUpdate).To(BeEmpty())
		Expect(built).To(Equal([]string{"a", "b", "c"}))
	})

	It("skips the build for a module whose update failed", func() {
		order := buildOrder("x", "y")

		update := func(ctx context.Context, name string) (ipc.Type, string, string) {
			if name == "x" {
				return ipc.ModuleFailure, "", ""
			}
			return ipc.ModuleSuccess, "ok", ""
		}
		var mu sync.Mutex
		built := map[string]bool{}
		build := func(ctx context.Context, name string) error {
			mu.Lock()
			built[name] = true
			mu.Unlock()
			return nil
		}
		var failures []string
		err := pipeline.Run(context.Background(), pipeline.New(), order, update, build, func(m string, err error) {
			mu.Lock()
			failures = append(failures, m)
			mu.Unlock()
		})
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(built["x"]).To(BeFalse())
		Expect(built["y"]).To(BeTrue())
		Expect(failures).To(ContainElement("x"))
	})

	It("reports a build error via onFailure without aborting the run", func() {
		order := buildOrder("m")
		update := func(ctx context.Context, name string) (ipc.Type, string, string) {
			return ipc.ModuleSuccess, "ok", ""
		}
		build := func(ctx context.Context, name string) error {
			return fmt.Errorf("build failed for %s", name)
		}
		var failed string
		err := pipeline.Run(context.Background(), pipeline.New(), order, update, build, func(m string, err error) {
			failed = m
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(failed).To(Equal("m"))
	})

	It("buffers and drains early log lines per module", func() {
		p := pipeline.New()
		p.BufferEarlyLog("kcoreaddons", "configuring")
		p.BufferEarlyLog("kcoreaddons", "building")
		p.BufferEarlyLog("kwidgetsaddons", "configuring")

		Expect(p.DrainEarlyLogs("kcoreaddons")).To(Equal([]string{"configuring", "building"}))
		Expect(p.DrainEarlyLogs("kcoreaddons")).To(BeEmpty())
		Expect(p.DrainEarlyLogs("kwidgetsaddons")).To(Equal([]string{"configuring"}))
	})

	It("replays a module's early log lines right before its build starts", func() {
		order := buildOrder("a", "b")
		p := pipeline.New()

		var mu sync.Mutex
		var replayed []string
		p.ReplayEarlyLog = func(module, line string) {
			mu.Lock()
			replayed = append(replayed, module+":"+line)
			mu.Unlock()
		}

		update := func(ctx context.Context, name string) (ipc.Type, string, string) {
			p.BufferEarlyLog(name, "cloned "+name)
			return ipc.ModuleSuccess, "updated", ""
		}
		build := func(ctx context.Context, name string) error { return nil }

		err := pipeline.Run(context.Background(), p, order, update, build, nil)
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(replayed).To(ConsistOf("a:cloned a", "b:cloned b"))
	})
})
