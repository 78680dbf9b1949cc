// Package orchestrator implements the group scheduler: dependency-ordered
// group start with a started-barrier, concurrent group stop, and a
// reverse-level-order shutdownAll. It is the only caller that drives
// runtime.Service instances through Run/Stop as part of a named group.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/procmux/internal/graph"
	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/internal/registry"
	"github.com/tomtom215/procmux/internal/runtime"
	"github.com/tomtom215/procmux/pkg/logging"
)

// groupGrace is the overall grace given to a group's worker pool during
// shutdownAll before the next level proceeds regardless, per spec section 5.
const groupGrace = 5 * time.Second

// Orchestrator drives group start/stop against a Configuration, instantiating
// services through a Registry on demand. It owns no process state itself;
// every piece of mutable state belongs either to the registry or to the
// individual runtime.Service instances it drives.
type Orchestrator struct {
	cfg       *model.Configuration
	validator *graph.Validator
	reg       *registry.Registry

	mu        sync.Mutex
	validated map[string]bool
}

// New constructs an Orchestrator over cfg, instantiating services lazily
// through reg as groups are started.
func New(cfg *model.Configuration, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		validator: graph.New(cfg),
		reg:       reg,
		validated: make(map[string]bool),
	}
}

// ensureValidated runs the graph validator for name's subgraph exactly once
// per Orchestrator lifetime (spec section 4.E: "if not already validated
// during this config cycle").
func (o *Orchestrator) ensureValidated(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.validated[name] {
		return nil
	}
	if err := o.validator.Validate(name); err != nil {
		return err
	}
	o.validated[name] = true
	return nil
}

// StartGroup starts the named group and every transitive dependency group
// synchronously before it, per spec section 4.E. A dependency group that is
// already fully up is a no-op; a concurrent call on an already-up group
// returns immediately.
func (o *Orchestrator) StartGroup(ctx context.Context, name string) error {
	if err := o.ensureValidated(name); err != nil {
		return err
	}
	runID := uuid.New()
	return o.startGroupRec(ctx, name, runID, make(map[string]bool))
}

// startGroupRec starts dep groups depth-first before name itself. visited
// guards against re-entering a group already started earlier in this same
// call tree (the graph validator already rules out cycles; this only avoids
// redundant work across shared dependencies, e.g. a diamond).
func (o *Orchestrator) startGroupRec(ctx context.Context, name string, runID uuid.UUID, visited map[string]bool) error {
	if visited[name] {
		return nil
	}
	visited[name] = true

	g, ok := o.cfg.ResolveGroup(name)
	if !ok {
		return fmt.Errorf("%w: group %q", model.ErrGroupNotFound, name)
	}

	for _, dep := range g.Dependencies {
		if err := o.startGroupRec(ctx, dep, runID, visited); err != nil {
			return err
		}
	}

	return o.startOneGroup(ctx, g, runID)
}

// startOneGroup instantiates every service the group references, submits the
// not-already-running ones to a worker pool sized to the group's service
// count, and blocks until each has fired its one-shot started-barrier event
// (a STARTED transition, or an ERROR transition when ignoreErrors is set).
func (o *Orchestrator) startOneGroup(ctx context.Context, g *model.GroupDescriptor, runID uuid.UUID) error {
	services := make([]*runtime.Service, 0, len(g.Services))
	pending := make([]*runtime.Service, 0, len(g.Services))

	for _, svcName := range g.Services {
		desc, ok := o.cfg.ResolveService(svcName)
		if !ok {
			return fmt.Errorf("%w: service %q", model.ErrServiceNotFound, svcName)
		}
		svc, err := o.reg.EnsureService(desc)
		if err != nil {
			return err
		}
		services = append(services, svc)
		if !svc.IsRunning() {
			pending = append(pending, svc)
		}
	}

	if len(pending) == 0 {
		logging.Info("Orchestrator", "group %s already up, run %s is a no-op", g.Name, runID)
		return nil
	}

	logging.Info("Orchestrator", "starting group %s (%d of %d services), run %s", g.Name, len(pending), len(services), runID)

	sem := semaphore.NewWeighted(int64(len(services)))
	var wg sync.WaitGroup
	errCh := make(chan error, len(pending))

	for _, svc := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(svc *runtime.Service) {
			defer sem.Release(1)
			defer wg.Done()
			if err := o.runAndAwaitBarrier(ctx, svc); err != nil {
				errCh <- err
			}
		}(svc)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

// runAndAwaitBarrier spawns svc and blocks until its one-shot barrier event
// fires: the first STARTED transition, or (when ignoreErrors) the first
// ERROR transition. When ignoreErrors is false an ERROR transition is
// returned as the halting error, per spec section 4.E's ignore-errors
// policy.
func (o *Orchestrator) runAndAwaitBarrier(ctx context.Context, svc *runtime.Service) error {
	sub := svc.Subscribe(4)
	barrier := make(chan error, 1)

	go func() {
		for t := range sub {
			switch t.To {
			case runtime.STARTED:
				barrier <- nil
				return
			case runtime.ERROR:
				if o.cfg.IgnoreErrors {
					barrier <- nil
				} else {
					barrier <- fmt.Errorf("%w: service %q", model.ErrServiceReportedError, svc.Name())
				}
				return
			case runtime.STOPPED:
				// Process exited before ever reaching a started pattern.
				barrier <- fmt.Errorf("%w: service %q exited before starting", model.ErrSpawnFailed, svc.Name())
				return
			}
		}
	}()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- svc.Run(ctx) }()

	select {
	case err := <-barrier:
		return err
	case err := <-runErrCh:
		// Run returned first. A non-nil error is a spawn failure, which
		// publishes no barrier-relevant transition; a nil return means the
		// process already exited, so the barrier goroutine has seen (or is
		// about to see) its STARTED, ERROR or STOPPED transition.
		if err != nil {
			return err
		}
		return <-barrier
	}
}

// StopGroup stops every service in the named group concurrently, awaiting
// each to reach STOPPED or its own stopTimeoutSeconds, per spec section 4.E.
func (o *Orchestrator) StopGroup(ctx context.Context, name string) error {
	g, ok := o.cfg.ResolveGroup(name)
	if !ok {
		return fmt.Errorf("%w: group %q", model.ErrGroupNotFound, name)
	}
	return o.stopServices(ctx, g.Services)
}

func (o *Orchestrator) stopServices(ctx context.Context, names []string) error {
	var wg sync.WaitGroup
	for _, svcName := range names {
		svc, ok := o.reg.Service(svcName)
		if !ok || !svc.IsRunning() {
			continue
		}
		wg.Add(1)
		go func(svc *runtime.Service) {
			defer wg.Done()
			if err := svc.Stop(ctx); err != nil {
				logging.Warn("Orchestrator", "stopping service %s: %v", svc.Name(), err)
			}
		}(svc)
	}
	wg.Wait()
	return nil
}

// ShutdownAll computes a reverse-level order of the entire group forest
// (roots first, leaves last, then reversed so leaves stop first) and stops
// groups level by level, giving each level groupGrace before moving on
// regardless of stragglers, per spec section 4.E. Stops still running when
// the grace elapses continue in the background.
func (o *Orchestrator) ShutdownAll(ctx context.Context) error {
	levels := o.levels()

	for i := len(levels) - 1; i >= 0; i-- {
		level := levels[i]
		levelCtx, cancel := context.WithTimeout(ctx, groupGrace)
		eg, egCtx := errgroup.WithContext(levelCtx)
		for _, g := range level {
			g := g
			eg.Go(func() error {
				return o.stopServices(egCtx, g.Services)
			})
		}
		waitDone := make(chan error, 1)
		go func() { waitDone <- eg.Wait() }()
		select {
		case err := <-waitDone:
			if err != nil {
				logging.Warn("Orchestrator", "shutdown level %d: %v", i, err)
			}
		case <-levelCtx.Done():
			logging.Warn("Orchestrator", "shutdown level %d: still stopping after %s, moving on", i, groupGrace)
		}
		cancel()
	}
	return nil
}

// levels partitions every declared group into dependency levels: level 0
// holds groups with no dependencies, level N holds groups whose dependencies
// are all in levels < N. This is the root-first order named in spec section
// 4.E; ShutdownAll walks it in reverse.
func (o *Orchestrator) levels() [][]*model.GroupDescriptor {
	depth := make(map[string]int, len(o.cfg.Groups))
	var assign func(name string) int
	assign = func(name string) int {
		if d, ok := depth[name]; ok {
			return d
		}
		g, ok := o.cfg.ResolveGroup(name)
		if !ok {
			return 0
		}
		max := 0
		for _, dep := range g.Dependencies {
			if d := assign(dep) + 1; d > max {
				max = d
			}
		}
		depth[name] = max
		return max
	}

	maxDepth := 0
	for _, g := range o.cfg.Groups {
		if d := assign(g.Name); d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]*model.GroupDescriptor, maxDepth+1)
	for i := range o.cfg.Groups {
		g := &o.cfg.Groups[i]
		d := depth[g.Name]
		levels[d] = append(levels[d], g)
	}
	return levels
}
