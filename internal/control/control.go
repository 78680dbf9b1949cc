// Package control exposes the thin, idempotent surface an outer caller (CLI,
// test harness, or future IPC adapter) drives the supervisor through: load,
// reload, per-group and per-service start/stop, and a status snapshot.
package control

import (
	"context"
	"fmt"
	"io"

	"github.com/tomtom215/procmux/internal/graph"
	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/internal/orchestrator"
	"github.com/tomtom215/procmux/internal/registry"
	"github.com/tomtom215/procmux/internal/runtime"
)

// StatusSnapshot is one {service, status, pid?} tuple, per spec section 4.G.
type StatusSnapshot struct {
	Service string
	Status  string
	PID     int
	HasPID  bool
}

// Surface is the control-surface implementation. All operations are
// idempotent with respect to the service state machine of spec section 4.D.
type Surface struct {
	reg *registry.Registry
	orc *orchestrator.Orchestrator
	cfg *model.Configuration
}

// New builds a Surface over an already-validated Configuration. Use
// LoadAll/Reload via the outer caller to (re)build cfg from a config file
// and construct a fresh Surface.
func New(cfg *model.Configuration, sink io.Writer) *Surface {
	reg := registry.New(sink)
	for i := range cfg.Groups {
		// Uniqueness across groups was already proven by
		// model.NewConfiguration; this only populates the registry's own
		// name/alias -> group map (spec section 4.F) for Surface.Group and
		// any future caller that wants group lookups straight off reg
		// rather than threading the Configuration through.
		_ = reg.RegisterGroup(&cfg.Groups[i])
	}
	return &Surface{
		reg: reg,
		orc: orchestrator.New(cfg, reg),
		cfg: cfg,
	}
}

// Group resolves a group by name or alias through the registry, per spec
// section 4.F's name/alias -> group lookup.
func (s *Surface) Group(name string) (*model.GroupDescriptor, bool) {
	return s.reg.Group(name)
}

// LoadAll validates every declared group up front (spec section 4.B), so
// configuration mistakes surface before any process is spawned.
func (s *Surface) LoadAll() error {
	return graph.New(s.cfg).LoadAll()
}

// Reload is permitted only when no service is running (spec section 4.G);
// callers construct a new Configuration and Surface and call Reload to
// confirm the old one is safely replaceable before swapping it in.
func (s *Surface) Reload() error {
	return s.reg.Clear()
}

// StartGroup starts the named group and its transitive dependencies.
func (s *Surface) StartGroup(ctx context.Context, name string) error {
	return s.orc.StartGroup(ctx, name)
}

// StopGroup stops every service in the named group concurrently.
func (s *Surface) StopGroup(ctx context.Context, name string) error {
	return s.orc.StopGroup(ctx, name)
}

// StartService starts a single service outside of any group barrier. It is
// idempotent: a service that is already running is left alone.
func (s *Surface) StartService(ctx context.Context, name string) error {
	desc, ok := s.cfg.ResolveService(name)
	if !ok {
		return fmt.Errorf("%w: service %q", model.ErrServiceNotFound, name)
	}
	svc, err := s.reg.EnsureService(desc)
	if err != nil {
		return err
	}
	if svc.IsRunning() {
		return nil
	}
	go svc.Run(ctx)
	return nil
}

// StopService stops a single service. Idempotent: stopping an already
// stopped service is a no-op.
func (s *Surface) StopService(ctx context.Context, name string) error {
	svc, ok := s.reg.Service(name)
	if !ok {
		return fmt.Errorf("%w: service %q", model.ErrServiceNotFound, name)
	}
	return svc.Stop(ctx)
}

// Start resolves name as a service first, then as a group, and starts
// whichever it is - the dispatcher behind the CLI's `start <service|group>`
// syntax (spec section 4.C "External interfaces").
func (s *Surface) Start(ctx context.Context, name string) error {
	if _, ok := s.cfg.ResolveService(name); ok {
		return s.StartService(ctx, name)
	}
	if _, ok := s.cfg.ResolveGroup(name); ok {
		return s.StartGroup(ctx, name)
	}
	return fmt.Errorf("%w: %q is neither a service nor a group", model.ErrServiceNotFound, name)
}

// Stop resolves name as a service first, then as a group, and stops
// whichever it is.
func (s *Surface) Stop(ctx context.Context, name string) error {
	if _, ok := s.cfg.ResolveService(name); ok {
		return s.StopService(ctx, name)
	}
	if _, ok := s.cfg.ResolveGroup(name); ok {
		return s.StopGroup(ctx, name)
	}
	return fmt.Errorf("%w: %q is neither a service nor a group", model.ErrServiceNotFound, name)
}

// ShutdownAll stops every running group in reverse dependency order.
func (s *Surface) ShutdownAll(ctx context.Context) error {
	return s.orc.ShutdownAll(ctx)
}

// Status returns a snapshot of every configured service's current state,
// or - when name is non-empty - just the one matching service. A service
// that has not been instantiated yet reports LOADED with no PID.
func (s *Surface) Status(name string) ([]StatusSnapshot, error) {
	snapshotFor := func(desc *model.ServiceDescriptor) StatusSnapshot {
		if svc, ok := s.reg.Service(desc.Name); ok {
			return snapshotOf(svc)
		}
		return StatusSnapshot{Service: desc.Name, Status: runtime.LOADED.String()}
	}

	if name != "" {
		desc, ok := s.cfg.ResolveService(name)
		if !ok {
			return nil, fmt.Errorf("%w: service %q", model.ErrServiceNotFound, name)
		}
		return []StatusSnapshot{snapshotFor(desc)}, nil
	}

	out := make([]StatusSnapshot, 0, len(s.cfg.Services))
	for i := range s.cfg.Services {
		out = append(out, snapshotFor(&s.cfg.Services[i]))
	}
	return out, nil
}

func snapshotOf(svc *runtime.Service) StatusSnapshot {
	snap := StatusSnapshot{Service: svc.Name(), Status: svc.Status().String()}
	if pid, ok := svc.PID(); ok {
		snap.PID = pid
		snap.HasPID = true
	}
	return snap
}
