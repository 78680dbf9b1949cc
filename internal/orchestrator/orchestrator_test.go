package orchestrator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/internal/registry"
	"github.com/tomtom215/procmux/internal/runtime"
)

func svcSpec(name, startCmd string, started ...string) model.ServiceSpec {
	return model.ServiceSpec{
		Name:               name,
		StartCommand:       startCmd,
		StartedPatterns:    started,
		StopTimeoutSeconds: 1,
	}
}

func buildConfig(t *testing.T, services []model.ServiceSpec, groups []model.GroupSpec, ignoreErrors bool) *model.Configuration {
	t.Helper()
	descs := make([]model.ServiceDescriptor, len(services))
	for i, s := range services {
		d, err := model.NewServiceDescriptor(s)
		require.NoError(t, err)
		descs[i] = d
	}
	gds := make([]model.GroupDescriptor, len(groups))
	for i, g := range groups {
		d, err := model.NewGroupDescriptor(g)
		require.NoError(t, err)
		gds[i] = d
	}
	cfg, err := model.NewConfiguration(descs, gds, 0, ignoreErrors)
	require.NoError(t, err)
	return cfg
}

func TestStartGroupWaitsForEveryServiceBarrier(t *testing.T) {
	cfg := buildConfig(t,
		[]model.ServiceSpec{
			svcSpec("a", "echo up-a; sleep 2", "up-a"),
			svcSpec("b", "echo up-b; sleep 2", "up-b"),
		},
		[]model.GroupSpec{{Name: "g", Services: []string{"a", "b"}}},
		false,
	)
	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, o.StartGroup(ctx, "g"))

	a, _ := reg.Service("a")
	b, _ := reg.Service("b")
	assert.True(t, a.IsRunning())
	assert.True(t, b.IsRunning())

	require.NoError(t, o.StopGroup(context.Background(), "g"))
}

func TestStartGroupHaltsOnErrorWithoutIgnoreErrors(t *testing.T) {
	errDesc, err := model.NewServiceDescriptor(model.ServiceSpec{
		Name: "bad", StartCommand: "echo boom 1>&2; sleep 2", ErrorPatterns: []string{"boom"}, StopTimeoutSeconds: 1,
	})
	require.NoError(t, err)
	grp, err := model.NewGroupDescriptor(model.GroupSpec{Name: "g", Services: []string{"bad"}})
	require.NoError(t, err)
	cfg, err := model.NewConfiguration([]model.ServiceDescriptor{errDesc}, []model.GroupDescriptor{grp}, 0, false)
	require.NoError(t, err)

	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = o.StartGroup(ctx, "g")
	assert.ErrorIs(t, err, model.ErrServiceReportedError)

	o.stopServices(context.Background(), []string{"bad"})
}

func TestStartGroupIgnoreErrorsCountsErrorAsBarrierRelease(t *testing.T) {
	errDesc, err := model.NewServiceDescriptor(model.ServiceSpec{
		Name: "bad", StartCommand: "echo boom 1>&2; sleep 2", ErrorPatterns: []string{"boom"}, StopTimeoutSeconds: 1,
	})
	require.NoError(t, err)
	okDesc, err := model.NewServiceDescriptor(model.ServiceSpec{
		Name: "good", StartCommand: "echo up; sleep 2", StartedPatterns: []string{"up"}, StopTimeoutSeconds: 1,
	})
	require.NoError(t, err)
	grp, err := model.NewGroupDescriptor(model.GroupSpec{Name: "g", Services: []string{"bad", "good"}})
	require.NoError(t, err)

	cfg, err := model.NewConfiguration([]model.ServiceDescriptor{errDesc, okDesc}, []model.GroupDescriptor{grp}, 0, true)
	require.NoError(t, err)

	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, o.StartGroup(ctx, "g"))

	bad, _ := reg.Service("bad")
	good, _ := reg.Service("good")
	assert.True(t, bad.IsRunning())
	assert.True(t, good.IsRunning())

	o.stopServices(context.Background(), []string{"bad", "good"})
}

func TestStartGroupStartsDependencyGroupFirst(t *testing.T) {
	cfg := buildConfig(t,
		[]model.ServiceSpec{
			svcSpec("dep-svc", "echo dep-up; sleep 2", "dep-up"),
			svcSpec("main-svc", "echo main-up; sleep 2", "main-up"),
		},
		[]model.GroupSpec{
			{Name: "dep", Services: []string{"dep-svc"}},
			{Name: "main", Services: []string{"main-svc"}, Dependencies: []string{"dep"}},
		},
		false,
	)
	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, o.StartGroup(ctx, "main"))

	depSvc, _ := reg.Service("dep-svc")
	mainSvc, _ := reg.Service("main-svc")
	assert.True(t, depSvc.IsRunning())
	assert.True(t, mainSvc.IsRunning())

	o.stopServices(context.Background(), []string{"dep-svc", "main-svc"})
}

func TestStartGroupAlreadyUpIsNoOp(t *testing.T) {
	cfg := buildConfig(t,
		[]model.ServiceSpec{svcSpec("a", "echo up; sleep 2", "up")},
		[]model.GroupSpec{{Name: "g", Services: []string{"a"}}},
		false,
	)
	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, o.StartGroup(ctx, "g"))
	require.NoError(t, o.StartGroup(ctx, "g"))

	o.stopServices(context.Background(), []string{"a"})
}

func TestShutdownAllStopsLeafLevelBeforeRoot(t *testing.T) {
	cfg := buildConfig(t,
		[]model.ServiceSpec{
			svcSpec("dep-svc", "echo dep-up; sleep 5", "dep-up"),
			svcSpec("main-svc", "echo main-up; sleep 5", "main-up"),
		},
		[]model.GroupSpec{
			{Name: "dep", Services: []string{"dep-svc"}},
			{Name: "main", Services: []string{"main-svc"}, Dependencies: []string{"dep"}},
		},
		false,
	)
	reg := registry.New(&bytes.Buffer{})
	o := New(cfg, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.StartGroup(ctx, "main"))

	require.NoError(t, o.ShutdownAll(context.Background()))

	depSvc, _ := reg.Service("dep-svc")
	mainSvc, _ := reg.Service("main-svc")
	assert.False(t, depSvc.IsRunning())
	assert.False(t, mainSvc.IsRunning())

	transitionAt := func(svc *runtime.Service, to runtime.Status) time.Time {
		for _, tr := range svc.History() {
			if tr.To == to {
				return tr.At
			}
		}
		t.Fatalf("service %s never reached %s", svc.Name(), to)
		return time.Time{}
	}
	assert.True(t, transitionAt(mainSvc, runtime.STOPPED).Before(transitionAt(depSvc, runtime.STOPPING)),
		"the dependant group's service must be stopped before its dependency starts stopping")
}
