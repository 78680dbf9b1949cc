package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/procmux/internal/model"
)

func svc(t *testing.T, name string) model.ServiceDescriptor {
	t.Helper()
	d, err := model.NewServiceDescriptor(model.ServiceSpec{Name: name, StartCommand: "echo " + name})
	require.NoError(t, err)
	return d
}

func grp(t *testing.T, name string, services, deps []string) model.GroupDescriptor {
	t.Helper()
	g, err := model.NewGroupDescriptor(model.GroupSpec{Name: name, Services: services, Dependencies: deps})
	require.NoError(t, err)
	return g
}

func TestValidateAcceptsLinearChain(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1"), svc(t, "s2"), svc(t, "s3")}
	groups := []model.GroupDescriptor{
		grp(t, "g1", []string{"s1"}, nil),
		grp(t, "g2", []string{"s2"}, []string{"g1"}),
		grp(t, "g3", []string{"s3"}, []string{"g2"}),
	}
	cfg, err := model.NewConfiguration(services, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	assert.NoError(t, v.Validate("g3"))
}

func TestValidateRejectsCycle(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1"), svc(t, "s2")}
	groups := []model.GroupDescriptor{
		grp(t, "a", []string{"s1"}, []string{"b"}),
		grp(t, "b", []string{"s2"}, []string{"a"}),
	}
	cfg, err := model.NewConfiguration(services, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	err = v.Validate("a")
	assert.ErrorIs(t, err, model.ErrCircularDependency)
}

func TestValidateRejectsDepthExceeded(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1"), svc(t, "s2"), svc(t, "s3")}
	groups := []model.GroupDescriptor{
		grp(t, "g1", []string{"s1"}, nil),
		grp(t, "g2", []string{"s2"}, []string{"g1"}),
		grp(t, "g3", []string{"s3"}, []string{"g2"}),
	}
	cfg, err := model.NewConfiguration(services, groups, 2, false)
	require.NoError(t, err)

	v := New(cfg)
	err = v.Validate("g3")
	assert.ErrorIs(t, err, model.ErrMaxDepthExceeded)
}

func TestValidateRejectsMissingGroupReference(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1")}
	groups := []model.GroupDescriptor{grp(t, "g1", []string{"s1"}, []string{"ghost"})}
	cfg, err := model.NewConfiguration(services, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	assert.ErrorIs(t, v.Validate("g1"), model.ErrGroupNotFound)
}

func TestValidateRejectsMissingServiceReference(t *testing.T) {
	groups := []model.GroupDescriptor{grp(t, "g1", []string{"ghost"}, nil)}
	cfg, err := model.NewConfiguration(nil, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	assert.ErrorIs(t, v.Validate("g1"), model.ErrServiceNotFound)
}

func TestLoadAllStopsAtFirstFailure(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1")}
	groups := []model.GroupDescriptor{
		grp(t, "good", []string{"s1"}, nil),
		grp(t, "bad", []string{"ghost"}, nil),
	}
	cfg, err := model.NewConfiguration(services, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	assert.ErrorIs(t, v.LoadAll(), model.ErrServiceNotFound)
}

func TestDiamondDependencyDoesNotFalsePositiveCycle(t *testing.T) {
	services := []model.ServiceDescriptor{svc(t, "s1"), svc(t, "s2"), svc(t, "s3"), svc(t, "s4")}
	groups := []model.GroupDescriptor{
		grp(t, "base", []string{"s1"}, nil),
		grp(t, "left", []string{"s2"}, []string{"base"}),
		grp(t, "right", []string{"s3"}, []string{"base"}),
		grp(t, "top", []string{"s4"}, []string{"left", "right"}),
	}
	cfg, err := model.NewConfiguration(services, groups, 5, false)
	require.NoError(t, err)

	v := New(cfg)
	assert.NoError(t, v.Validate("top"))
}
