// Package graph validates the group-dependency relation declared in a
// model.Configuration: it must resolve, be acyclic, and stay within the
// configured maximum depth before the orchestrator is allowed to start
// anything.
package graph

import (
	"fmt"

	"github.com/tomtom215/procmux/internal/model"
)

type color int

const (
	white color = iota
	gray
	black
)

// Validator walks a Configuration's group-dependency graph on demand. It
// holds no mutable state between calls; Validate/LoadAll are safe to call
// concurrently from multiple goroutines against the same Configuration,
// which itself is immutable once built.
type Validator struct {
	cfg *model.Configuration
}

func New(cfg *model.Configuration) *Validator {
	return &Validator{cfg: cfg}
}

// Validate proves the subgraph rooted at group id is acyclic, every
// referenced group and service exists, and its longest root-to-leaf path
// does not exceed cfg.MaxDepth.
func (v *Validator) Validate(id string) error {
	root, ok := v.cfg.ResolveGroup(id)
	if !ok {
		return fmt.Errorf("%w: group %q", model.ErrGroupNotFound, id)
	}

	colors := make(map[string]color)
	_, err := v.walk(root.Name, colors)
	return err
}

// walk returns the depth of the longest root-to-leaf path starting at
// (and including) the node named by id, via a white/gray/black-colored DFS.
// A gray neighbor encountered during the walk indicates a cycle; black means
// already fully explored on a different path.
func (v *Validator) walk(id string, colors map[string]color) (int, error) {
	g, ok := v.cfg.ResolveGroup(id)
	if !ok {
		return 0, fmt.Errorf("%w: group %q", model.ErrGroupNotFound, id)
	}

	for _, svc := range g.Services {
		if _, ok := v.cfg.ResolveService(svc); !ok {
			return 0, fmt.Errorf("%w: service %q referenced by group %q", model.ErrServiceNotFound, svc, g.Name)
		}
	}

	colors[g.Name] = gray
	defer func() { colors[g.Name] = black }()

	maxChildDepth := 0
	for _, dep := range g.Dependencies {
		depGroup, ok := v.cfg.ResolveGroup(dep)
		if !ok {
			return 0, fmt.Errorf("%w: group %q depends on unknown group %q", model.ErrGroupNotFound, g.Name, dep)
		}
		if colors[depGroup.Name] == gray {
			return 0, fmt.Errorf("%w: %q -> %q", model.ErrCircularDependency, g.Name, depGroup.Name)
		}
		depth, err := v.walk(depGroup.Name, colors)
		if err != nil {
			return 0, err
		}
		if depth > maxChildDepth {
			maxChildDepth = depth
		}
	}

	depth := maxChildDepth + 1
	if depth > v.cfg.MaxDepth {
		return 0, fmt.Errorf("%w: group %q at depth %d exceeds maxDepth %d", model.ErrMaxDepthExceeded, g.Name, depth, v.cfg.MaxDepth)
	}
	return depth, nil
}

// LoadAll validates every declared group. The first failure aborts without
// mutating anything (the validator is stateless, so there is nothing to
// roll back).
func (v *Validator) LoadAll() error {
	for _, g := range v.cfg.Groups {
		if err := v.Validate(g.Name); err != nil {
			return err
		}
	}
	return nil
}

// Depth reports the longest root-to-leaf path starting at root.
func (v *Validator) Depth(root string) (int, error) {
	g, ok := v.cfg.ResolveGroup(root)
	if !ok {
		return 0, fmt.Errorf("%w: group %q", model.ErrGroupNotFound, root)
	}
	return v.walk(g.Name, make(map[string]color))
}
