package model

import "fmt"

// Configuration is the fully validated, in-memory result of loading a
// config file: every service and group descriptor, plus the two knobs that
// govern graph depth and the orchestrator's error policy.
type Configuration struct {
	Services []ServiceDescriptor
	Groups   []GroupDescriptor

	MaxDepth     int
	IgnoreErrors bool

	servicesByID map[string]*ServiceDescriptor
	groupsByID   map[string]*GroupDescriptor
}

const defaultMaxDepth = 5

// NewConfiguration enforces the identity-uniqueness invariants (§3): every
// service name/alias is unique among services, every group name/alias is
// unique among groups. Reference resolution (service/group refs pointing at
// something that exists) is deliberately left to the graph validator, which
// runs per-group and needs the full lookup maps this type builds.
func NewConfiguration(services []ServiceDescriptor, groups []GroupDescriptor, maxDepth int, ignoreErrors bool) (*Configuration, error) {
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}
	if maxDepth < 1 {
		return nil, ValidationError{Field: "maxDepth", Value: maxDepth, Message: "must be >= 1"}
	}

	servicesByID := make(map[string]*ServiceDescriptor, len(services))
	for i := range services {
		s := &services[i]
		for _, id := range s.Identifiers() {
			if _, exists := servicesByID[id]; exists {
				return nil, ValidationError{Field: "services", Value: id, Message: fmt.Sprintf("duplicate service identifier %q", id)}
			}
			servicesByID[id] = s
		}
	}

	groupsByID := make(map[string]*GroupDescriptor, len(groups))
	for i := range groups {
		g := &groups[i]
		for _, id := range g.Identifiers() {
			if _, exists := groupsByID[id]; exists {
				return nil, ValidationError{Field: "groups", Value: id, Message: fmt.Sprintf("duplicate group identifier %q", id)}
			}
			groupsByID[id] = g
		}
	}

	return &Configuration{
		Services:     services,
		Groups:       groups,
		MaxDepth:     maxDepth,
		IgnoreErrors: ignoreErrors,
		servicesByID: servicesByID,
		groupsByID:   groupsByID,
	}, nil
}

// ResolveService looks up a service by name or alias.
func (c *Configuration) ResolveService(id string) (*ServiceDescriptor, bool) {
	s, ok := c.servicesByID[id]
	return s, ok
}

// ResolveGroup looks up a group by name or alias.
func (c *Configuration) ResolveGroup(id string) (*GroupDescriptor, bool) {
	g, ok := c.groupsByID[id]
	return g, ok
}
