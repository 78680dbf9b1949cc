package model

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]+$`)

// ServiceSpec is the raw, pre-validation shape a config loader decodes a
// service entry into. NewServiceDescriptor turns it into an immutable,
// fully-typed ServiceDescriptor or rejects it.
type ServiceSpec struct {
	Name               string
	Aliases            []string
	StartCommand       string
	WorkDir            string
	StdinFile          string
	Stop               string
	StopTimeoutSeconds int
	StopStdinFile      string
	StartedPatterns    []string
	ErrorPatterns      []string
	Color              interface{}
}

// ServiceDescriptor is an immutable, validated service definition. Once
// built it is shared by reference between the registry, the orchestrator,
// and every runtime instance of that service.
type ServiceDescriptor struct {
	Name    string
	Aliases []string

	StartCommand  string
	WorkDir       string
	StdinFile     string
	StopSpec      StopSpec
	StopTimeout   int
	StopStdinFile string

	StartedPatterns []*regexp.Regexp
	ErrorPatterns   []*regexp.Regexp

	Color Color
}

// Identifiers returns name followed by every alias, the set the registry
// keys this descriptor under.
func (d ServiceDescriptor) Identifiers() []string {
	return append([]string{d.Name}, d.Aliases...)
}

// NewServiceDescriptor validates spec and compiles its patterns, returning an
// error that wraps ErrConfigInvalid on any rejection (a ValidationError for
// field rejections; color decoding errors wrap ErrConfigInvalid directly).
func NewServiceDescriptor(spec ServiceSpec) (ServiceDescriptor, error) {
	if err := validateIdentifier("name", spec.Name); err != nil {
		return ServiceDescriptor{}, err
	}
	for _, a := range spec.Aliases {
		if err := validateIdentifier("aliases", a); err != nil {
			return ServiceDescriptor{}, err
		}
	}
	if spec.StartCommand == "" {
		return ServiceDescriptor{}, ValidationError{Field: "start", Message: fmt.Sprintf("is required for service %q", spec.Name)}
	}

	workDir := spec.WorkDir
	if workDir == "" {
		workDir = "."
	}

	timeout := spec.StopTimeoutSeconds
	if timeout == 0 {
		timeout = 5
	}
	if timeout < 1 {
		return ServiceDescriptor{}, ValidationError{Field: "stopTimeout", Value: spec.StopTimeoutSeconds, Message: fmt.Sprintf("must be >= 1 for service %q", spec.Name)}
	}

	stopSpec, err := ParseStopSpec(spec.Stop)
	if err != nil {
		return ServiceDescriptor{}, err
	}

	started, err := compilePatterns("startedPatterns", spec.StartedPatterns)
	if err != nil {
		return ServiceDescriptor{}, err
	}
	errored, err := compilePatterns("errorPatterns", spec.ErrorPatterns)
	if err != nil {
		return ServiceDescriptor{}, err
	}

	color, err := DecodeColor(spec.Color)
	if err != nil {
		return ServiceDescriptor{}, err
	}

	return ServiceDescriptor{
		Name:            spec.Name,
		Aliases:         append([]string(nil), spec.Aliases...),
		StartCommand:    spec.StartCommand,
		WorkDir:         workDir,
		StdinFile:       spec.StdinFile,
		StopSpec:        stopSpec,
		StopTimeout:     timeout,
		StopStdinFile:   spec.StopStdinFile,
		StartedPatterns: started,
		ErrorPatterns:   errored,
		Color:           color,
	}, nil
}

// GroupSpec is the raw, pre-validation shape of a group config entry.
type GroupSpec struct {
	Name         string
	Aliases      []string
	Services     []string
	Dependencies []string
}

// GroupDescriptor is an immutable, validated group definition: an ordered
// set of service references plus an ordered set of group dependencies.
type GroupDescriptor struct {
	Name         string
	Aliases      []string
	Services     []string
	Dependencies []string
}

func (d GroupDescriptor) Identifiers() []string {
	return append([]string{d.Name}, d.Aliases...)
}

// NewGroupDescriptor validates spec; it does not resolve service/group
// references (that is the graph validator's job, since resolution depends
// on the full Configuration, not on the group in isolation).
func NewGroupDescriptor(spec GroupSpec) (GroupDescriptor, error) {
	if err := validateIdentifier("name", spec.Name); err != nil {
		return GroupDescriptor{}, err
	}
	for _, a := range spec.Aliases {
		if err := validateIdentifier("aliases", a); err != nil {
			return GroupDescriptor{}, err
		}
	}
	if len(spec.Services) == 0 {
		return GroupDescriptor{}, ValidationError{Field: "services", Message: fmt.Sprintf("group %q must reference at least one service", spec.Name)}
	}
	return GroupDescriptor{
		Name:         spec.Name,
		Aliases:      append([]string(nil), spec.Aliases...),
		Services:     append([]string(nil), spec.Services...),
		Dependencies: append([]string(nil), spec.Dependencies...),
	}, nil
}

func validateIdentifier(field, value string) error {
	if value == "" {
		return ValidationError{Field: field, Message: "must not be empty"}
	}
	if !identifierPattern.MatchString(value) {
		return ValidationError{Field: field, Value: value, Message: "must match ^[A-Za-z0-9 _.-]+$"}
	}
	return nil
}

func compilePatterns(field string, raw []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, ValidationError{Field: field, Value: p, Message: err.Error()}
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
