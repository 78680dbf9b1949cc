// Package config loads a procmux configuration document (YAML or JSON,
// selected by file extension) into a validated model.Configuration, the way
// the teacher's internal/config reads config.yaml into a typed struct before
// handing it to the rest of the application.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/procmux/internal/model"
	"github.com/tomtom215/procmux/pkg/logging"
)

// Load reads path, decodes it per its extension (.yaml/.yml -> YAML,
// .json -> JSON), applies defaults, and returns a validated
// model.Configuration. Reference resolution (do groups point at real
// services/groups) is left to the graph validator, which needs the full
// Configuration rather than the raw document.
func Load(path string) (*model.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", model.ErrConfigInvalid, path, err)
	}

	var raw rawConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", model.ErrConfigInvalid, path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", model.ErrConfigInvalid, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", model.ErrConfigInvalid, ext)
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	logging.Info("Config", "loaded %d services, %d groups from %s", len(cfg.Services), len(cfg.Groups), path)
	return cfg, nil
}

// build turns the decoded document into a validated model.Configuration,
// applying the field defaults named in spec section 3 (stopTimeoutSeconds=5,
// color=white, stop=SIGTERM) through each descriptor constructor.
func build(raw rawConfig) (*model.Configuration, error) {
	services := make([]model.ServiceDescriptor, 0, len(raw.Services))
	for _, rs := range raw.Services {
		desc, err := model.NewServiceDescriptor(model.ServiceSpec{
			Name:               rs.Name,
			Aliases:            rs.Aliases,
			StartCommand:       rs.StartCommand,
			WorkDir:            rs.WorkDir,
			StdinFile:          rs.StdinFile,
			Stop:               rs.Stop,
			StopTimeoutSeconds: rs.StopTimeoutSeconds,
			StopStdinFile:      rs.StopStdinFile,
			StartedPatterns:    rs.StartedPatterns,
			ErrorPatterns:      rs.ErrorPatterns,
			Color:              rs.Color,
		})
		if err != nil {
			return nil, err
		}
		services = append(services, desc)
	}

	groups := make([]model.GroupDescriptor, 0, len(raw.Groups))
	for _, rg := range raw.Groups {
		desc, err := model.NewGroupDescriptor(model.GroupSpec{
			Name:         rg.Name,
			Aliases:      rg.Aliases,
			Services:     rg.Services,
			Dependencies: rg.Dependencies,
		})
		if err != nil {
			return nil, err
		}
		groups = append(groups, desc)
	}

	return model.NewConfiguration(services, groups, raw.MaxDepth, raw.IgnoreErrors)
}
