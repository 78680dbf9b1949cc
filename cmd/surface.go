package cmd

import (
	"os"

	"github.com/tomtom215/procmux/internal/config"
	"github.com/tomtom215/procmux/internal/control"
)

// buildSurface loads configPath and constructs a control.Surface writing
// pattern-piped service output to stdout.
func buildSurface() (*control.Surface, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	s := control.New(cfg, os.Stdout)
	if err := s.LoadAll(); err != nil {
		return nil, err
	}
	return s, nil
}
