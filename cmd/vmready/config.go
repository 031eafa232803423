package main

import (
	"fmt"

	"github.com/carverauto/vmready/pkg/api"
	"github.com/carverauto/vmready/pkg/idle"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/orchestrator"
	"github.com/carverauto/vmready/pkg/poller"
	"github.com/carverauto/vmready/pkg/vmware"
)

// Config is the whole vmready configuration document.
type Config struct {
	Logging      *logger.Config      `json:"logging"`
	VMware       vmware.Config       `json:"vmware"`
	Poller       poller.Config       `json:"poller"`
	Orchestrator orchestrator.Config `json:"orchestrator"`
	Idle         idle.Config         `json:"idle"`
	API          api.Config          `json:"api"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"vmware", &c.VMware},
		{"poller", &c.Poller},
		{"orchestrator", &c.Orchestrator},
		{"idle", &c.Idle},
		{"api", &c.API},
	}

	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	return nil
}
