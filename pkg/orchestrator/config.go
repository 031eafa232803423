/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package orchestrator

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/carverauto/vmready/pkg/models"
)

const (
	defaultIPRetries        = 60
	defaultIPRetryDelay     = 2 * time.Second
	defaultReadinessTimeout = 10 * time.Minute
	defaultStepTimeout      = 3 * time.Minute
)

var (
	errNegativeRetries = errors.New("ip_retries must not be negative")
	errInvalidSubnet   = errors.New("invalid subnet")
)

// Config tunes the revert flow.
type Config struct {
	// IPRetries is the number of guest IP lookups before giving up.
	IPRetries    int             `json:"ip_retries"`
	IPRetryDelay models.Duration `json:"ip_retry_delay"`
	// ReadinessTimeout bounds the wait in awaiting_readiness. Zero selects
	// the default, a negative value waits forever.
	ReadinessTimeout models.Duration `json:"readiness_timeout"`
	// StepTimeout bounds each hypervisor call.
	StepTimeout models.Duration `json:"step_timeout"`

	PreferredSubnets []string `json:"preferred_subnets"`
	ExcludedSubnets  []string `json:"excluded_subnets"`

	// RenewNetwork runs ipconfig /release, /renew and /flushdns in the guest
	// after a revert's first IP, when only filtered addresses show up, and
	// once more when the readiness wait times out.
	RenewNetwork bool `json:"renew_network"`

	// DurationsFile keeps expected-time samples across restarts. Empty keeps
	// them in memory.
	DurationsFile string `json:"durations_file"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.IPRetries < 0 {
		return fmt.Errorf("%w: %d", errNegativeRetries, c.IPRetries)
	}

	if c.IPRetries == 0 {
		c.IPRetries = defaultIPRetries
	}

	if c.IPRetryDelay <= 0 {
		c.IPRetryDelay = models.Duration(defaultIPRetryDelay)
	}

	if c.ReadinessTimeout == 0 {
		c.ReadinessTimeout = models.Duration(defaultReadinessTimeout)
	}

	if c.StepTimeout <= 0 {
		c.StepTimeout = models.Duration(defaultStepTimeout)
	}

	if _, err := parsePrefixes(c.PreferredSubnets); err != nil {
		return err
	}

	_, err := parsePrefixes(c.ExcludedSubnets)

	return err
}

func parsePrefixes(subnets []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(subnets))

	for _, s := range subnets {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", errInvalidSubnet, s, err)
		}

		out = append(out, p.Masked())
	}

	return out, nil
}

// ipFilter accepts guest addresses inside a preferred subnet, when any are
// set, and outside every excluded one.
type ipFilter struct {
	preferred []netip.Prefix
	excluded  []netip.Prefix
}

func (f ipFilter) accept(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, p := range f.excluded {
		if p.Contains(addr) {
			return false
		}
	}

	if len(f.preferred) == 0 {
		return true
	}

	for _, p := range f.preferred {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}
