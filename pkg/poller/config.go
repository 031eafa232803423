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

package poller

import (
	"fmt"
	"time"

	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/models"
)

var (
	errPollIntervalTooShort = fmt.Errorf("poll interval must be at least %s", minPollInterval)
	errNegativeTimeout      = fmt.Errorf("timeouts must not be negative")
)

const (
	defaultPollInterval = 2 * time.Second
	defaultProbeTimeout = 30 * time.Second
	defaultPingTimeout  = time.Second
	minPollInterval     = 100 * time.Millisecond
)

// Config represents scheduler configuration.
type Config struct {
	PollInterval models.Duration `json:"poll_interval"`
	ProbeTimeout models.Duration `json:"probe_timeout"`
	PingTimeout  models.Duration `json:"ping_timeout"`

	Detection models.DetectionConfig  `json:"detection"`
	Pressure  hostload.PressureConfig `json:"pressure"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.PollInterval == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollInterval) < minPollInterval {
		return fmt.Errorf("%w: %s", errPollIntervalTooShort, time.Duration(c.PollInterval))
	}

	if c.ProbeTimeout < 0 || c.PingTimeout < 0 {
		return errNegativeTimeout
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if c.PingTimeout == 0 {
		c.PingTimeout = models.Duration(defaultPingTimeout)
	}

	if err := c.Detection.Validate(); err != nil {
		return err
	}

	return c.Pressure.Validate()
}
