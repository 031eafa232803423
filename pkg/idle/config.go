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

package idle

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/vmready/pkg/models"
)

const (
	defaultCheckInterval       = time.Minute
	defaultIdleAfter           = 30 * time.Minute
	defaultMinAvailableMemGB   = 6.0
	defaultMaxShutdownsPerTick = 1
	defaultConcurrency         = 4
	defaultSessionTimeout      = 30 * time.Second
	defaultStopTimeout         = time.Minute
	minCheckInterval           = time.Second
)

var (
	errCheckIntervalTooShort = errors.New("check_interval is too short")
	errUnknownStopMode       = errors.New("unknown stop_mode")
	errNegativeLimit         = errors.New("idle limits must not be negative")
)

// Config tunes the idle watchdog. The watchdog only runs when Enabled.
type Config struct {
	Enabled       bool            `json:"enabled"`
	CheckInterval models.Duration `json:"check_interval"`
	// IdleAfter is how long a VM must go without a remote desktop session
	// before it may be stopped.
	IdleAfter           models.Duration `json:"idle_after"`
	MinAvailableMemGB   float64         `json:"min_available_mem_gb"`
	MaxShutdownsPerTick int             `json:"max_shutdowns_per_tick"`
	StopMode            models.StopMode `json:"stop_mode"`
	// BatchSize caps session checks per tick. Zero checks every running VM.
	BatchSize      int             `json:"batch_size"`
	Concurrency    int             `json:"concurrency"`
	SessionTimeout models.Duration `json:"session_timeout"`
	StopTimeout    models.Duration `json:"stop_timeout"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.CheckInterval == 0 {
		c.CheckInterval = models.Duration(defaultCheckInterval)
	}

	if time.Duration(c.CheckInterval) < minCheckInterval {
		return fmt.Errorf("%w: %s", errCheckIntervalTooShort, time.Duration(c.CheckInterval))
	}

	if c.IdleAfter <= 0 {
		c.IdleAfter = models.Duration(defaultIdleAfter)
	}

	if c.MinAvailableMemGB <= 0 {
		c.MinAvailableMemGB = defaultMinAvailableMemGB
	}

	if c.MaxShutdownsPerTick < 0 || c.BatchSize < 0 || c.Concurrency < 0 {
		return errNegativeLimit
	}

	if c.MaxShutdownsPerTick == 0 {
		c.MaxShutdownsPerTick = defaultMaxShutdownsPerTick
	}

	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}

	switch c.StopMode {
	case "":
		c.StopMode = models.StopSoft
	case models.StopSoft, models.StopHard:
	default:
		return fmt.Errorf("%w: %q", errUnknownStopMode, c.StopMode)
	}

	if c.SessionTimeout <= 0 {
		c.SessionTimeout = models.Duration(defaultSessionTimeout)
	}

	if c.StopTimeout <= 0 {
		c.StopTimeout = models.Duration(defaultStopTimeout)
	}

	return nil
}
