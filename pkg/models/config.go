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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidDuration       = errors.New("invalid duration")
	errUnknownStrategy       = errors.New("unknown detection strategy")
	errConcurrencyTooLow     = errors.New("concurrency limit must be at least 1")
	errNegativeBatchSize     = errors.New("batch size must not be negative")
	errSampleDurationInvalid = errors.New("cpu sample duration out of range")
)

// Duration is a time.Duration that reads "2s" or nanoseconds from JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Strategy names the readiness detection method.
type Strategy string

const (
	StrategyThorough Strategy = "thorough"
	StrategyFast     Strategy = "fast"
	StrategyHybrid   Strategy = "hybrid"
	StrategyTCP      Strategy = "tcp"
	StrategyOff      Strategy = "off"
)

const (
	DefaultConcurrency    = 4
	DefaultSampleDuration = 200 * time.Millisecond
	MinSampleDuration     = 50 * time.Millisecond
	MaxSampleDuration     = 5 * time.Second
)

// DetectionConfig is read once at startup and never changes afterwards.
type DetectionConfig struct {
	Strategy Strategy `json:"strategy"`
	// Concurrency caps simultaneous probes per tick.
	Concurrency int `json:"concurrency"`
	// BatchSize caps VMs considered per tick. Zero means all.
	BatchSize      int      `json:"batch_size"`
	SampleDuration Duration `json:"cpu_sample_duration"`
	RDPPort        int      `json:"rdp_port"`
}

// Validate fills defaults and rejects values the scheduler cannot honour.
func (c *DetectionConfig) Validate() error {
	if c.Strategy == "" {
		c.Strategy = StrategyHybrid
	}

	switch c.Strategy {
	case StrategyThorough, StrategyFast, StrategyHybrid, StrategyTCP, StrategyOff:
	default:
		return fmt.Errorf("%w: %q", errUnknownStrategy, c.Strategy)
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("%w: %d", errConcurrencyTooLow, c.Concurrency)
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("%w: %d", errNegativeBatchSize, c.BatchSize)
	}

	if c.SampleDuration == 0 {
		c.SampleDuration = Duration(DefaultSampleDuration)
	}

	if d := time.Duration(c.SampleDuration); d < MinSampleDuration || d > MaxSampleDuration {
		return fmt.Errorf("%w: %s not in [%s, %s]", errSampleDurationInvalid, d, MinSampleDuration, MaxSampleDuration)
	}

	if c.RDPPort == 0 {
		c.RDPPort = 3389
	}

	return nil
}
