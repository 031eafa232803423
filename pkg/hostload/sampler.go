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

// Package hostload measures host CPU and memory pressure.
//
// CPU utilisation comes from an ordered list of tiers: kernel counters read
// directly, then a counter query run as a subprocess, then gopsutil. The first
// tier that answers wins. When none answer the reading is Unknown, which
// callers treat as "no pressure".
package hostload

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
)

var (
	errUnsupported  = errors.New("cpu tier not supported on this platform")
	errNoSample     = errors.New("cpu tier returned no sample")
	errOutOfRange   = errors.New("cpu sample out of range")
	errUnparseable  = errors.New("cpu counter output not understood")
	errCounterReset = errors.New("cpu counters did not advance")
)

// Tier is one way of measuring CPU utilisation over a window.
type Tier interface {
	Name() string
	// Sample blocks for roughly window and returns percent busy in [0, 100].
	Sample(ctx context.Context, window time.Duration) (float64, error)
}

// Usage is a CPU reading. The zero value is Unknown.
type Usage struct {
	Percent float64 `json:"percent"`
	Known   bool    `json:"known"`
}

// Unknown is returned when every tier failed.
//
//nolint:gochecknoglobals // sentinel value
var Unknown = Usage{}

// Sampler tries its tiers in order.
type Sampler struct {
	tiers  []Tier
	logger logger.Logger
}

// NewSampler uses the platform default tiers when none are given.
func NewSampler(log logger.Logger, tiers ...Tier) *Sampler {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	return &Sampler{tiers: tiers, logger: log}
}

// DefaultTiers returns native counters, then the script query, then gopsutil.
func DefaultTiers() []Tier {
	return []Tier{
		nativeTier{},
		newScriptTier(),
		gopsutilTier{},
	}
}

// Sample returns CPU utilisation over window, or Unknown. It never fails.
func (s *Sampler) Sample(ctx context.Context, window time.Duration) Usage {
	for _, tier := range s.tiers {
		if ctx.Err() != nil {
			return Unknown
		}

		pct, err := tier.Sample(ctx, window)
		if err == nil && (math.IsNaN(pct) || pct < 0 || pct > 100) {
			err = errOutOfRange
		}

		if err != nil {
			s.logger.Debug().Err(err).Str("tier", tier.Name()).Msg("CPU tier failed, trying next")
			continue
		}

		return Usage{Percent: pct, Known: true}
	}

	s.logger.Debug().Msg("All CPU tiers failed, reporting unknown")

	return Unknown
}

// busyPercent converts two idle/total counter readings into percent busy.
func busyPercent(idle0, total0, idle1, total1 float64) (float64, error) {
	total := total1 - total0
	if total <= 0 {
		return 0, errCounterReset
	}

	busy := 100 * (total - (idle1 - idle0)) / total

	return math.Max(0, math.Min(100, busy)), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
