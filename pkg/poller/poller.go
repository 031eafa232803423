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

// Package poller runs readiness probes for every VM waiting on one, on a
// fixed tick, with concurrency throttled by host CPU pressure.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// Status describes the most recent tick.
type Status struct {
	LastTick        time.Time `json:"last_tick,omitzero"`
	CPUPercent      float64   `json:"cpu_percent"`
	CPUKnown        bool      `json:"cpu_known"`
	UnderPressure   bool      `json:"under_pressure"`
	ConsecutiveOver int       `json:"consecutive_over"`
	Concurrency     int       `json:"concurrency"`
	Pending         int       `json:"pending"`
	Probed          int       `json:"probed"`
	Ready           int       `json:"ready"`
	Discarded       int       `json:"discarded"`
}

// Poller is the poll scheduler. Ticks never overlap.
type Poller struct {
	config   Config
	registry StateStore
	prober   Prober
	sampler  CPUSampler
	gauge    *hostload.PressureGauge
	clock    Clock
	logger   logger.Logger

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.RWMutex
	status Status
}

// New expects cfg to be validated. A nil clock uses the wall clock.
func New(cfg *Config, reg StateStore, prober Prober, sampler CPUSampler, clock Clock, log logger.Logger) *Poller {
	if clock == nil {
		clock = realClock{}
	}

	return &Poller{
		config:   *cfg,
		registry: reg,
		prober:   prober,
		sampler:  sampler,
		gauge:    hostload.NewPressureGauge(cfg.Pressure),
		clock:    clock,
		logger:   log,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start implements the lifecycle.Service interface.
func (p *Poller) Start(ctx context.Context) error {
	interval := time.Duration(p.config.PollInterval)
	ticker := p.clock.Ticker(interval)

	defer ticker.Stop()

	p.wg.Add(1)
	defer p.wg.Done()

	p.logger.Info().
		Dur("interval", interval).
		Str("strategy", string(p.config.Detection.Strategy)).
		Int("concurrency", p.config.Detection.Concurrency).
		Int("batch_size", p.config.Detection.BatchSize).
		Msg("Starting poll scheduler")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.Chan():
			p.Tick(ctx)
		case <-p.notify:
			p.Tick(ctx)
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (p *Poller) Stop(_ context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()

	return nil
}

// Notify wakes the loop for an early tick. Calls coalesce while a wake-up is
// already queued.
func (p *Poller) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Status returns a copy of the last tick's summary.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status
}

// UnderPressure reports the CPU pressure verdict of the last tick.
func (p *Poller) UnderPressure() bool {
	return p.Status().UnderPressure
}

// Tick runs one scheduling pass and returns its summary.
func (p *Poller) Tick(ctx context.Context) Status {
	pending := p.registry.Pending(p.config.Detection.BatchSize)

	usage := p.sampler.Sample(ctx, time.Duration(p.config.Detection.SampleDuration))
	pressured := p.gauge.Observe(usage)

	limit := p.config.Detection.Concurrency
	if pressured {
		limit = 1
	}

	status := Status{
		LastTick:        p.clock.Now(),
		CPUPercent:      usage.Percent,
		CPUKnown:        usage.Known,
		UnderPressure:   pressured,
		ConsecutiveOver: p.gauge.Streak(),
		Concurrency:     limit,
		Pending:         len(pending),
	}

	if pressured {
		p.logger.Warn().
			Float64("cpu_percent", usage.Percent).
			Int("consecutive_over", status.ConsecutiveOver).
			Msg("Host CPU under pressure, probing one VM at a time")
	}

	recordTick(ctx, pressured)

	var probed, ready, discarded atomic.Int32

	var g errgroup.Group

	g.SetLimit(limit)

	for _, vm := range pending {
		g.Go(func() error {
			r, folded := p.probeOne(ctx, vm)

			probed.Add(1)

			switch {
			case !folded:
				discarded.Add(1)
			case r == models.ReadinessReady:
				ready.Add(1)
			}

			return nil
		})
	}

	_ = g.Wait()

	status.Probed = int(probed.Load())
	status.Ready = int(ready.Load())
	status.Discarded = int(discarded.Load())

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()

	if status.Pending > 0 {
		p.logger.Debug().
			Int("pending", status.Pending).
			Int("ready", status.Ready).
			Int("discarded", status.Discarded).
			Int("concurrency", limit).
			Msg("Tick completed")
	}

	return status
}

// probeOne probes vm and folds the result. folded is false when the VM moved
// on while the probe ran.
func (p *Poller) probeOne(ctx context.Context, vm models.VMState) (models.Readiness, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.ProbeTimeout))
	start := time.Now()

	r := p.prober.Probe(probeCtx, models.ProbeTarget{VM: vm.VMIdentity, IP: vm.IP})

	cancel()

	elapsed := time.Since(start)
	at := p.clock.Now()

	to := models.PhaseAwaitingReadiness
	if r == models.ReadinessReady {
		to = models.PhaseReady
	}

	next, err := p.registry.Apply(vm.Name, registry.Transition{
		From: models.PhaseAwaitingReadiness,
		To:   to,
		Guard: func(cur models.VMState) bool {
			return cur.PhaseSince.Equal(vm.PhaseSince)
		},
		Mutate: func(s *models.VMState) {
			s.LastProbe = r
			s.LastProbeAt = at

			if r == models.ReadinessReady {
				s.ConsecutiveFailures = 0
			} else {
				s.ConsecutiveFailures++
			}
		},
	})

	recordProbe(ctx, elapsed, string(r), err != nil)

	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			p.logger.Debug().Str("vm", vm.Name).Str("result", string(r)).Msg("VM left awaiting_readiness during probe, result discarded")
		} else {
			p.logger.Warn().Err(err).Str("vm", vm.Name).Msg("Failed to record probe result")
		}

		return r, false
	}

	if to == models.PhaseReady {
		p.logger.Info().
			Str("vm", vm.Name).
			Str("ip", vm.IP).
			Dur("probe", elapsed).
			Msg("VM ready for remote desktop")
	} else {
		p.logger.Debug().
			Str("vm", vm.Name).
			Str("result", string(r)).
			Int("consecutive_failures", next.ConsecutiveFailures).
			Msg("VM not ready yet")
	}

	return r, true
}
