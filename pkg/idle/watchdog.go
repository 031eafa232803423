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

// Package idle stops running VMs nobody is connected to when the host runs
// short of memory or CPU.
package idle

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
	"github.com/carverauto/vmready/pkg/vmware"
	"golang.org/x/sync/errgroup"
)

// MemoryReader reports host memory. hostload.ReadMemory satisfies it.
type MemoryReader func(ctx context.Context) (hostload.Memory, error)

// Deps are the watchdog's collaborators. CPU may be nil, in which case only
// memory counts as pressure.
type Deps struct {
	Registry   StateStore
	Hypervisor Hypervisor
	Sessions   SessionChecker
	CPU        PressureSource
	Memory     MemoryReader
	Logger     logger.Logger
}

// Status describes the most recent check.
type Status struct {
	LastTick       time.Time `json:"last_tick,omitzero"`
	Running        int       `json:"running"`
	Checked        int       `json:"checked"`
	Active         int       `json:"active"`
	AvailableMemGB float64   `json:"available_mem_gb"`
	MemKnown       bool      `json:"mem_known"`
	MemPressure    bool      `json:"mem_pressure"`
	CPUPressure    bool      `json:"cpu_pressure"`
	Stopped        []string  `json:"stopped,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

// Pressure reports whether either resource was short.
func (s Status) Pressure() bool {
	return s.MemPressure || s.CPUPressure
}

// Watchdog is a lifecycle.Service.
type Watchdog struct {
	config   Config
	registry StateStore
	hv       Hypervisor
	sessions SessionChecker
	cpu      PressureSource
	memory   MemoryReader
	logger   logger.Logger
	now      func() time.Time

	// lastActive holds, per VM name, the last tick a session was seen or the
	// first tick the VM was seen running. Only touched from Tick.
	lastActive map[string]time.Time
	// cursor rotates the session-check batch across ticks.
	cursor int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu     sync.RWMutex
	status Status
}

// New expects cfg to be validated.
func New(cfg *Config, deps Deps) *Watchdog {
	if deps.Memory == nil {
		deps.Memory = hostload.ReadMemory
	}

	return &Watchdog{
		config:     *cfg,
		registry:   deps.Registry,
		hv:         deps.Hypervisor,
		sessions:   deps.Sessions,
		cpu:        deps.CPU,
		memory:     deps.Memory,
		logger:     deps.Logger,
		now:        time.Now,
		lastActive: make(map[string]time.Time),
		done:       make(chan struct{}),
	}
}

// Start implements the lifecycle.Service interface.
func (w *Watchdog) Start(ctx context.Context) error {
	interval := time.Duration(w.config.CheckInterval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.wg.Add(1)
	defer w.wg.Done()

	w.logger.Info().
		Dur("interval", interval).
		Dur("idle_after", time.Duration(w.config.IdleAfter)).
		Float64("min_available_mem_gb", w.config.MinAvailableMemGB).
		Str("stop_mode", string(w.config.StopMode)).
		Msg("Starting idle watchdog")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (w *Watchdog) Stop(_ context.Context) error {
	w.closeOnce.Do(func() {
		close(w.done)
	})

	w.wg.Wait()

	return nil
}

// Status returns a copy of the last check's summary.
func (w *Watchdog) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	st := w.status
	st.Stopped = slices.Clone(st.Stopped)

	return st
}

// Tick runs one check. Ticks must not overlap.
func (w *Watchdog) Tick(ctx context.Context) Status {
	now := w.now()
	st := Status{LastTick: now}

	running, err := w.hv.ListRunning(ctx)
	if err != nil {
		st.LastError = err.Error()
		w.logger.Warn().Err(err).Msg("Failed to list running VMs")
	}

	vms := runningVMs(w.registry.List(), running)
	st.Running = len(vms)

	if err == nil {
		w.forgetStopped(vms)
	}

	active := w.checkSessions(ctx, vms)
	st.Checked = len(active)

	for name, on := range active {
		if on {
			st.Active++
			w.lastActive[name] = now
		}
	}

	for _, vm := range vms {
		if _, seen := w.lastActive[vm.Name]; !seen {
			w.lastActive[vm.Name] = now
		}
	}

	mem, err := w.memory(ctx)
	if err == nil {
		st.MemKnown = true
		st.AvailableMemGB = mem.AvailableGB()
		st.MemPressure = st.AvailableMemGB < w.config.MinAvailableMemGB
	} else {
		w.logger.Debug().Err(err).Msg("Host memory unavailable")
	}

	st.CPUPressure = w.cpu != nil && w.cpu.UnderPressure()

	if st.Pressure() {
		for _, victim := range w.victims(vms, active, now) {
			if w.stopVM(ctx, victim) {
				st.Stopped = append(st.Stopped, victim.Name)
				delete(w.lastActive, victim.Name)
			}
		}
	}

	w.logTick(st)

	w.mu.Lock()
	w.status = st
	w.mu.Unlock()

	return st
}

// runningVMs returns registry entries whose .vmx appears in running.
func runningVMs(states []models.VMState, running []string) []models.VMState {
	out := make([]models.VMState, 0, len(running))

	for _, st := range states {
		if slices.ContainsFunc(running, func(p string) bool { return vmware.SamePath(p, st.VMXPath) }) {
			out = append(out, st)
		}
	}

	return out
}

func (w *Watchdog) forgetStopped(vms []models.VMState) {
	for name := range w.lastActive {
		if !slices.ContainsFunc(vms, func(s models.VMState) bool { return s.Name == name }) {
			delete(w.lastActive, name)
		}
	}
}

// checkSessions asks up to BatchSize running VMs whether a session is open.
// A VM whose check fails counts as active. VMs left out of the batch have no
// entry in the result and are checked on a later tick.
func (w *Watchdog) checkSessions(ctx context.Context, vms []models.VMState) map[string]bool {
	batch := w.nextBatch(vms)

	results := make(map[string]bool, len(batch))

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)

	for _, vm := range batch {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, time.Duration(w.config.SessionTimeout))
			defer cancel()

			on, err := w.sessions.HasActiveSession(checkCtx, vm.VMIdentity)
			if err != nil {
				w.logger.Debug().Err(err).Str("vm", vm.Name).Msg("Session check failed, assuming active")

				on = true
			}

			mu.Lock()
			results[vm.Name] = on
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// nextBatch returns the VMs to check this tick, continuing where the previous
// tick stopped when BatchSize is smaller than the running set.
func (w *Watchdog) nextBatch(vms []models.VMState) []models.VMState {
	size := w.config.BatchSize
	if size <= 0 || len(vms) <= size {
		return vms
	}

	start := w.cursor % len(vms)
	w.cursor = start + size

	batch := make([]models.VMState, 0, size)
	for i := range size {
		batch = append(batch, vms[(start+i)%len(vms)])
	}

	return batch
}

// victims picks stop candidates, least recently active first.
func (w *Watchdog) victims(vms []models.VMState, active map[string]bool, now time.Time) []models.VMState {
	idleAfter := time.Duration(w.config.IdleAfter)

	var candidates []models.VMState

	for _, vm := range vms {
		// Unchecked this tick counts as active.
		if on, checked := active[vm.Name]; !checked || on {
			continue
		}

		if vm.Phase != models.PhaseReady && vm.Phase != models.PhaseIdle {
			continue
		}

		if now.Sub(w.lastActive[vm.Name]) < idleAfter {
			continue
		}

		candidates = append(candidates, vm)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := w.lastActive[candidates[i].Name], w.lastActive[candidates[j].Name]
		if !a.Equal(b) {
			return a.Before(b)
		}

		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > w.config.MaxShutdownsPerTick {
		candidates = candidates[:w.config.MaxShutdownsPerTick]
	}

	return candidates
}

// stopVM releases a ready VM back to idle and powers it off. The VM must
// still be in the phase, and phase epoch, it had when the tick read it.
func (w *Watchdog) stopVM(ctx context.Context, vm models.VMState) bool {
	log := w.logger.With().Str("vm", vm.Name).Str("mode", string(w.config.StopMode)).Logger()

	_, err := w.registry.Apply(vm.Name, registry.Transition{
		From: vm.Phase,
		To:   models.PhaseIdle,
		Guard: func(cur models.VMState) bool {
			return cur.PhaseSince.Equal(vm.PhaseSince)
		},
		Mutate: func(s *models.VMState) {
			if vm.Phase != models.PhaseReady {
				return
			}

			s.IP = ""
			s.LastProbe = ""
			s.LastProbeAt = time.Time{}
			s.ConsecutiveFailures = 0
			s.FlowStarted = time.Time{}
			s.Operation = ""
		},
	})
	if errors.Is(err, models.ErrConflict) {
		log.Debug().Msg("VM changed phase, not stopping it")
		return false
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to release VM before stopping it")
		return false
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Duration(w.config.StopTimeout))
	defer cancel()

	err = w.hv.Stop(stopCtx, vm.VMIdentity, w.config.StopMode)
	recordShutdown(ctx, string(w.config.StopMode), err == nil)

	if err != nil {
		log.Error().Err(err).Msg("Failed to stop idle VM")
		return false
	}

	log.Warn().Time("last_active", w.lastActive[vm.Name]).Msg("Stopped idle VM to relieve host pressure")

	return true
}

func (w *Watchdog) logTick(st Status) {
	ev := w.logger.Info()
	if st.Pressure() || len(st.Stopped) > 0 {
		ev = w.logger.Warn()
	}

	ev.Int("running", st.Running).
		Int("active", st.Active).
		Float64("available_mem_gb", st.AvailableMemGB).
		Bool("mem_pressure", st.MemPressure).
		Bool("cpu_pressure", st.CPUPressure).
		Int("stopped", len(st.Stopped)).
		Msg("Idle watchdog tick")
}
