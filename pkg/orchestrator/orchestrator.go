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

// Package orchestrator runs the revert and connect state machines: snapshot
// revert, power on, guest IP acquisition and the handoff to the readiness
// scheduler.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "vmready.orchestrator"

var (
	errClosed  = errors.New("orchestrator is shutting down")
	errNoGuest = errors.New("renew_network needs a guest executor")
)

// Deps are the orchestrator's collaborators.
type Deps struct {
	Registry   Store
	Hypervisor Hypervisor
	Notifier   Notifier
	// Guest is only used when Config.RenewNetwork is set.
	Guest       Guest
	Credentials Credentials
	Durations   *Durations
	// Strategy is the configured detection strategy. With models.StrategyOff
	// the orchestrator marks VMs ready itself once they have an IP.
	Strategy models.Strategy
	RDPPort  int
	Logger   logger.Logger
}

// Orchestrator is safe for concurrent use. At most one flow runs per VM.
type Orchestrator struct {
	cfg       Config
	filter    ipFilter
	registry  Store
	hv        Hypervisor
	notifier  Notifier
	guest     Guest
	creds     Credentials
	durations *Durations
	strategy  models.Strategy
	rdpPort   int
	logger    logger.Logger
	tracer    trace.Tracer

	// sleep waits between IP lookups. Swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New expects cfg to be validated.
func New(cfg *Config, deps Deps) (*Orchestrator, error) {
	preferred, err := parsePrefixes(cfg.PreferredSubnets)
	if err != nil {
		return nil, err
	}

	excluded, err := parsePrefixes(cfg.ExcludedSubnets)
	if err != nil {
		return nil, err
	}

	if cfg.RenewNetwork && deps.Guest == nil {
		return nil, errNoGuest
	}

	if deps.Durations == nil {
		deps.Durations, _ = NewDurations("", deps.Logger)
	}

	if deps.RDPPort == 0 {
		deps.RDPPort = 3389
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:       *cfg,
		filter:    ipFilter{preferred: preferred, excluded: excluded},
		registry:  deps.Registry,
		hv:        deps.Hypervisor,
		notifier:  deps.Notifier,
		guest:     deps.Guest,
		creds:     deps.Credentials,
		durations: deps.Durations,
		strategy:  deps.Strategy,
		rdpPort:   deps.RDPPort,
		logger:    deps.Logger,
		tracer:    otel.Tracer(tracerName),
		sleep:     sleepCtx,
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Revert validates the request, moves the VM to reverting and runs the rest
// of the flow in the background. The returned state is the reverting one.
func (o *Orchestrator) Revert(ctx context.Context, name, snapshot string) (models.VMState, error) {
	st, err := o.lookup(name)
	if err != nil {
		return models.VMState{}, err
	}

	if !o.reserve(name) {
		return st, fmt.Errorf("%w: %s has a flow in progress", models.ErrBusy, name)
	}

	keep := false

	defer func() {
		if !keep {
			o.release(name)
		}
	}()

	if st.Phase != models.PhaseIdle && st.Phase != models.PhaseReady {
		return st, fmt.Errorf("%w: %s is %s", models.ErrBusy, name, st.Phase)
	}

	if o.ctx.Err() != nil {
		return st, errClosed
	}

	stepCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	snaps, err := o.hv.ListSnapshots(stepCtx, st.VMIdentity)
	cancel()

	if err != nil {
		return st, fmt.Errorf("listing snapshots of %s: %w", name, err)
	}

	if !slices.Contains(snaps, snapshot) {
		return st, fmt.Errorf("%w: %q on %s", models.ErrInvalidSnapshot, snapshot, name)
	}

	started := o.now()

	next, err := o.registry.Apply(name, registry.Transition{
		From: st.Phase,
		To:   models.PhaseReverting,
		Mutate: func(s *models.VMState) {
			clearRuntime(s)
			s.Operation = models.OperationRevert
			s.Snapshot = snapshot
			s.FlowStarted = started
		},
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return next, fmt.Errorf("%w: %w", models.ErrBusy, err)
		}

		return next, err
	}

	o.logger.Info().Str("vm", name).Str("snapshot", snapshot).Msg("Revert started")

	keep = true

	o.wg.Add(1)

	go o.runRevert(next)

	return next, nil
}

// Connect boots an idle VM without touching its disk state and follows it to
// ready. A VM that is already ready is returned as is.
func (o *Orchestrator) Connect(ctx context.Context, name string) (models.VMState, error) {
	st, err := o.lookup(name)
	if err != nil {
		return models.VMState{}, err
	}

	if !o.reserve(name) {
		return st, fmt.Errorf("%w: %s has a flow in progress", models.ErrBusy, name)
	}

	keep := false

	defer func() {
		if !keep {
			o.release(name)
		}
	}()

	switch st.Phase {
	case models.PhaseReady:
		return st, nil
	case models.PhaseIdle:
	default:
		return st, fmt.Errorf("%w: %s is %s", models.ErrBusy, name, st.Phase)
	}

	if o.ctx.Err() != nil {
		return st, errClosed
	}

	stepCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	warm, err := o.hv.IsRunning(stepCtx, st.VMIdentity)
	cancel()

	if err != nil {
		// PowerOn checks again before starting.
		o.logger.Debug().Err(err).Str("vm", name).Msg("Could not tell whether VM is running")

		warm = false
	}

	started := o.now()

	next, err := o.registry.Apply(name, registry.Transition{
		From:  models.PhaseIdle,
		To:    models.PhasePoweringOn,
		Guard: func(s models.VMState) bool { return s.PhaseSince.Equal(st.PhaseSince) },
		Mutate: func(s *models.VMState) {
			clearRuntime(s)
			s.Operation = models.OperationConnect
			s.Snapshot = ""
			s.FlowStarted = started
		},
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return next, fmt.Errorf("%w: %w", models.ErrBusy, err)
		}

		return next, err
	}

	o.logger.Info().Str("vm", name).Bool("warm", warm).Msg("Connect started")

	keep = true

	o.wg.Add(1)

	go o.runConnect(next, warm)

	return next, nil
}

// Running reports whether the hypervisor lists the VM as powered on.
func (o *Orchestrator) Running(ctx context.Context, name string) (bool, error) {
	st, err := o.lookup(name)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	defer cancel()

	return o.hv.IsRunning(ctx, st.VMIdentity)
}

// Reset returns a ready or failed VM to idle.
func (o *Orchestrator) Reset(_ context.Context, name string) (models.VMState, error) {
	st, err := o.lookup(name)
	if err != nil {
		return models.VMState{}, err
	}

	if st.Phase != models.PhaseReady && st.Phase != models.PhaseFailed {
		return st, fmt.Errorf("%w: %s is %s", models.ErrBusy, name, st.Phase)
	}

	next, err := o.registry.Apply(name, registry.Transition{
		From: st.Phase,
		To:   models.PhaseIdle,
		Mutate: func(s *models.VMState) {
			clearRuntime(s)
			s.Reason = ""
		},
	})
	if errors.Is(err, models.ErrConflict) {
		return next, fmt.Errorf("%w: %w", models.ErrBusy, err)
	}

	if err == nil {
		o.logger.Info().Str("vm", name).Str("from", string(st.Phase)).Msg("VM reset to idle")
	}

	return next, err
}

// Connection describes how to reach a ready VM.
func (o *Orchestrator) Connection(name string) (models.ConnectionDescriptor, error) {
	st, err := o.lookup(name)
	if err != nil {
		return models.ConnectionDescriptor{}, err
	}

	if st.Phase != models.PhaseReady {
		return models.ConnectionDescriptor{}, fmt.Errorf("%w: %s is %s", models.ErrBusy, name, st.Phase)
	}

	cred, err := o.creds.Credential(st.CredentialRef)
	if err != nil {
		return models.ConnectionDescriptor{}, err
	}

	return models.ConnectionDescriptor{
		Name:     st.Name,
		IP:       st.IP,
		Port:     o.rdpPort,
		Username: cred.Username,
	}, nil
}

// Snapshots lists the VM's snapshots as the hypervisor reports them.
func (o *Orchestrator) Snapshots(ctx context.Context, name string) ([]string, error) {
	st, err := o.lookup(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	defer cancel()

	return o.hv.ListSnapshots(ctx, st.VMIdentity)
}

// ExpectedDuration averages recent timings of op. See Ops for the names.
func (o *Orchestrator) ExpectedDuration(name, op string) (time.Duration, bool) {
	return o.durations.Average(name, op)
}

// Wait blocks until every running flow has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels running flows and waits for them. New flows are refused.
func (o *Orchestrator) Close() error {
	o.cancel()
	o.wg.Wait()

	return nil
}

func (o *Orchestrator) lookup(name string) (models.VMState, error) {
	st, err := o.registry.Get(name)
	if errors.Is(err, models.ErrNotFound) {
		return st, fmt.Errorf("%w: %s", models.ErrInvalidVM, name)
	}

	return st, err
}

func (o *Orchestrator) reserve(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inFlight[name]; busy {
		return false
	}

	o.inFlight[name] = struct{}{}

	return true
}

func (o *Orchestrator) release(name string) {
	o.mu.Lock()
	delete(o.inFlight, name)
	o.mu.Unlock()
}

func clearRuntime(s *models.VMState) {
	s.IP = ""
	s.LastProbe = ""
	s.LastProbeAt = time.Time{}
	s.ConsecutiveFailures = 0
	s.Operation = ""
	s.FlowStarted = time.Time{}
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
