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

// Package registry owns the lifecycle state of every known VM. All mutation
// goes through Apply, which checks the caller's view of the phase first.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
)

// Transition moves a VM from the phase the caller observed to a new phase.
// Mutate may edit every field except the identity and the phase. A non-nil
// Guard must accept the current state or the transition is a conflict.
type Transition struct {
	From   models.Phase
	To     models.Phase
	Guard  func(models.VMState) bool
	Mutate func(*models.VMState)
}

//nolint:gochecknoglobals // static state machine
var edges = map[models.Phase][]models.Phase{
	models.PhaseIdle:              {models.PhaseReverting, models.PhasePoweringOn},
	models.PhaseReverting:         {models.PhasePoweringOn, models.PhaseFailed},
	models.PhasePoweringOn:        {models.PhaseAwaitingIP, models.PhaseFailed},
	models.PhaseAwaitingIP:        {models.PhaseAwaitingReadiness, models.PhaseFailed},
	models.PhaseAwaitingReadiness: {models.PhaseReady, models.PhaseFailed},
	models.PhaseReady:             {models.PhaseReverting, models.PhaseIdle},
	models.PhaseFailed:            {models.PhaseIdle},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
// Staying in the same phase is always allowed.
func CanTransition(from, to models.Phase) bool {
	if from == to {
		return true
	}

	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	vms     map[string]*models.VMState
	changed chan struct{}
	now     func() time.Time
	logger  logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithNow replaces the wall clock used for phase timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		vms:     make(map[string]*models.VMState),
		changed: make(chan struct{}),
		now:     time.Now,
		logger:  log,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

// Load adds every identity as an idle VM. Names already present are kept.
func (r *Registry) Load(identities []models.VMIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	for _, id := range identities {
		if _, ok := r.vms[id.Name]; ok {
			r.logger.Warn().Str("vm", id.Name).Msg("Duplicate VM name ignored")
			continue
		}

		r.vms[id.Name] = &models.VMState{
			VMIdentity: id,
			Phase:      models.PhaseIdle,
			PhaseSince: now,
		}
	}

	r.notifyLocked()
}

// Get returns a copy of the VM state.
func (r *Registry) Get(name string) (models.VMState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.vms[name]
	if !ok {
		return models.VMState{}, fmt.Errorf("%w: %s", models.ErrNotFound, name)
	}

	return *s, nil
}

// List returns copies of all states ordered by name.
func (r *Registry) List() []models.VMState {
	r.mu.Lock()
	out := make([]models.VMState, 0, len(r.vms))

	for _, s := range r.vms {
		out = append(out, *s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Pending returns VMs awaiting readiness, longest waiting first. A positive
// limit truncates the result.
func (r *Registry) Pending(limit int) []models.VMState {
	r.mu.Lock()
	var out []models.VMState

	for _, s := range r.vms {
		if s.Phase == models.PhaseAwaitingReadiness {
			out = append(out, *s)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PhaseSince.Equal(out[j].PhaseSince) {
			return out[i].PhaseSince.Before(out[j].PhaseSince)
		}

		return out[i].Name < out[j].Name
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// Apply atomically checks that the VM is still in t.From, then moves it to
// t.To after running t.Mutate on a copy. It returns the new state.
func (r *Registry) Apply(name string, t Transition) (models.VMState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.vms[name]
	if !ok {
		return models.VMState{}, fmt.Errorf("%w: %s", models.ErrNotFound, name)
	}

	if cur.Phase != t.From {
		return *cur, fmt.Errorf("%w: %s is %s, expected %s", models.ErrConflict, name, cur.Phase, t.From)
	}

	if t.Guard != nil && !t.Guard(*cur) {
		return *cur, fmt.Errorf("%w: %s changed since it was read", models.ErrConflict, name)
	}

	if !CanTransition(t.From, t.To) {
		return *cur, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, t.From, t.To)
	}

	next := *cur
	if t.Mutate != nil {
		t.Mutate(&next)
	}

	next.VMIdentity = cur.VMIdentity
	next.Phase = t.To

	if t.From != t.To {
		next.PhaseSince = r.now()

		if t.To != models.PhaseFailed {
			next.Reason = ""
		}

		r.logger.Debug().
			Str("vm", name).
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Str("reason", next.Reason).
			Msg("Phase transition")
	}

	r.vms[name] = &next
	r.notifyLocked()

	return next, nil
}

// WaitFor blocks until the VM state satisfies pred or ctx ends. On ctx end it
// returns the last observed state and the context error.
func (r *Registry) WaitFor(ctx context.Context, name string, pred func(models.VMState) bool) (models.VMState, error) {
	for {
		r.mu.Lock()
		cur, ok := r.vms[name]
		ch := r.changed

		var state models.VMState
		if ok {
			state = *cur
		}
		r.mu.Unlock()

		if !ok {
			return models.VMState{}, fmt.Errorf("%w: %s", models.ErrNotFound, name)
		}

		if pred(state) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ch:
		}
	}
}

// notifyLocked wakes every WaitFor caller. r.mu must be held.
func (r *Registry) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}
