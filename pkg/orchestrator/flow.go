package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ipconfig = `C:\Windows\System32\ipconfig.exe`

var errNoIP = errors.New("no usable guest IP")

//nolint:gochecknoglobals // fixed command list
var renewSteps = []detect.GuestCommand{
	{Program: ipconfig, Args: []string{"/release"}},
	{Program: ipconfig, Args: []string{"/renew"}},
	{Program: ipconfig, Args: []string{"/flushdns"}},
}

// flow is how a VM left idle.
type flow struct {
	op models.Operation
	// warm is set for a connect to a VM that was already running.
	warm bool
}

// runRevert restores the snapshot and hands over to boot.
func (o *Orchestrator) runRevert(st models.VMState) {
	defer o.wg.Done()
	defer o.release(st.Name)

	ctx, span := o.tracer.Start(o.ctx, "vm.revert", trace.WithAttributes(
		attribute.String("vm.name", st.Name),
		attribute.String("vm.snapshot", st.Snapshot),
	))
	defer span.End()

	vm := st.VMIdentity

	if err := o.step(ctx, "revert_snapshot", func(ctx context.Context) error {
		return o.hv.RevertSnapshot(ctx, vm, st.Snapshot)
	}); err != nil {
		o.fail(span, vm.Name, models.PhaseReverting, models.ReasonRevertError, err)
		return
	}

	if !o.advance(span, vm.Name, models.PhaseReverting, models.PhasePoweringOn, nil) {
		return
	}

	o.boot(ctx, span, st, flow{op: models.OperationRevert})
}

func (o *Orchestrator) runConnect(st models.VMState, warm bool) {
	defer o.wg.Done()
	defer o.release(st.Name)

	ctx, span := o.tracer.Start(o.ctx, "vm.connect", trace.WithAttributes(
		attribute.String("vm.name", st.Name),
		attribute.Bool("vm.warm", warm),
	))
	defer span.End()

	o.boot(ctx, span, st, flow{op: models.OperationConnect, warm: warm})
}

// boot drives a VM from powering_on to awaiting_readiness and then waits for
// the scheduler's verdict.
func (o *Orchestrator) boot(ctx context.Context, span trace.Span, st models.VMState, f flow) {
	vm := st.VMIdentity
	log := o.logger.With().Str("vm", vm.Name).Str("op", string(f.op)).Logger()

	if f.warm {
		span.AddEvent("already_running")
	} else if err := o.step(ctx, "power_on", func(ctx context.Context) error {
		return o.hv.PowerOn(ctx, vm)
	}); err != nil {
		o.fail(span, vm.Name, models.PhasePoweringOn, models.ReasonPowerOnError, err)
		return
	}

	if !o.advance(span, vm.Name, models.PhasePoweringOn, models.PhaseAwaitingIP, nil) {
		return
	}

	ip, err := o.acquireIP(ctx, vm)
	if err == nil && f.op == models.OperationRevert && o.cfg.RenewNetwork {
		// A restored snapshot may still hold the lease it was taken with.
		log.Debug().Str("ip", ip).Msg("First guest IP seen, renewing lease")
		o.renewNetwork(ctx, vm)

		ip, err = o.acquireIP(ctx, vm)
	}

	if err != nil {
		if o.ctx.Err() != nil {
			log.Info().Msg("Flow abandoned during shutdown")
			return
		}

		o.fail(span, vm.Name, models.PhaseAwaitingIP, models.ReasonNoIP, err)

		return
	}

	span.SetAttributes(attribute.String("vm.ip", ip))

	if !o.advance(span, vm.Name, models.PhaseAwaitingIP, models.PhaseAwaitingReadiness, func(s *models.VMState) {
		s.IP = ip
	}) {
		return
	}

	handoff, err := o.registry.Get(vm.Name)
	if err != nil {
		return
	}

	if f.op == models.OperationRevert {
		o.durations.Record(vm.Name, OpRevert, o.now().Sub(st.FlowStarted))
	}

	log.Info().Str("ip", ip).Msg("Guest IP acquired, waiting for remote desktop readiness")

	if o.strategy == models.StrategyOff {
		if o.advance(span, vm.Name, models.PhaseAwaitingReadiness, models.PhaseReady, nil) {
			o.recordReady(f, st, handoff)
		}

		return
	}

	if o.notifier != nil {
		o.notifier.Notify()
	}

	o.awaitReadiness(ctx, span, st, handoff, f)
}

func (o *Orchestrator) awaitReadiness(ctx context.Context, span trace.Span, st, handoff models.VMState, f flow) {
	name := handoff.Name
	renewed := false

	for {
		final, err := o.waitReadiness(ctx, handoff)

		switch {
		case err == nil:
		case o.ctx.Err() != nil:
			return
		case errors.Is(err, context.DeadlineExceeded):
			if o.cfg.RenewNetwork && !renewed {
				renewed = true

				o.renewAndRefreshIP(ctx, span, handoff)

				continue
			}

			_, applyErr := o.registry.Apply(name, registry.Transition{
				From:  models.PhaseAwaitingReadiness,
				To:    models.PhaseFailed,
				Guard: func(s models.VMState) bool { return s.PhaseSince.Equal(handoff.PhaseSince) },
				Mutate: func(s *models.VMState) {
					s.Reason = models.ReasonRDPTimeout
				},
			})
			if applyErr == nil {
				o.logger.Warn().
					Str("vm", name).
					Int("consecutive_failures", final.ConsecutiveFailures).
					Dur("timeout", time.Duration(o.cfg.ReadinessTimeout)).
					Msg("Remote desktop did not become ready in time")

				span.SetStatus(codes.Error, models.ReasonRDPTimeout)

				return
			}

			// The scheduler may have won the race.
			if final, err = o.registry.Get(name); err != nil {
				return
			}
		default:
			return
		}

		if final.Phase != models.PhaseReady {
			return
		}

		o.recordReady(f, st, handoff)

		span.AddEvent("ready")
		o.logger.Info().
			Str("vm", name).
			Str("op", string(f.op)).
			Str("ip", final.IP).
			Dur("total", o.now().Sub(final.FlowStarted)).
			Msg("VM ready")

		return
	}
}

// waitReadiness blocks until the VM leaves the awaiting_readiness phase it
// entered at handoff, or ReadinessTimeout passes.
func (o *Orchestrator) waitReadiness(ctx context.Context, handoff models.VMState) (models.VMState, error) {
	if timeout := time.Duration(o.cfg.ReadinessTimeout); timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return o.registry.WaitFor(ctx, handoff.Name, func(s models.VMState) bool {
		return s.Phase != models.PhaseAwaitingReadiness || !s.PhaseSince.Equal(handoff.PhaseSince)
	})
}

// renewAndRefreshIP renews the guest lease after a readiness timeout and
// points the scheduler at the new address, if it changed.
func (o *Orchestrator) renewAndRefreshIP(ctx context.Context, span trace.Span, handoff models.VMState) {
	vm := handoff.VMIdentity

	o.logger.Warn().Str("vm", vm.Name).Msg("Remote desktop not ready in time, renewing guest network")
	span.AddEvent("renew_network")

	o.renewNetwork(ctx, vm)

	stepCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	ip, err := o.hv.GetGuestIP(stepCtx, vm)
	cancel()

	if err == nil && ip != "" && ip != handoff.IP && o.filter.accept(ip) {
		_, err = o.registry.Apply(vm.Name, registry.Transition{
			From:   models.PhaseAwaitingReadiness,
			To:     models.PhaseAwaitingReadiness,
			Guard:  func(s models.VMState) bool { return s.PhaseSince.Equal(handoff.PhaseSince) },
			Mutate: func(s *models.VMState) { s.IP = ip },
		})
		if err == nil {
			o.logger.Info().Str("vm", vm.Name).Str("old_ip", handoff.IP).Str("ip", ip).Msg("Guest IP changed after renewal")
		}
	}

	if o.notifier != nil {
		o.notifier.Notify()
	}
}

// renewNetwork runs the lease renewal commands. Failed steps are logged and
// the rest still run.
func (o *Orchestrator) renewNetwork(ctx context.Context, vm models.VMIdentity) {
	ctx, span := o.tracer.Start(ctx, "renew_network")
	defer span.End()

	for _, cmd := range renewSteps {
		stepCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
		_, err := o.guest.RunInGuest(stepCtx, vm, cmd)
		cancel()

		if err != nil {
			span.RecordError(err)
			o.logger.Warn().Err(err).Str("vm", vm.Name).Str("step", cmd.Args[0]).Msg("Guest network renewal step failed")
		}

		if ctx.Err() != nil {
			return
		}
	}

	o.logger.Info().Str("vm", vm.Name).Msg("Guest network renewed")
}

func (o *Orchestrator) recordReady(f flow, st, handoff models.VMState) {
	now := o.now()

	switch {
	case f.op == models.OperationRevert:
		o.durations.Record(st.Name, OpConnect, now.Sub(handoff.PhaseSince))
	case f.warm:
		o.durations.Record(st.Name, OpConnectWarm, now.Sub(st.FlowStarted))
	default:
		o.durations.Record(st.Name, OpConnectCold, now.Sub(st.FlowStarted))
	}
}

func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
	defer cancel()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

// acquireIP polls the guest for an address the subnet filter accepts. With
// RenewNetwork, the first filtered address triggers one lease renewal.
func (o *Orchestrator) acquireIP(ctx context.Context, vm models.VMIdentity) (string, error) {
	ctx, span := o.tracer.Start(ctx, "acquire_ip")
	defer span.End()

	delay := time.Duration(o.cfg.IPRetryDelay)

	var (
		lastIP  string
		renewed bool
	)

	for attempt := 1; attempt <= o.cfg.IPRetries; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.StepTimeout))
		ip, err := o.hv.GetGuestIP(stepCtx, vm)
		cancel()

		switch {
		case err != nil:
			o.logger.Debug().Err(err).Str("vm", vm.Name).Int("attempt", attempt).Msg("Guest IP lookup failed")
		case ip == "":
		case !o.filter.accept(ip):
			lastIP = ip
			o.logger.Debug().Str("vm", vm.Name).Str("ip", ip).Msg("Guest IP outside allowed subnets")

			if o.cfg.RenewNetwork && !renewed {
				renewed = true

				o.renewNetwork(ctx, vm)
			}
		default:
			span.SetAttributes(attribute.Int("attempts", attempt))

			return ip, nil
		}

		if attempt == o.cfg.IPRetries {
			break
		}

		if err := o.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	if lastIP != "" {
		return "", fmt.Errorf("%w after %d attempts, last seen %s", errNoIP, o.cfg.IPRetries, lastIP)
	}

	return "", fmt.Errorf("%w after %d attempts", errNoIP, o.cfg.IPRetries)
}

// advance applies from -> to. A failed apply ends the flow.
func (o *Orchestrator) advance(span trace.Span, name string, from, to models.Phase, mutate func(*models.VMState)) bool {
	if _, err := o.registry.Apply(name, registry.Transition{From: from, To: to, Mutate: mutate}); err != nil {
		span.RecordError(err)
		o.logger.Error().Err(err).Str("vm", name).Str("from", string(from)).Str("to", string(to)).Msg("Flow interrupted")

		return false
	}

	span.AddEvent(string(to))

	return true
}

func (o *Orchestrator) fail(span trace.Span, name string, from models.Phase, reason string, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, reason)

	o.logger.Error().Err(cause).Str("vm", name).Str("reason", reason).Msg("VM flow failed")

	if _, err := o.registry.Apply(name, registry.Transition{
		From: from,
		To:   models.PhaseFailed,
		Mutate: func(s *models.VMState) {
			s.Reason = reason
		},
	}); err != nil {
		o.logger.Error().Err(err).Str("vm", name).Msg("Failed to record failure")
	}
}
