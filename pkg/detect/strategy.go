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

// Package detect decides whether a Windows guest accepts remote desktop
// connections, using only tools that ship with the guest OS.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
)

const (
	defaultRDPPort    = 3389
	defaultTCPTimeout = 2 * time.Second

	serviceRunning = "running"

	// thoroughScript prints SERVICE=<status> followed by the session table.
	thoroughScript = `$s = Get-Service -Name TermService -ErrorAction SilentlyContinue
if ($s) { 'SERVICE=' + $s.Status } else { 'SERVICE=Missing' }
& qwinsta.exe 2>$null`
)

var (
	errUnknownStrategy = errors.New("unknown detection strategy")
	errMissingExecutor = errors.New("strategy needs a guest executor")
	errMissingChecker  = errors.New("strategy needs a port checker")
)

// Deps are the collaborators a strategy may need.
type Deps struct {
	Exec    GuestExecutor
	Ports   PortChecker
	RDPPort int
	Logger  logger.Logger
}

// New returns the strategy named by mode. It is called once at startup.
func New(mode models.Strategy, deps Deps) (Strategy, error) {
	if deps.RDPPort == 0 {
		deps.RDPPort = defaultRDPPort
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewTestLogger()
	}

	switch mode {
	case models.StrategyThorough, models.StrategyFast, models.StrategyHybrid:
		if deps.Exec == nil {
			return nil, fmt.Errorf("%w: %s", errMissingExecutor, mode)
		}
	case models.StrategyTCP:
		if deps.Ports == nil {
			return nil, fmt.Errorf("%w: %s", errMissingChecker, mode)
		}
	case models.StrategyOff:
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStrategy, mode)
	}

	switch mode {
	case models.StrategyThorough:
		return NewThorough(deps.Exec, deps.Logger), nil
	case models.StrategyFast:
		return NewFast(deps.Exec, deps.Logger), nil
	case models.StrategyHybrid:
		return NewHybrid(NewFast(deps.Exec, deps.Logger), NewThorough(deps.Exec, deps.Logger)), nil
	case models.StrategyTCP:
		return NewTCP(deps.Ports, deps.RDPPort, defaultTCPTimeout), nil
	default:
		return Off{}, nil
	}
}

// Thorough asks PowerShell for the TermService status and the rdp-tcp
// listener state in one guest call.
type Thorough struct {
	exec   GuestExecutor
	logger logger.Logger
}

func NewThorough(exec GuestExecutor, log logger.Logger) *Thorough {
	return &Thorough{exec: exec, logger: log}
}

func (*Thorough) Name() models.Strategy { return models.StrategyThorough }

func (s *Thorough) Check(ctx context.Context, target models.ProbeTarget) models.Readiness {
	out, err := s.exec.RunInGuest(ctx, target.VM, powerShell(thoroughScript))
	if err != nil {
		s.logger.Debug().Err(err).Str("vm", target.VM.Name).Msg("Thorough check failed to run")

		return models.ReadinessUnknown
	}

	status, ok := keyValue(out, "SERVICE")
	if !ok {
		s.logger.Debug().Str("vm", target.VM.Name).Str("output", out).Msg("Thorough check output not understood")

		return models.ReadinessUnknown
	}

	if !strings.EqualFold(strings.TrimSpace(status), serviceRunning) {
		return models.ReadinessNotReady
	}

	if listening, _, _ := qwinstaStatus(out); listening {
		return models.ReadinessReady
	}

	return models.ReadinessNotReady
}

// Fast reads the session table and falls back to the service process list
// when qwinsta cannot run.
type Fast struct {
	exec   GuestExecutor
	logger logger.Logger
}

func NewFast(exec GuestExecutor, log logger.Logger) *Fast {
	return &Fast{exec: exec, logger: log}
}

func (*Fast) Name() models.Strategy { return models.StrategyFast }

func (s *Fast) Check(ctx context.Context, target models.ProbeTarget) models.Readiness {
	out, err := s.exec.RunInGuest(ctx, target.VM, GuestCommand{Program: qwinstaPath})
	if err == nil {
		listening, active, ok := qwinstaStatus(out)
		if ok {
			if listening || active {
				return models.ReadinessReady
			}

			return models.ReadinessNotReady
		}
	}

	if ctx.Err() != nil {
		return models.ReadinessUnknown
	}

	s.logger.Debug().Err(err).Str("vm", target.VM.Name).Msg("qwinsta unavailable, checking TermService process")

	out, err = s.exec.RunInGuest(ctx, target.VM, GuestCommand{
		Program: tasklistPath,
		Args:    []string{"/svc", "/fi", "SERVICES eq TermService"},
	})
	if err != nil {
		return models.ReadinessUnknown
	}

	running, known := tasklistServiceState(out)

	switch {
	case !known:
		return models.ReadinessUnknown
	case running:
		return models.ReadinessLikelyReady
	default:
		return models.ReadinessNotReady
	}
}

// Hybrid trusts a confident fast answer and confirms anything else with
// the thorough check.
type Hybrid struct {
	fast     Strategy
	thorough Strategy
}

func NewHybrid(fast, thorough Strategy) *Hybrid {
	return &Hybrid{fast: fast, thorough: thorough}
}

func (*Hybrid) Name() models.Strategy { return models.StrategyHybrid }

func (s *Hybrid) Check(ctx context.Context, target models.ProbeTarget) models.Readiness {
	switch r := s.fast.Check(ctx, target); r {
	case models.ReadinessReady, models.ReadinessNotReady:
		return r
	default:
		return s.thorough.Check(ctx, target)
	}
}

// TCP only dials the RDP port from the host.
type TCP struct {
	ports   PortChecker
	port    int
	timeout time.Duration
}

func NewTCP(ports PortChecker, port int, timeout time.Duration) *TCP {
	return &TCP{ports: ports, port: port, timeout: timeout}
}

func (*TCP) Name() models.Strategy { return models.StrategyTCP }

func (s *TCP) Check(ctx context.Context, target models.ProbeTarget) models.Readiness {
	if s.ports.TCPConnect(ctx, target.IP, s.port, s.timeout) {
		return models.ReadinessReady
	}

	return models.ReadinessNotReady
}

// Off never checks anything.
type Off struct{}

func (Off) Name() models.Strategy { return models.StrategyOff }

func (Off) Check(context.Context, models.ProbeTarget) models.Readiness {
	return models.ReadinessUnknown
}
