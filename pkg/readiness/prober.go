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

// Package readiness combines a host-side reachability gate with the
// configured detection strategy.
package readiness

//go:generate mockgen -destination=mock_readiness.go -package=readiness github.com/carverauto/vmready/pkg/readiness Pinger

import (
	"context"
	"time"

	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
)

const DefaultPingTimeout = time.Second

// Pinger checks ICMP reachability from the host.
type Pinger interface {
	Ping(ctx context.Context, ip string, timeout time.Duration) bool
}

// Prober is safe for concurrent use as long as the strategy is.
type Prober struct {
	pinger      Pinger
	strategy    detect.Strategy
	pingTimeout time.Duration
	logger      logger.Logger
}

func NewProber(pinger Pinger, strategy detect.Strategy, pingTimeout time.Duration, log logger.Logger) *Prober {
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}

	return &Prober{
		pinger:      pinger,
		strategy:    strategy,
		pingTimeout: pingTimeout,
		logger:      log,
	}
}

// Probe never fails: an unreachable guest is reported as such, and a probe
// cut short by ctx comes back unknown.
func (p *Prober) Probe(ctx context.Context, target models.ProbeTarget) models.Readiness {
	if target.IP == "" || !p.pinger.Ping(ctx, target.IP, p.pingTimeout) {
		return models.ReadinessUnreachable
	}

	if ctx.Err() != nil {
		return models.ReadinessUnknown
	}

	r := p.strategy.Check(ctx, target)

	p.logger.Debug().
		Str("vm", target.VM.Name).
		Str("ip", target.IP).
		Str("strategy", string(p.strategy.Name())).
		Str("result", string(r)).
		Msg("Readiness probe")

	return r
}

// Strategy returns the configured detection strategy.
func (p *Prober) Strategy() models.Strategy {
	return p.strategy.Name()
}
