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

package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string]models.Readiness
	calls   map[string]int
	delay   time.Duration
	during  func(name string)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeProber(results map[string]models.Readiness) *fakeProber {
	return &fakeProber{results: results, calls: make(map[string]int)}
}

func (f *fakeProber) Probe(ctx context.Context, target models.ProbeTarget) models.Readiness {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.during != nil {
		f.during(target.VM.Name)
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return models.ReadinessUnknown
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[target.VM.Name]++

	if r, ok := f.results[target.VM.Name]; ok {
		return r
	}

	return models.ReadinessNotReady
}

func (f *fakeProber) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[name]
}

type fixedSampler struct {
	usage hostload.Usage
}

func (s fixedSampler) Sample(context.Context, time.Duration) hostload.Usage {
	return s.usage
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(time.Second)

	return c.t
}

// awaitingRegistry returns a registry where every VM sits in
// awaiting_readiness. VMs enter the phase in argument order.
func awaitingRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()

	clock := &stepClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := registry.New(logger.NewTestLogger(), registry.WithNow(clock.Now))

	ids := make([]models.VMIdentity, 0, len(names))
	for _, n := range names {
		ids = append(ids, models.VMIdentity{Name: n})
	}

	r.Load(ids)

	for i, n := range names {
		from := models.PhaseIdle

		for _, to := range []models.Phase{
			models.PhaseReverting, models.PhasePoweringOn, models.PhaseAwaitingIP, models.PhaseAwaitingReadiness,
		} {
			_, err := r.Apply(n, registry.Transition{From: from, To: to, Mutate: func(s *models.VMState) {
				if to == models.PhaseAwaitingReadiness {
					s.IP = fmt.Sprintf("192.168.0.%d", 10+i)
				}
			}})
			require.NoError(t, err)

			from = to
		}
	}

	return r
}

func testConfig(t *testing.T, concurrency, batch int) *Config {
	t.Helper()

	cfg := &Config{
		Detection: models.DetectionConfig{Concurrency: concurrency, BatchSize: batch},
	}
	require.NoError(t, cfg.Validate())

	return cfg
}

//nolint:gochecknoglobals // test fixture
var idleCPU = fixedSampler{usage: hostload.Usage{Percent: 12, Known: true}}

func TestTickRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	names := []string{"vm1", "vm2", "vm3", "vm4", "vm5"}
	reg := awaitingRegistry(t, names...)

	prober := newFakeProber(nil)
	prober.delay = 20 * time.Millisecond

	p := New(testConfig(t, 2, 0), reg, prober, idleCPU, nil, logger.NewTestLogger())

	status := p.Tick(context.Background())

	assert.Equal(t, 5, status.Pending)
	assert.Equal(t, 5, status.Probed)
	assert.Equal(t, 2, status.Concurrency)
	assert.LessOrEqual(t, prober.maxInFlight.Load(), int32(2))

	for _, n := range names {
		assert.Equal(t, 1, prober.callCount(n), n)
	}
}

func TestTickFoldsResults(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t, "win10", "win11")
	prober := newFakeProber(map[string]models.Readiness{
		"win10": models.ReadinessReady,
		"win11": models.ReadinessLikelyReady,
	})

	p := New(testConfig(t, 4, 0), reg, prober, idleCPU, nil, logger.NewTestLogger())

	status := p.Tick(context.Background())
	assert.Equal(t, 1, status.Ready)

	ready, err := reg.Get("win10")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseReady, ready.Phase)
	assert.Equal(t, models.ReadinessReady, ready.LastProbe)
	assert.Equal(t, 0, ready.ConsecutiveFailures)
	assert.False(t, ready.LastProbeAt.IsZero())

	waiting, err := reg.Get("win11")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingReadiness, waiting.Phase)
	assert.Equal(t, models.ReadinessLikelyReady, waiting.LastProbe)
	assert.Equal(t, 1, waiting.ConsecutiveFailures)

	p.Tick(context.Background())

	waiting, err = reg.Get("win11")
	require.NoError(t, err)
	assert.Equal(t, 2, waiting.ConsecutiveFailures)
	assert.Equal(t, 1, prober.callCount("win10"), "ready VMs are no longer probed")
}

func TestTickBatchTakesLongestWaiting(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t, "oldest", "middle", "newest")
	prober := newFakeProber(nil)

	p := New(testConfig(t, 4, 2), reg, prober, idleCPU, nil, logger.NewTestLogger())

	status := p.Tick(context.Background())

	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, 1, prober.callCount("oldest"))
	assert.Equal(t, 1, prober.callCount("middle"))
	assert.Equal(t, 0, prober.callCount("newest"))
}

func TestTickDiscardsResultForVMThatMovedOn(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t, "win10")
	prober := newFakeProber(map[string]models.Readiness{"win10": models.ReadinessReady})
	prober.during = func(name string) {
		_, err := reg.Apply(name, registry.Transition{
			From: models.PhaseAwaitingReadiness,
			To:   models.PhaseFailed,
			Mutate: func(s *models.VMState) {
				s.Reason = models.ReasonRDPTimeout
			},
		})
		assert.NoError(t, err)
	}

	p := New(testConfig(t, 4, 0), reg, prober, idleCPU, nil, logger.NewTestLogger())

	status := p.Tick(context.Background())
	assert.Equal(t, 1, status.Discarded)
	assert.Equal(t, 0, status.Ready)

	s, err := reg.Get("win10")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFailed, s.Phase)
	assert.Equal(t, models.ReasonRDPTimeout, s.Reason)
	assert.Empty(t, s.LastProbe)
}

func TestTickUnderPressureProbesOneAtATime(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t, "vm1", "vm2", "vm3")
	prober := newFakeProber(nil)
	prober.delay = 10 * time.Millisecond

	cfg := testConfig(t, 3, 0)
	cfg.Pressure = hostload.PressureConfig{ThresholdPct: 90, ConsecutiveTicks: 2}

	hot := fixedSampler{usage: hostload.Usage{Percent: 97.2, Known: true}}
	p := New(cfg, reg, prober, hot, nil, logger.NewTestLogger())

	first := p.Tick(context.Background())
	assert.False(t, first.UnderPressure)
	assert.Equal(t, 3, first.Concurrency)

	second := p.Tick(context.Background())
	assert.True(t, second.UnderPressure)
	assert.Equal(t, 2, second.ConsecutiveOver)
	assert.Equal(t, 1, second.Concurrency)
	assert.True(t, p.UnderPressure())

	prober.maxInFlight.Store(0)
	p.Tick(context.Background())
	assert.Equal(t, int32(1), prober.maxInFlight.Load())
}

func TestTickUnknownCPUIsNoPressure(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t, "vm1")

	cfg := testConfig(t, 2, 0)
	cfg.Pressure = hostload.PressureConfig{ThresholdPct: 90, ConsecutiveTicks: 1}

	p := New(cfg, reg, newFakeProber(nil), fixedSampler{usage: hostload.Unknown}, nil, logger.NewTestLogger())

	status := p.Tick(context.Background())
	assert.False(t, status.CPUKnown)
	assert.False(t, status.UnderPressure)
	assert.Equal(t, 2, status.Concurrency)
}

func TestStartTicksOnTickerAndNotify(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	tickCh := make(chan time.Time)

	clock.EXPECT().Ticker(2 * time.Second).Return(ticker)
	clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	ticker.EXPECT().Chan().Return((<-chan time.Time)(tickCh)).AnyTimes()
	ticker.EXPECT().Stop()

	reg := awaitingRegistry(t, "win10")
	prober := newFakeProber(nil)

	p := New(testConfig(t, 1, 0), reg, prober, idleCPU, clock, logger.NewTestLogger())

	errCh := make(chan error, 1)

	go func() {
		errCh <- p.Start(context.Background())
	}()

	tickCh <- time.Now()

	require.Eventually(t, func() bool { return prober.callCount("win10") == 1 }, time.Second, 5*time.Millisecond)

	p.Notify()
	p.Notify()

	require.Eventually(t, func() bool { return prober.callCount("win10") >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestStartReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	reg := awaitingRegistry(t)
	cfg := testConfig(t, 1, 0)

	p := New(cfg, reg, newFakeProber(nil), idleCPU, nil, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.Start(ctx), context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	var c Config
	require.NoError(t, c.Validate())
	assert.Equal(t, models.Duration(defaultPollInterval), c.PollInterval)
	assert.Equal(t, models.Duration(defaultProbeTimeout), c.ProbeTimeout)
	assert.Equal(t, models.StrategyHybrid, c.Detection.Strategy)
	assert.Equal(t, hostload.DefaultConsecutiveTicks, c.Pressure.ConsecutiveTicks)

	c = Config{PollInterval: models.Duration(time.Millisecond)}
	require.ErrorIs(t, c.Validate(), errPollIntervalTooShort)

	c = Config{Detection: models.DetectionConfig{Concurrency: -1}}
	require.Error(t, c.Validate())
}
