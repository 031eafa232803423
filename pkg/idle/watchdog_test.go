package idle

import (
	"context"
	"errors"
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

var (
	errVMRun   = errors.New("vmrun: host unreachable")
	errSession = errors.New("guest tools not running")
)

//nolint:gochecknoglobals // test fixtures
var (
	alpha = models.VMIdentity{Name: "alpha", VMXPath: `C:\VMware\alpha\alpha.vmx`}
	beta  = models.VMIdentity{Name: "beta", VMXPath: `C:\VMware\beta\beta.vmx`}
	gamma = models.VMIdentity{Name: "gamma", VMXPath: `C:\VMware\gamma\gamma.vmx`}
)

type fixture struct {
	w        *Watchdog
	reg      *registry.Registry
	hv       *MockHypervisor
	sessions *MockSessionChecker
	cpu      *MockPressureSource
	memGB    float64
	clock    time.Time
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	// Every registry timestamp is distinct.
	var ticks atomic.Int64

	regClock := func() time.Time {
		return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC).Add(time.Duration(ticks.Add(1)) * time.Millisecond)
	}

	f := &fixture{
		reg:      registry.New(logger.NewTestLogger(), registry.WithNow(regClock)),
		hv:       NewMockHypervisor(ctrl),
		sessions: NewMockSessionChecker(ctrl),
		cpu:      NewMockPressureSource(ctrl),
		memGB:    32,
		clock:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	f.reg.Load([]models.VMIdentity{alpha, beta, gamma})

	cfg := &Config{Enabled: true, IdleAfter: models.Duration(10 * time.Minute)}
	if mutate != nil {
		mutate(cfg)
	}

	require.NoError(t, cfg.Validate())

	f.w = New(cfg, Deps{
		Registry:   f.reg,
		Hypervisor: f.hv,
		Sessions:   f.sessions,
		CPU:        f.cpu,
		Memory: func(context.Context) (hostload.Memory, error) {
			return hostload.Memory{Available: uint64(f.memGB * (1 << 30)), Total: 64 << 30}, nil
		},
		Logger: logger.NewTestLogger(),
	})
	f.w.now = func() time.Time { return f.clock }

	return f
}

func (f *fixture) running(vms ...models.VMIdentity) {
	paths := make([]string, 0, len(vms))
	for _, vm := range vms {
		paths = append(paths, vm.VMXPath)
	}

	f.hv.EXPECT().ListRunning(gomock.Any()).Return(paths, nil)
}

func (f *fixture) sessionsIdle(vms ...models.VMIdentity) {
	for _, vm := range vms {
		f.sessions.EXPECT().HasActiveSession(gomock.Any(), vm).Return(false, nil)
	}
}

func TestNoPressureStopsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	for range 2 {
		f.running(alpha)
		f.sessionsIdle(alpha)
		f.cpu.EXPECT().UnderPressure().Return(false)

		st := f.w.Tick(context.Background())
		assert.False(t, st.Pressure())
		assert.Empty(t, st.Stopped)

		f.clock = f.clock.Add(time.Hour)
	}
}

func TestMemoryPressureStopsLeastRecentlyActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	// First sighting starts every idle clock.
	f.running(alpha, beta, gamma)
	f.sessionsIdle(alpha, gamma)
	f.sessions.EXPECT().HasActiveSession(gomock.Any(), beta).Return(true, nil)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(5 * time.Minute)
	f.running(alpha, beta, gamma)
	f.sessionsIdle(alpha, beta)
	f.sessions.EXPECT().HasActiveSession(gomock.Any(), gamma).Return(true, nil)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(20 * time.Minute)
	f.memGB = 2
	f.running(alpha, beta, gamma)
	f.sessionsIdle(alpha, beta, gamma)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.hv.EXPECT().Stop(gomock.Any(), alpha, models.StopSoft).Return(nil)

	st := f.w.Tick(context.Background())
	assert.True(t, st.MemPressure)
	assert.False(t, st.CPUPressure)
	assert.Equal(t, []string{"alpha"}, st.Stopped)
	assert.Equal(t, st, f.w.Status())
}

func TestRecentlyActiveVMsAreSpared(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(true)

	st := f.w.Tick(context.Background())
	assert.True(t, st.CPUPressure)
	assert.Empty(t, st.Stopped, "idle clock just started")
}

func TestReadyVMIsReleasedBeforeStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) {
		c.StopMode = models.StopHard
		c.MaxShutdownsPerTick = 2
	})

	moveToReady(t, f.reg, alpha.Name)
	moveToReady(t, f.reg, beta.Name)

	f.running(alpha, beta)
	f.sessionsIdle(alpha, beta)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.running(alpha, beta)
	f.sessionsIdle(alpha, beta)
	f.cpu.EXPECT().UnderPressure().Return(true)
	f.hv.EXPECT().Stop(gomock.Any(), alpha, models.StopHard).Return(nil)
	f.hv.EXPECT().Stop(gomock.Any(), beta, models.StopHard).Return(errVMRun)

	st := f.w.Tick(context.Background())
	assert.Equal(t, []string{"alpha"}, st.Stopped)

	a, err := f.reg.Get(alpha.Name)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseIdle, a.Phase)
	assert.Empty(t, a.IP)
}

func TestBusyPhasesAreNeverStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	_, err := f.reg.Apply(alpha.Name, registry.Transition{From: models.PhaseIdle, To: models.PhaseReverting})
	require.NoError(t, err)

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(true)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(true)

	st := f.w.Tick(context.Background())
	assert.Empty(t, st.Stopped)
}

func TestFailedSessionCheckCountsAsActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.memGB = 1

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.running(alpha)
	f.sessions.EXPECT().HasActiveSession(gomock.Any(), alpha).Return(false, errSession)
	f.cpu.EXPECT().UnderPressure().Return(false)

	st := f.w.Tick(context.Background())
	assert.Equal(t, 1, st.Active)
	assert.Empty(t, st.Stopped)
}

func TestBatchSizeLimitsSessionChecks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) { c.BatchSize = 2 })

	f.running(alpha, beta, gamma)
	f.sessionsIdle(alpha, beta)
	f.cpu.EXPECT().UnderPressure().Return(false)

	st := f.w.Tick(context.Background())
	assert.Equal(t, 3, st.Running)
	assert.Equal(t, 2, st.Checked)

	// The next tick picks up where this one stopped.
	f.running(alpha, beta, gamma)
	f.sessionsIdle(gamma, alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)

	st = f.w.Tick(context.Background())
	assert.Equal(t, 2, st.Checked)
}

func TestUncheckedVMsAreNotStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *Config) {
		c.BatchSize = 1
		c.MaxShutdownsPerTick = 3
	})

	f.running(alpha, beta)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.memGB = 1
	f.running(alpha, beta)
	f.sessionsIdle(beta)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.hv.EXPECT().Stop(gomock.Any(), beta, models.StopSoft).Return(nil)

	st := f.w.Tick(context.Background())
	assert.Equal(t, []string{"beta"}, st.Stopped, "alpha was not checked this tick")
}

func TestVMRevertedDuringTickIsNotStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.memGB = 1
	f.running(alpha)
	f.sessions.EXPECT().HasActiveSession(gomock.Any(), alpha).DoAndReturn(
		func(context.Context, models.VMIdentity) (bool, error) {
			_, err := f.reg.Apply(alpha.Name, registry.Transition{From: models.PhaseIdle, To: models.PhaseReverting})
			assert.NoError(t, err)

			return false, nil
		})
	f.cpu.EXPECT().UnderPressure().Return(false)

	st := f.w.Tick(context.Background())
	assert.True(t, st.MemPressure)
	assert.Empty(t, st.Stopped)

	a, err := f.reg.Get(alpha.Name)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseReverting, a.Phase)
}

func TestIdleVMReturningToIdleDuringTickIsNotStopped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.memGB = 1
	f.running(alpha)
	f.sessions.EXPECT().HasActiveSession(gomock.Any(), alpha).DoAndReturn(
		func(context.Context, models.VMIdentity) (bool, error) {
			cycleThroughFailed(t, f.reg, alpha.Name)
			return false, nil
		})
	f.cpu.EXPECT().UnderPressure().Return(false)

	st := f.w.Tick(context.Background())
	assert.Empty(t, st.Stopped, "idle again, but not the idle the tick read")
}

func TestListRunningFailureKeepsIdleClocks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	f.running(alpha)
	f.sessionsIdle(alpha)
	f.cpu.EXPECT().UnderPressure().Return(false)
	f.w.Tick(context.Background())

	f.clock = f.clock.Add(time.Hour)
	f.hv.EXPECT().ListRunning(gomock.Any()).Return(nil, errVMRun)
	f.cpu.EXPECT().UnderPressure().Return(false)

	st := f.w.Tick(context.Background())
	assert.Contains(t, st.LastError, "host unreachable")
	assert.Contains(t, f.w.lastActive, alpha.Name)
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	errCh := make(chan error, 1)

	go func() { errCh <- f.w.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return f.w.Stop(context.Background()) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	var c Config
	require.NoError(t, c.Validate())
	assert.Equal(t, models.Duration(time.Minute), c.CheckInterval)
	assert.Equal(t, models.Duration(30*time.Minute), c.IdleAfter)
	assert.InDelta(t, 6.0, c.MinAvailableMemGB, 0)
	assert.Equal(t, 1, c.MaxShutdownsPerTick)
	assert.Equal(t, models.StopSoft, c.StopMode)

	c = Config{StopMode: "suspend"}
	require.ErrorIs(t, c.Validate(), errUnknownStopMode)

	c = Config{CheckInterval: models.Duration(time.Millisecond)}
	require.ErrorIs(t, c.Validate(), errCheckIntervalTooShort)

	c = Config{BatchSize: -1}
	require.ErrorIs(t, c.Validate(), errNegativeLimit)
}

// cycleThroughFailed takes an idle VM through a failed revert and a reset.
// It runs on session-check goroutines, so it only asserts.
func cycleThroughFailed(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()

	for _, step := range [][2]models.Phase{
		{models.PhaseIdle, models.PhaseReverting},
		{models.PhaseReverting, models.PhaseFailed},
		{models.PhaseFailed, models.PhaseIdle},
	} {
		_, err := reg.Apply(name, registry.Transition{From: step[0], To: step[1]})
		assert.NoError(t, err)
	}
}

func moveToReady(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()

	path := []models.Phase{
		models.PhaseReverting,
		models.PhasePoweringOn,
		models.PhaseAwaitingIP,
		models.PhaseAwaitingReadiness,
		models.PhaseReady,
	}

	from := models.PhaseIdle
	for _, to := range path {
		_, err := reg.Apply(name, registry.Transition{
			From:   from,
			To:     to,
			Mutate: func(s *models.VMState) { s.IP = "10.0.0.9" },
		})
		require.NoError(t, err)

		from = to
	}
}
