package hostload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTierDown = errors.New("tier down")

type fakeTier struct {
	name  string
	value float64
	err   error
	calls int
}

func (f *fakeTier) Name() string { return f.name }

func (f *fakeTier) Sample(context.Context, time.Duration) (float64, error) {
	f.calls++
	return f.value, f.err
}

func TestSamplerFirstTierWins(t *testing.T) {
	t.Parallel()

	native := &fakeTier{name: "native", value: 42}
	script := &fakeTier{name: "script", value: 99}

	u := NewSampler(logger.NewTestLogger(), native, script).Sample(context.Background(), time.Millisecond)

	assert.Equal(t, Usage{Percent: 42, Known: true}, u)
	assert.Equal(t, 0, script.calls)
}

func TestSamplerFallsThroughInOrder(t *testing.T) {
	t.Parallel()

	native := &fakeTier{name: "native", err: errTierDown}
	script := &fakeTier{name: "script", err: errTierDown}
	lib := &fakeTier{name: "gopsutil", value: 12.5}

	u := NewSampler(logger.NewTestLogger(), native, script, lib).Sample(context.Background(), time.Millisecond)

	assert.Equal(t, Usage{Percent: 12.5, Known: true}, u)
	assert.Equal(t, 1, native.calls)
	assert.Equal(t, 1, script.calls)
	assert.Equal(t, 1, lib.calls)
}

func TestSamplerAllTiersFailIsUnknown(t *testing.T) {
	t.Parallel()

	u := NewSampler(logger.NewTestLogger(),
		&fakeTier{name: "a", err: errTierDown},
		&fakeTier{name: "b", err: errTierDown},
		&fakeTier{name: "c", err: errTierDown},
	).Sample(context.Background(), time.Millisecond)

	assert.Equal(t, Unknown, u)
	assert.False(t, u.Known)
}

func TestSamplerSkipsOutOfRange(t *testing.T) {
	t.Parallel()

	bogus := &fakeTier{name: "bogus", value: 180}
	good := &fakeTier{name: "good", value: 70}

	u := NewSampler(logger.NewTestLogger(), bogus, good).Sample(context.Background(), time.Millisecond)
	assert.Equal(t, Usage{Percent: 70, Known: true}, u)
}

func TestSamplerCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tier := &fakeTier{name: "a", value: 10}

	assert.Equal(t, Unknown, NewSampler(logger.NewTestLogger(), tier).Sample(ctx, time.Millisecond))
	assert.Equal(t, 0, tier.calls)
}

func TestBusyPercent(t *testing.T) {
	t.Parallel()

	got, err := busyPercent(100, 200, 150, 400)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, got, 0.001)

	_, err = busyPercent(100, 200, 100, 200)
	require.ErrorIs(t, err, errCounterReset)
}

func TestParseCounterValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "37.123\r\n", want: 37.123},
		{in: "12,5\r\n", want: 12.5},
		{in: "\r\n 3 \r\n", want: 3},
		{in: "1.2E-05\r\n", want: 0.000012},
		{in: "1,2E-05\r\n", want: 0.000012},
		{in: "Value: 42.5%", want: 42.5},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseCounterValue(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}

		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 0.0001)
	}
}

const vmstatOutput = `procs -----------memory---------- ---swap-- -----io---- -system-- ------cpu-----
 r  b   swpd   free   buff  cache   si   so    bi    bo   in   cs us sy id wa st
 1  0      0 812340  90412 4120188    0    0     5    12  101  202  3  1 95  1  0
 2  0      0 811900  90412 4120200    0    0     0     0  310  540 20  8 70  2  0
`

func TestParseVMStat(t *testing.T) {
	t.Parallel()

	got, err := parseVMStat(vmstatOutput)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, got, 0.0001)

	_, err = parseVMStat("garbage")
	require.ErrorIs(t, err, errUnparseable)
}

func TestScriptTierWindows(t *testing.T) {
	t.Parallel()

	var (
		gotName string
		gotArgs []string
	)

	tier := scriptTier{
		goos: "windows",
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotName = name
			gotArgs = args

			return []byte("64.25\r\n"), nil
		},
	}

	got, err := tier.Sample(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, 64.25, got, 0.0001)
	assert.Equal(t, "powershell.exe", gotName)
	assert.Equal(t, "Get-Counter", tier.Name())
	require.NotEmpty(t, gotArgs)
	assert.Contains(t, gotArgs[len(gotArgs)-1], `\% Processor Time'`)
	assert.Contains(t, gotArgs[len(gotArgs)-1], "-SampleInterval 1 ")

	_, err = tier.Sample(context.Background(), 2500*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, gotArgs[len(gotArgs)-1], "-SampleInterval 3 ")
}

func TestScriptTierUnixUsesWindow(t *testing.T) {
	t.Parallel()

	var gotArgs []string

	tier := scriptTier{
		goos: "linux",
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "vmstat", name)
			gotArgs = args

			return []byte(vmstatOutput), nil
		},
	}

	got, err := tier.Sample(context.Background(), 3*time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, got, 0.0001)
	assert.Equal(t, []string{"3", "2"}, gotArgs)
}

func TestSampleSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, sampleSeconds(0))
	assert.Equal(t, 1, sampleSeconds(time.Millisecond))
	assert.Equal(t, 1, sampleSeconds(time.Second))
	assert.Equal(t, 2, sampleSeconds(1001*time.Millisecond))
	assert.Equal(t, 5, sampleSeconds(5*time.Second))
}

func TestScriptTierUnixError(t *testing.T) {
	t.Parallel()

	tier := scriptTier{
		goos: "linux",
		run: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errTierDown
		},
	}

	_, err := tier.Sample(context.Background(), time.Millisecond)
	require.ErrorIs(t, err, errTierDown)
	assert.Equal(t, "vmstat", tier.Name())
}

//nolint:paralleltest // swaps package-level hooks
func TestGopsutilTierAndMemory(t *testing.T) {
	origPercent, origMem := percentWithContext, virtualMemory

	t.Cleanup(func() {
		percentWithContext, virtualMemory = origPercent, origMem
	})

	percentWithContext = func(context.Context, time.Duration, bool) ([]float64, error) {
		return []float64{18}, nil
	}
	virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Available: 6 << 30, Total: 32 << 30}, nil
	}

	got, err := gopsutilTier{}.Sample(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, 18.0, got, 0.0001)

	m, err := ReadMemory(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 6.0, m.AvailableGB(), 0.0001)

	percentWithContext = func(context.Context, time.Duration, bool) ([]float64, error) {
		return nil, nil
	}

	_, err = gopsutilTier{}.Sample(context.Background(), time.Millisecond)
	require.ErrorIs(t, err, errNoSample)
}

func TestPressureGauge(t *testing.T) {
	t.Parallel()

	g := NewPressureGauge(PressureConfig{ThresholdPct: 95, ConsecutiveTicks: 3})

	assert.False(t, g.Observe(Usage{Percent: 96, Known: true}))
	assert.False(t, g.Observe(Usage{Percent: 94.95, Known: true}), "rounds up to 95.0")
	assert.True(t, g.Observe(Usage{Percent: 99, Known: true}))
	assert.Equal(t, 3, g.Streak())

	assert.False(t, g.Observe(Unknown), "unknown is no pressure")
	assert.Equal(t, 0, g.Streak())

	assert.False(t, g.Observe(Usage{Percent: 97, Known: true}))
	assert.False(t, g.Observe(Usage{Percent: 94.94, Known: true}))
	assert.Equal(t, 0, g.Streak())
}

func TestPressureConfigDefaults(t *testing.T) {
	t.Parallel()

	var c PressureConfig
	require.NoError(t, c.Validate())
	assert.InDelta(t, DefaultCPUThreshold, c.ThresholdPct, 0.0001)
	assert.Equal(t, DefaultConsecutiveTicks, c.ConsecutiveTicks)
}
