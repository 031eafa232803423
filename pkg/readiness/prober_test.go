package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type countingStrategy struct {
	result models.Readiness
	calls  int
}

func (*countingStrategy) Name() models.Strategy { return models.StrategyFast }

func (s *countingStrategy) Check(context.Context, models.ProbeTarget) models.Readiness {
	s.calls++
	return s.result
}

//nolint:gochecknoglobals // test fixture
var target = models.ProbeTarget{VM: models.VMIdentity{Name: "win11-a"}, IP: "192.168.0.41"}

func TestProbeUnreachableSkipsStrategy(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pinger := NewMockPinger(ctrl)
	pinger.EXPECT().Ping(gomock.Any(), target.IP, DefaultPingTimeout).Return(false)

	strategy := &countingStrategy{result: models.ReadinessReady}

	got := NewProber(pinger, strategy, 0, logger.NewTestLogger()).Probe(context.Background(), target)

	assert.Equal(t, models.ReadinessUnreachable, got)
	assert.Equal(t, 0, strategy.calls)
}

func TestProbeEmptyIP(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pinger := NewMockPinger(ctrl)
	pinger.EXPECT().Ping(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	strategy := &countingStrategy{result: models.ReadinessReady}
	noIP := models.ProbeTarget{VM: target.VM}

	assert.Equal(t, models.ReadinessUnreachable, NewProber(pinger, strategy, 0, logger.NewTestLogger()).Probe(context.Background(), noIP))
	assert.Equal(t, 0, strategy.calls)
}

func TestProbeDelegatesToStrategy(t *testing.T) {
	t.Parallel()

	for _, want := range []models.Readiness{
		models.ReadinessReady, models.ReadinessNotReady, models.ReadinessLikelyReady, models.ReadinessUnknown,
	} {
		ctrl := gomock.NewController(t)
		pinger := NewMockPinger(ctrl)
		pinger.EXPECT().Ping(gomock.Any(), target.IP, gomock.Any()).Return(true)

		strategy := &countingStrategy{result: want}
		p := NewProber(pinger, strategy, 0, logger.NewTestLogger())

		assert.Equal(t, want, p.Probe(context.Background(), target))
		assert.Equal(t, 1, strategy.calls)
		assert.Equal(t, models.StrategyFast, p.Strategy())
	}
}

func TestProbeCanceledAfterPing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	ctrl := gomock.NewController(t)
	pinger := NewMockPinger(ctrl)
	pinger.EXPECT().Ping(gomock.Any(), target.IP, gomock.Any()).DoAndReturn(
		func(context.Context, string, time.Duration) bool {
			cancel()
			return true
		})

	strategy := &countingStrategy{result: models.ReadinessReady}

	assert.Equal(t, models.ReadinessUnknown, NewProber(pinger, strategy, 0, logger.NewTestLogger()).Probe(ctx, target))
	assert.Equal(t, 0, strategy.calls)
}
