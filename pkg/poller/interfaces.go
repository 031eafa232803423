package poller

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/vmready/pkg/poller Clock,Ticker

import (
	"context"
	"time"

	"github.com/carverauto/vmready/pkg/hostload"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// StateStore is the part of the registry the scheduler reads and folds into.
type StateStore interface {
	Pending(limit int) []models.VMState
	Apply(name string, t registry.Transition) (models.VMState, error)
}

// Prober runs one readiness probe.
type Prober interface {
	Probe(ctx context.Context, target models.ProbeTarget) models.Readiness
}

// CPUSampler measures host CPU over a window.
type CPUSampler interface {
	Sample(ctx context.Context, window time.Duration) hostload.Usage
}
