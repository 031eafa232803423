package api

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/vmready/pkg/api Orchestrator

import (
	"context"
	"time"

	"github.com/carverauto/vmready/pkg/idle"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/poller"
)

// VMStore is the read side of the registry.
type VMStore interface {
	List() []models.VMState
	Get(name string) (models.VMState, error)
}

// Orchestrator runs reverts, connects and resets.
type Orchestrator interface {
	Revert(ctx context.Context, name, snapshot string) (models.VMState, error)
	Connect(ctx context.Context, name string) (models.VMState, error)
	Running(ctx context.Context, name string) (bool, error)
	Reset(ctx context.Context, name string) (models.VMState, error)
	Connection(name string) (models.ConnectionDescriptor, error)
	Snapshots(ctx context.Context, name string) ([]string, error)
	ExpectedDuration(name, op string) (time.Duration, bool)
}

// SchedulerStatus reports the poll scheduler's last tick.
type SchedulerStatus interface {
	Status() poller.Status
}

// WatchdogStatus reports the idle watchdog's last check.
type WatchdogStatus interface {
	Status() idle.Status
}
