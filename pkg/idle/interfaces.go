package idle

//go:generate mockgen -destination=mock_idle.go -package=idle github.com/carverauto/vmready/pkg/idle Hypervisor,SessionChecker,PressureSource

import (
	"context"

	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
)

// Hypervisor lists and stops running VMs.
type Hypervisor interface {
	ListRunning(ctx context.Context) ([]string, error)
	Stop(ctx context.Context, vm models.VMIdentity, mode models.StopMode) error
}

// SessionChecker reports whether someone is connected to the guest.
type SessionChecker interface {
	HasActiveSession(ctx context.Context, vm models.VMIdentity) (bool, error)
}

// PressureSource is the CPU pressure verdict, usually the poll scheduler's.
type PressureSource interface {
	UnderPressure() bool
}

// StateStore is the part of the registry the watchdog needs.
type StateStore interface {
	List() []models.VMState
	Apply(name string, t registry.Transition) (models.VMState, error)
}
