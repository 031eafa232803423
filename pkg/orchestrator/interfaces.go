package orchestrator

//go:generate mockgen -destination=mock_orchestrator.go -package=orchestrator github.com/carverauto/vmready/pkg/orchestrator Hypervisor,Notifier,Guest

import (
	"context"

	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/carverauto/vmready/pkg/registry"
)

// Hypervisor is the VM control surface a revert or connect needs.
type Hypervisor interface {
	RevertSnapshot(ctx context.Context, vm models.VMIdentity, snapshot string) error
	PowerOn(ctx context.Context, vm models.VMIdentity) error
	IsRunning(ctx context.Context, vm models.VMIdentity) (bool, error)
	GetGuestIP(ctx context.Context, vm models.VMIdentity) (string, error)
	ListSnapshots(ctx context.Context, vm models.VMIdentity) ([]string, error)
}

// Guest runs the network renewal commands inside the VM.
type Guest interface {
	RunInGuest(ctx context.Context, vm models.VMIdentity, cmd detect.GuestCommand) (string, error)
}

// Notifier wakes the poll scheduler.
type Notifier interface {
	Notify()
}

// Credentials resolves the guest login shown in connection descriptors.
type Credentials interface {
	Credential(ref string) (models.Credential, error)
}

// Store is the registry surface the orchestrator drives.
type Store interface {
	Get(name string) (models.VMState, error)
	Apply(name string, t registry.Transition) (models.VMState, error)
	WaitFor(ctx context.Context, name string, pred func(models.VMState) bool) (models.VMState, error)
}
