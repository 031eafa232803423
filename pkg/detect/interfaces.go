package detect

//go:generate mockgen -destination=mock_detect.go -package=detect github.com/carverauto/vmready/pkg/detect GuestExecutor,PortChecker

import (
	"context"
	"time"

	"github.com/carverauto/vmready/pkg/models"
)

// GuestCommand is a program run inside the guest with its arguments.
type GuestCommand struct {
	Program string
	Args    []string
}

// GuestExecutor runs a command in the guest and returns its combined output.
type GuestExecutor interface {
	RunInGuest(ctx context.Context, vm models.VMIdentity, cmd GuestCommand) (string, error)
}

// PortChecker dials a port from the host.
type PortChecker interface {
	TCPConnect(ctx context.Context, ip string, port int, timeout time.Duration) bool
}

// Strategy decides how ready a guest is for a remote desktop session.
// Implementations keep no state between calls.
type Strategy interface {
	Name() models.Strategy
	Check(ctx context.Context, target models.ProbeTarget) models.Readiness
}
