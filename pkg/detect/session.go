package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
)

var errSessionUnknown = errors.New("could not determine remote desktop session state")

// SessionDetector tells the idle watchdog whether someone is connected.
type SessionDetector struct {
	exec   GuestExecutor
	port   int
	logger logger.Logger
}

func NewSessionDetector(exec GuestExecutor, rdpPort int, log logger.Logger) *SessionDetector {
	if rdpPort == 0 {
		rdpPort = defaultRDPPort
	}

	return &SessionDetector{exec: exec, port: rdpPort, logger: log}
}

// HasActiveSession checks established connections on the RDP port and falls
// back to quser. Console logons do not count.
func (d *SessionDetector) HasActiveSession(ctx context.Context, vm models.VMIdentity) (bool, error) {
	script := fmt.Sprintf(
		"if (Get-NetTCPConnection -LocalPort %d -State Established -ErrorAction SilentlyContinue) { 'RDP=YES' } else { 'RDP=NO' }",
		d.port)

	out, err := d.exec.RunInGuest(ctx, vm, powerShell(script))
	if err == nil {
		if v, ok := keyValue(out, "RDP"); ok {
			return strings.EqualFold(v, "YES"), nil
		}
	}

	d.logger.Debug().Err(err).Str("vm", vm.Name).Msg("Get-NetTCPConnection unavailable, trying quser")

	out, qerr := d.exec.RunInGuest(ctx, vm, GuestCommand{Program: quserPath})
	if qerr != nil {
		return false, fmt.Errorf("%w: %s: %w", errSessionUnknown, vm.Name, qerr)
	}

	return quserHasRemoteSession(out), nil
}
