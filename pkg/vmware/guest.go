package vmware

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

const (
	guestShell   = `C:\Windows\System32\cmd.exe`
	guestTempDir = `C:\Windows\Temp`
)

// RunInGuest runs cmd through cmd.exe with output redirected to a temp file
// in the guest, then copies that file back. runProgramInGuest never returns
// guest stdout itself. The guest command's exit code is ignored; callers read
// success from the output.
func (d *Driver) RunInGuest(ctx context.Context, vm models.VMIdentity, cmd detect.GuestCommand) (string, error) {
	cred, err := d.creds.Credential(vm.CredentialRef)
	if err != nil {
		return "", err
	}

	timeout := time.Duration(d.cfg.GuestTimeout)
	guestFile := fmt.Sprintf(`%s\vmready-%s.txt`, guestTempDir, uuid.NewString())
	auth := []string{"-gu", cred.Username, "-gp", cred.Password}

	line := fmt.Sprintf(`%s > "%s" 2>&1 & exit /b 0`, commandLine(cmd), guestFile)

	args := append(append([]string{}, auth...), "runProgramInGuest", vm.VMXPath, guestShell, "/c", line)
	if _, err := d.vmrun(ctx, timeout, args...); err != nil {
		return "", err
	}

	defer d.deleteGuestFile(vm, auth, guestFile)

	hostFile, err := os.CreateTemp("", "vmready-*.txt")
	if err != nil {
		return "", err
	}

	hostPath := hostFile.Name()
	_ = hostFile.Close()

	defer func() { _ = os.Remove(hostPath) }()

	args = append(append([]string{}, auth...), "copyFileFromGuestToHost", vm.VMXPath, guestFile, hostPath)
	if _, err := d.vmrun(ctx, timeout, args...); err != nil {
		return "", err
	}

	raw, err := os.ReadFile(hostPath)
	if err != nil {
		return "", err
	}

	return decodeGuestOutput(raw), nil
}

// deleteGuestFile runs on its own context so a canceled probe still cleans up.
func (d *Driver) deleteGuestFile(vm models.VMIdentity, auth []string, guestFile string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(d.cfg.GuestTimeout))
	defer cancel()

	args := append(append([]string{}, auth...), "deleteFileInGuest", vm.VMXPath, guestFile)
	if _, err := d.vmrun(ctx, time.Duration(d.cfg.GuestTimeout), args...); err != nil {
		d.logger.Warn().Err(err).Str("vm", vm.Name).Str("file", guestFile).Msg("Failed to delete guest temp file")
	}
}

// commandLine quotes arguments holding spaces or cmd.exe metacharacters.
func commandLine(cmd detect.GuestCommand) string {
	parts := make([]string, 0, len(cmd.Args)+1)
	parts = append(parts, quoteArg(cmd.Program))

	for _, a := range cmd.Args {
		parts = append(parts, quoteArg(a))
	}

	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return `""`
	}

	if !strings.ContainsAny(s, " \t&|<>^()") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// decodeGuestOutput handles UTF-16 files some guest tools write when
// redirected and strips a UTF-8 BOM.
func decodeGuestOutput(raw []byte) string {
	if bytes.HasPrefix(raw, []byte{0xff, 0xfe}) {
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
	}

	return string(bytes.TrimPrefix(raw, []byte{0xef, 0xbb, 0xbf}))
}
