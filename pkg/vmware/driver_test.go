package vmware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/carverauto/vmready/pkg/detect"
	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errExit255 = errors.New("exit status 255")

type vmrunCall struct {
	name string
	args []string
}

// fakeVMRun answers vmrun subcommands from a table and records every call.
type fakeVMRun struct {
	mu        sync.Mutex
	calls     []vmrunCall
	responses map[string]fakeResponse
	guestFile []byte
}

type fakeResponse struct {
	out string
	err error
}

func (f *fakeVMRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, vmrunCall{name: name, args: append([]string(nil), args...)})

	sub := subcommand(args)
	if sub == "copyFileFromGuestToHost" {
		if err := os.WriteFile(args[len(args)-1], f.guestFile, 0o600); err != nil {
			return nil, err
		}
	}

	r := f.responses[sub]

	return []byte(r.out), r.err
}

func (f *fakeVMRun) subcommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, subcommand(c.args))
	}

	return out
}

func subcommand(args []string) string {
	for i := 2; i < len(args); i++ {
		if args[i] == "-gu" || args[i] == "-gp" {
			i++
			continue
		}

		return args[i]
	}

	return ""
}

//nolint:gochecknoglobals // test fixture
var testVM = models.VMIdentity{Name: "win11-a", VMXPath: `D:\VMs\win11-a\win11-a.vmx`}

func newTestDriver(t *testing.T, f *fakeVMRun) *Driver {
	t.Helper()

	cfg := &Config{
		VMRunPath: "vmrun",
		Guest: CredentialsConfig{
			Default: models.Credential{Username: "qa", Password: "s3cret"},
		},
		RateLimit: 1000,
	}
	require.NoError(t, cfg.Validate())

	d := NewDriver(cfg, NewStaticCredentials(cfg.Guest), logger.NewTestLogger())
	d.run = f.run

	return d
}

func TestListSnapshotsDropsHeader(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{
		"listSnapshots": {out: "Total snapshots: 2\r\nclean\r\nclean-office\r\n"},
	}}

	snaps, err := newTestDriver(t, f).ListSnapshots(context.Background(), testVM)
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "clean-office"}, snaps)

	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"-T", "ws", "listSnapshots", testVM.VMXPath}, f.calls[0].args)
}

func TestPowerOnSkipsRunningVM(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{
		"list": {out: "Total running VMs: 1\r\nd:\\vms\\WIN11-A\\win11-a.vmx\r\n"},
	}}

	require.NoError(t, newTestDriver(t, f).PowerOn(context.Background(), testVM))
	assert.Equal(t, []string{"list"}, f.subcommands())
}

func TestPowerOnStartsStoppedVM(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{
		"list": {out: "Total running VMs: 0\r\n"},
	}}

	require.NoError(t, newTestDriver(t, f).PowerOn(context.Background(), testVM))
	assert.Equal(t, []string{"list", "start"}, f.subcommands())
	assert.Equal(t, []string{"-T", "ws", "start", testVM.VMXPath, "nogui"}, f.calls[1].args)
}

func TestIsRunning(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{
		"list": {out: "Total running VMs: 1\r\nD:\\VMs\\other\\other.vmx\r\n"},
	}}

	on, err := newTestDriver(t, f).IsRunning(context.Background(), testVM)
	require.NoError(t, err)
	assert.False(t, on)

	f = &fakeVMRun{responses: map[string]fakeResponse{
		"list": {out: "Total running VMs: 1\r\nD:\\VMs\\win11-a\\win11-a.vmx\r\n"},
	}}

	on, err = newTestDriver(t, f).IsRunning(context.Background(), testVM)
	require.NoError(t, err)
	assert.True(t, on)

	f = &fakeVMRun{responses: map[string]fakeResponse{
		"list": {err: errExit255},
	}}

	_, err = newTestDriver(t, f).IsRunning(context.Background(), testVM)
	require.Error(t, err)
}

func TestGetGuestIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    fakeResponse
		want    string
		wantErr bool
	}{
		{name: "address", resp: fakeResponse{out: "192.168.0.41\r\n"}, want: "192.168.0.41"},
		{name: "tools not ready", resp: fakeResponse{out: "Error: Unable to get the IP address", err: errExit255}},
		{name: "garbage", resp: fakeResponse{out: "unknown"}},
		{name: "vmx missing", resp: fakeResponse{out: "Error: The virtual machine cannot be found", err: errExit255}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeVMRun{responses: map[string]fakeResponse{"getGuestIPAddress": tt.resp}}

			ip, err := newTestDriver(t, f).GetGuestIP(context.Background(), testVM)
			if tt.wantErr {
				require.ErrorIs(t, err, errVMRun)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestStopModes(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{}}
	d := newTestDriver(t, f)

	require.NoError(t, d.Stop(context.Background(), testVM, models.StopHard))
	require.NoError(t, d.Stop(context.Background(), testVM, ""))

	assert.Equal(t, "hard", f.calls[0].args[len(f.calls[0].args)-1])
	assert.Equal(t, "soft", f.calls[1].args[len(f.calls[1].args)-1])
}

func TestRunInGuestCapturesOutput(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{
		responses: map[string]fakeResponse{},
		guestFile: []byte("\xef\xbb\xbfSERVICE=Running\r\n"),
	}

	out, err := newTestDriver(t, f).RunInGuest(context.Background(), testVM, detect.GuestCommand{
		Program: `C:\Windows\System32\tasklist.exe`,
		Args:    []string{"/svc", "/fi", "SERVICES eq TermService"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SERVICE=Running\r\n", out)

	assert.Equal(t, []string{"runProgramInGuest", "copyFileFromGuestToHost", "deleteFileInGuest"}, f.subcommands())

	run := f.calls[0].args
	assert.Equal(t, []string{"-T", "ws", "-gu", "qa", "-gp", "s3cret", "runProgramInGuest", testVM.VMXPath, guestShell, "/c"}, run[:10])

	line := run[10]
	assert.True(t, strings.HasPrefix(line, `C:\Windows\System32\tasklist.exe /svc /fi "SERVICES eq TermService" > "C:\Windows\Temp\vmready-`), line)
	assert.True(t, strings.HasSuffix(line, `.txt" 2>&1 & exit /b 0`), line)

	guestFile := f.calls[1].args[len(f.calls[1].args)-2]
	assert.Equal(t, guestFile, f.calls[2].args[len(f.calls[2].args)-1])

	hostFile := f.calls[1].args[len(f.calls[1].args)-1]
	_, err = os.Stat(hostFile)
	assert.True(t, os.IsNotExist(err), "host temp file removed")
}

func TestRunInGuestUnknownCredential(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{}}
	vm := testVM
	vm.CredentialRef = "missing"

	_, err := newTestDriver(t, f).RunInGuest(context.Background(), vm, detect.GuestCommand{Program: "qwinsta.exe"})
	require.ErrorIs(t, err, errUnknownCredential)
	assert.Empty(t, f.calls)
}

func TestVMRunErrorHidesPassword(t *testing.T) {
	t.Parallel()

	f := &fakeVMRun{responses: map[string]fakeResponse{
		"runProgramInGuest": {out: "Error: Invalid user name or password for the guest OS", err: errExit255},
	}}

	_, err := newTestDriver(t, f).RunInGuest(context.Background(), testVM, detect.GuestCommand{Program: "qwinsta.exe"})
	require.ErrorIs(t, err, errVMRun)
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Contains(t, err.Error(), "runProgramInGuest")
	assert.Equal(t, []string{"-gu", "qa", "-gp", "[redacted]", "x"}, redactArgs([]string{"-gu", "qa", "-gp", "s3cret", "x"}))
}

func TestDecodeGuestOutputUTF16(t *testing.T) {
	t.Parallel()

	raw := []byte{0xff, 0xfe, 'O', 0, 'K', 0}
	assert.Equal(t, "OK", decodeGuestOutput(raw))
	assert.Equal(t, "plain", decodeGuestOutput([]byte("plain")))
}

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	s := NewStaticCredentials(CredentialsConfig{
		Default: models.Credential{Username: "administrator", Password: "a"},
		Named: map[string]models.Credential{
			"hwp":    {Username: "hwp-admin", Password: "b"},
			"office": {Password: "c"},
		},
	})

	c, err := s.Credential("")
	require.NoError(t, err)
	assert.Equal(t, "administrator", c.Username)

	c, err = s.Credential("hwp")
	require.NoError(t, err)
	assert.Equal(t, models.Credential{Username: "hwp-admin", Password: "b"}, c)

	c, err = s.Credential("office")
	require.NoError(t, err)
	assert.Equal(t, "administrator", c.Username)

	_, err = s.Credential("nope")
	require.ErrorIs(t, err, errUnknownCredential)
}

func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	touch(t, filepath.Join(root, "Windows Server 2025", "aaa.vmx"))
	touch(t, filepath.Join(root, "Windows Server 2025", "windowsserver2025.vmx"))
	touch(t, filepath.Join(root, "hwp", "disk", "b.vmx"))
	touch(t, filepath.Join(root, "hwp", "a.vmx"))
	touch(t, filepath.Join(root, "empty", "notes.txt"))
	touch(t, filepath.Join(root, "stray.vmx"))

	found, err := Discover(root)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Windows Server 2025": filepath.Join(root, "Windows Server 2025", "windowsserver2025.vmx"),
		"hwp":                 filepath.Join(root, "hwp", "a.vmx"),
	}, found)

	found, err = Discover(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInventoryAppliesAliasesAndCredentials(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "init", "init.vmx"))
	touch(t, filepath.Join(root, "office", "office.vmx"))

	cfg := &Config{
		VMRoot:  root,
		Aliases: map[string]string{"init": `E:\golden\init.vmx`, "extra": `E:\extra\extra.vmx`},
		Guest: CredentialsConfig{
			Named: map[string]models.Credential{"office": {Username: "o", Password: "p"}},
		},
	}
	require.NoError(t, cfg.Validate())

	ids, err := cfg.Inventory(logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, []models.VMIdentity{
		{Name: "extra", VMXPath: `E:\extra\extra.vmx`},
		{Name: "init", VMXPath: `E:\golden\init.vmx`},
		{Name: "office", VMXPath: filepath.Join(root, "office", "office.vmx"), CredentialRef: "office"},
	}, ids)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	var c Config
	require.NoError(t, c.Validate())
	assert.NotEmpty(t, c.VMRunPath)
	assert.InDelta(t, defaultRateLimit, c.RateLimit, 0.0001)
	assert.Equal(t, defaultRateBurst, c.RateBurst)
	assert.Equal(t, defaultGuestUser, c.Guest.Default.Username)

	c = Config{RateLimit: -1}
	require.ErrorIs(t, c.Validate(), errNegativeRate)

	c = Config{Aliases: map[string]string{"x": ""}}
	require.ErrorIs(t, c.Validate(), errEmptyAlias)
}
