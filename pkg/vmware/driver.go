/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package vmware drives VMware Workstation through vmrun: snapshots, power,
// guest IP lookup and program execution inside the guest.
package vmware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
	"golang.org/x/time/rate"
)

var errVMRun = errors.New("vmrun failed")

// commandRunner runs a binary and returns stdout and stderr combined. vmrun
// reports most errors on stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Driver is safe for concurrent use. Every vmrun invocation waits on one
// shared limiter.
type Driver struct {
	cfg     Config
	creds   CredentialStore
	limiter *rate.Limiter
	run     commandRunner
	logger  logger.Logger
}

// NewDriver expects cfg to be validated.
func NewDriver(cfg *Config, creds CredentialStore, log logger.Logger) *Driver {
	return &Driver{
		cfg:     *cfg,
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		run:     runCommand,
		logger:  log,
	}
}

// vmrun runs one vmrun -T ws command. redact hides the guest password from
// logs and errors.
func (d *Driver) vmrun(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"-T", "ws"}, args...)
	start := time.Now()

	out, err := d.run(ctx, d.cfg.VMRunPath, full...)
	text := strings.TrimSpace(string(out))

	d.logger.Debug().
		Strs("args", redactArgs(args)).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("vmrun")

	if err != nil {
		if ctx.Err() != nil {
			return text, fmt.Errorf("%w: %s: %w", errVMRun, firstArg(args), ctx.Err())
		}

		return text, fmt.Errorf("%w: %s: %s: %w", errVMRun, firstArg(args), text, err)
	}

	return text, nil
}

// RevertSnapshot restores vm to the named snapshot. The VM is powered off
// afterwards.
func (d *Driver) RevertSnapshot(ctx context.Context, vm models.VMIdentity, snapshot string) error {
	_, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "revertToSnapshot", vm.VMXPath, snapshot)

	return err
}

// PowerOn starts vm without a console window. A running VM is left alone.
func (d *Driver) PowerOn(ctx context.Context, vm models.VMIdentity) error {
	if running, err := d.IsRunning(ctx, vm); err == nil && running {
		d.logger.Debug().Str("vm", vm.Name).Msg("VM already running, skipping start")

		return nil
	}

	_, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "start", vm.VMXPath, "nogui")

	return err
}

// GetGuestIP returns the guest's IPv4 address, or "" when the tools have not
// reported one yet.
func (d *Driver) GetGuestIP(ctx context.Context, vm models.VMIdentity) (string, error) {
	out, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "getGuestIPAddress", vm.VMXPath)
	if err != nil {
		if ctx.Err() == nil && isNoIPMessage(out) {
			return "", nil
		}

		return "", err
	}

	ip := net.ParseIP(strings.TrimSpace(out)).To4()
	if ip == nil {
		return "", nil
	}

	return ip.String(), nil
}

// ListSnapshots returns snapshot names in vmrun order.
func (d *Driver) ListSnapshots(ctx context.Context, vm models.VMIdentity) ([]string, error) {
	out, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "listSnapshots", vm.VMXPath)
	if err != nil {
		return nil, err
	}

	return parseListing(out), nil
}

// ListRunning returns the .vmx paths of running VMs.
func (d *Driver) ListRunning(ctx context.Context) ([]string, error) {
	out, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "list")
	if err != nil {
		return nil, err
	}

	return parseListing(out), nil
}

// IsRunning reports whether vmrun lists vm as powered on.
func (d *Driver) IsRunning(ctx context.Context, vm models.VMIdentity) (bool, error) {
	running, err := d.ListRunning(ctx)
	if err != nil {
		return false, err
	}

	return containsPath(running, vm.VMXPath), nil
}

// Stop shuts vm down gracefully or cuts the power.
func (d *Driver) Stop(ctx context.Context, vm models.VMIdentity, mode models.StopMode) error {
	if mode != models.StopHard {
		mode = models.StopSoft
	}

	_, err := d.vmrun(ctx, time.Duration(d.cfg.CommandTimeout), "stop", vm.VMXPath, string(mode))

	return err
}

// parseListing drops the "Total ...: N" header vmrun prints before a list.
func parseListing(out string) []string {
	var items []string

	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if i == 0 && strings.HasPrefix(strings.ToLower(line), "total ") {
			continue
		}

		items = append(items, line)
	}

	return items
}

func isNoIPMessage(out string) bool {
	lower := strings.ToLower(out)

	return strings.Contains(lower, "ip address") || strings.Contains(lower, "tools are not running")
}

// SamePath compares .vmx paths the way Windows does.
func SamePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}

func containsPath(paths []string, want string) bool {
	for _, p := range paths {
		if SamePath(p, want) {
			return true
		}
	}

	return false
}

func firstArg(args []string) string {
	for i, a := range args {
		if a == "-gp" || a == "-gu" {
			continue
		}

		if i > 0 && (args[i-1] == "-gp" || args[i-1] == "-gu") {
			continue
		}

		return a
	}

	return ""
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)

	for i := range out {
		if i > 0 && out[i-1] == "-gp" {
			out[i] = "[redacted]"
		}
	}

	return out
}
