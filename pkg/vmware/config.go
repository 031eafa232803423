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

package vmware

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/carverauto/vmready/pkg/models"
)

const (
	windowsVMRunPath = `C:\Program Files (x86)\VMware\VMware Workstation\vmrun.exe`
	windowsVMRoot    = `C:\VMware`

	defaultCommandTimeout = 2 * time.Minute
	defaultGuestTimeout   = time.Minute
	defaultRateLimit      = 5.0
	defaultRateBurst      = 5
	defaultGuestUser      = "administrator"
)

var (
	errNegativeRate = errors.New("vmrun rate limit must not be negative")
	errEmptyAlias   = errors.New("alias needs a name and a .vmx path")
)

// Config describes where vmrun and the VMs live and how to log in to guests.
type Config struct {
	VMRunPath string `json:"vmrun_path"`
	VMRoot    string `json:"vm_root"`
	// Aliases map a VM name to a .vmx path and win over discovery.
	Aliases map[string]string `json:"aliases"`

	Guest CredentialsConfig `json:"guest"`

	CommandTimeout models.Duration `json:"command_timeout"`
	GuestTimeout   models.Duration `json:"guest_timeout"`

	// RateLimit is vmrun invocations per second across the whole process.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// CredentialsConfig holds the default guest login and per-VM overrides
// keyed by VM name.
type CredentialsConfig struct {
	Default models.Credential            `json:"default"`
	Named   map[string]models.Credential `json:"named"`
}

// Validate fills platform defaults.
func (c *Config) Validate() error {
	if c.VMRunPath == "" {
		c.VMRunPath = "vmrun"
		if runtime.GOOS == "windows" {
			c.VMRunPath = windowsVMRunPath
		}
	}

	if c.VMRoot == "" && runtime.GOOS == "windows" {
		c.VMRoot = windowsVMRoot
	}

	for name, path := range c.Aliases {
		if name == "" || path == "" {
			return fmt.Errorf("%w: %q=%q", errEmptyAlias, name, path)
		}
	}

	if c.CommandTimeout == 0 {
		c.CommandTimeout = models.Duration(defaultCommandTimeout)
	}

	if c.GuestTimeout == 0 {
		c.GuestTimeout = models.Duration(defaultGuestTimeout)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("%w: %v", errNegativeRate, c.RateLimit)
	}

	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}

	if c.RateBurst <= 0 {
		c.RateBurst = defaultRateBurst
	}

	if c.Guest.Default.Username == "" {
		c.Guest.Default.Username = defaultGuestUser
	}

	return nil
}
