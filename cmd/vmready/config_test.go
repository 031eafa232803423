package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carverauto/vmready/pkg/config"
	"github.com/carverauto/vmready/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleConfigLoads(t *testing.T) {
	t.Parallel()

	var cfg Config

	require.NoError(t, config.NewConfig(nil).LoadAndValidate(context.Background(), "vmready.json", &cfg))

	assert.Equal(t, models.StrategyHybrid, cfg.Poller.Detection.Strategy)
	assert.Equal(t, 3389, cfg.Poller.Detection.RDPPort)
	assert.Equal(t, models.Duration(10*time.Minute), cfg.Orchestrator.ReadinessTimeout)
	assert.True(t, cfg.Orchestrator.RenewNetwork)
	assert.Equal(t, models.StopSoft, cfg.Idle.StopMode)
	assert.True(t, cfg.Idle.Enabled)
	assert.Equal(t, ":495", cfg.API.ListenAddr)
	assert.Equal(t, "administrator", cfg.VMware.Guest.Default.Username)
}

func TestRedactedConfigHidesPasswords(t *testing.T) {
	t.Parallel()

	var cfg Config

	require.NoError(t, config.NewConfig(nil).LoadAndValidate(context.Background(), "vmready.json", &cfg))

	doc, err := config.Redact(&cfg)
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "changeme")
	assert.Contains(t, string(raw), "administrator")
}

func TestConfigValidateNamesSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"poller":{"detection":{"strategy":"psychic"}}}`), 0o600))

	var cfg Config

	err := config.NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poller:")
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	require.NoError(t, cfg.Validate())

	require.NotNil(t, cfg.Logging)
	assert.Equal(t, models.Duration(2*time.Second), cfg.Poller.PollInterval)
	assert.Equal(t, 60, cfg.Orchestrator.IPRetries)
	assert.False(t, cfg.Idle.Enabled)
}
