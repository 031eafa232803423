package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionConfigDefaults(t *testing.T) {
	t.Parallel()

	var c DetectionConfig
	require.NoError(t, c.Validate())

	assert.Equal(t, StrategyHybrid, c.Strategy)
	assert.Equal(t, DefaultConcurrency, c.Concurrency)
	assert.Equal(t, 0, c.BatchSize)
	assert.Equal(t, Duration(DefaultSampleDuration), c.SampleDuration)
	assert.Equal(t, 3389, c.RDPPort)
}

func TestDetectionConfigRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DetectionConfig
	}{
		{name: "unknown strategy", cfg: DetectionConfig{Strategy: "psychic"}},
		{name: "negative concurrency", cfg: DetectionConfig{Concurrency: -1}},
		{name: "negative batch", cfg: DetectionConfig{BatchSize: -3}},
		{name: "sample too short", cfg: DetectionConfig{SampleDuration: Duration(time.Millisecond)}},
		{name: "sample too long", cfg: DetectionConfig{SampleDuration: Duration(time.Minute)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDetectionConfigFromJSON(t *testing.T) {
	t.Parallel()

	var c DetectionConfig
	require.NoError(t, json.Unmarshal([]byte(`{"strategy":"tcp","concurrency":2,"batch_size":10,"cpu_sample_duration":"1s"}`), &c))
	require.NoError(t, c.Validate())

	assert.Equal(t, StrategyTCP, c.Strategy)
	assert.Equal(t, 2, c.Concurrency)
	assert.Equal(t, 10, c.BatchSize)
	assert.Equal(t, Duration(time.Second), c.SampleDuration)
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, Duration(90*time.Second), d)

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, Duration(time.Microsecond), d)

	require.ErrorIs(t, json.Unmarshal([]byte(`"later"`), &d), errInvalidDuration)
	require.ErrorIs(t, json.Unmarshal([]byte(`[]`), &d), errInvalidDuration)
}
