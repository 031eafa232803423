//go:build linux

package hostload

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:paralleltest // swaps readProcStat
func TestNativeTierUsesProcStatDelta(t *testing.T) {
	orig := readProcStat
	t.Cleanup(func() { readProcStat = orig })

	reads := []procfs.CPUStat{
		{User: 100, System: 50, Idle: 800, Iowait: 50},
		{User: 160, System: 90, Idle: 880, Iowait: 70},
	}

	readProcStat = func() (procfs.CPUStat, error) {
		s := reads[0]
		reads = reads[1:]

		return s, nil
	}

	got, err := nativeTier{}.Sample(context.Background(), time.Millisecond)
	require.NoError(t, err)

	// total delta 200, idle delta 100
	assert.InDelta(t, 50.0, got, 0.0001)
}
