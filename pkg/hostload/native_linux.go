//go:build linux

package hostload

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
)

//nolint:gochecknoglobals // swapped in tests
var readProcStat = func() (procfs.CPUStat, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procfs.CPUStat{}, err
	}

	stat, err := fs.Stat()
	if err != nil {
		return procfs.CPUStat{}, err
	}

	return stat.CPUTotal, nil
}

// nativeTier reads the aggregate cpu line of /proc/stat twice.
type nativeTier struct{}

func (nativeTier) Name() string { return "procfs" }

func (nativeTier) Sample(ctx context.Context, window time.Duration) (float64, error) {
	first, err := readProcStat()
	if err != nil {
		return 0, err
	}

	if err := sleepCtx(ctx, window); err != nil {
		return 0, err
	}

	second, err := readProcStat()
	if err != nil {
		return 0, err
	}

	idle0, total0 := splitCPUStat(first)
	idle1, total1 := splitCPUStat(second)

	return busyPercent(idle0, total0, idle1, total1)
}

// splitCPUStat returns idle and total seconds. Guest time is already part of
// user time in /proc/stat and is not added again.
func splitCPUStat(s procfs.CPUStat) (idle, total float64) {
	idle = s.Idle + s.Iowait
	total = s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal

	return idle, total
}
