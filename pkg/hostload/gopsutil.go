package hostload

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

//nolint:gochecknoglobals // swapped in tests
var (
	percentWithContext = cpu.PercentWithContext
	virtualMemory      = mem.VirtualMemoryWithContext
)

type gopsutilTier struct{}

func (gopsutilTier) Name() string { return "gopsutil" }

func (gopsutilTier) Sample(ctx context.Context, window time.Duration) (float64, error) {
	values, err := percentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}

	if len(values) == 0 {
		return 0, errNoSample
	}

	return values[0], nil
}

// Memory is a snapshot of host memory in bytes.
type Memory struct {
	Available uint64 `json:"available"`
	Total     uint64 `json:"total"`
}

// AvailableGB converts Available to GiB.
func (m Memory) AvailableGB() float64 {
	return float64(m.Available) / (1 << 30)
}

// ReadMemory reports host memory.
func ReadMemory(ctx context.Context) (Memory, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return Memory{}, err
	}

	return Memory{Available: vm.Available, Total: vm.Total}, nil
}
