//go:build windows

package hostload

import (
	"context"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

//nolint:gochecknoglobals // lazily bound system call
var procGetSystemTimes = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetSystemTimes")

// nativeTier reads GetSystemTimes twice. Kernel time includes idle time.
type nativeTier struct{}

func (nativeTier) Name() string { return "GetSystemTimes" }

func (nativeTier) Sample(ctx context.Context, window time.Duration) (float64, error) {
	idle0, total0, err := systemTimes()
	if err != nil {
		return 0, err
	}

	if err := sleepCtx(ctx, window); err != nil {
		return 0, err
	}

	idle1, total1, err := systemTimes()
	if err != nil {
		return 0, err
	}

	return busyPercent(idle0, total0, idle1, total1)
}

func systemTimes() (idle, total float64, err error) {
	if err := procGetSystemTimes.Find(); err != nil {
		return 0, 0, errUnsupported
	}

	var idleFT, kernelFT, userFT windows.Filetime

	r, _, callErr := procGetSystemTimes.Call(
		uintptr(unsafe.Pointer(&idleFT)),
		uintptr(unsafe.Pointer(&kernelFT)),
		uintptr(unsafe.Pointer(&userFT)),
	)
	if r == 0 {
		return 0, 0, callErr
	}

	idle = filetimeTicks(idleFT)
	total = filetimeTicks(kernelFT) + filetimeTicks(userFT)

	return idle, total, nil
}

func filetimeTicks(ft windows.Filetime) float64 {
	return float64(uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime))
}
