//go:build !linux && !windows

package hostload

import (
	"context"
	"time"
)

type nativeTier struct{}

func (nativeTier) Name() string { return "native" }

func (nativeTier) Sample(context.Context, time.Duration) (float64, error) {
	return 0, errUnsupported
}
