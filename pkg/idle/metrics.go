package idle

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName       = "vmready.idle"
	metricShutdowns = "vmready_idle_shutdowns_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	shutdownCounter metric.Int64Counter
)

func initMeter() {
	counter, err := otel.Meter(meterName).Int64Counter(
		metricShutdowns,
		metric.WithDescription("Idle VMs stopped to relieve host pressure"),
	)
	if err != nil {
		otel.Handle(err)
	}

	shutdownCounter = counter
}

func recordShutdown(ctx context.Context, mode string, ok bool) {
	meterOnce.Do(initMeter)
	if shutdownCounter == nil {
		return
	}

	shutdownCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("ok", ok),
	))
}
