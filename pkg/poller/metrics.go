package poller

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName          = "vmready.poller"
	metricTicks        = "vmready_poller_ticks_total"
	metricProbeLatency = "vmready_probe_duration_seconds"
	metricProbeResults = "vmready_probe_results_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	tickCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeHistogram metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	resultCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	ticks, err := meter.Int64Counter(
		metricTicks,
		metric.WithDescription("Scheduler ticks, by whether the host was under CPU pressure"),
	)
	if err != nil {
		otel.Handle(err)
	}
	tickCounter = ticks

	hist, err := meter.Float64Histogram(
		metricProbeLatency,
		metric.WithDescription("Duration of a single readiness probe"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	probeHistogram = hist

	results, err := meter.Int64Counter(
		metricProbeResults,
		metric.WithDescription("Readiness probe outcomes"),
	)
	if err != nil {
		otel.Handle(err)
	}
	resultCounter = results
}

func recordTick(ctx context.Context, pressured bool) {
	meterOnce.Do(initMeter)
	if tickCounter == nil {
		return
	}

	tickCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("pressure", pressured)))
}

func recordProbe(ctx context.Context, d time.Duration, readiness string, discarded bool) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("readiness", readiness))

	if probeHistogram != nil {
		probeHistogram.Record(ctx, d.Seconds(), attrs)
	}

	if resultCounter != nil {
		resultCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("readiness", readiness),
			attribute.Bool("discarded", discarded),
		))
	}
}
