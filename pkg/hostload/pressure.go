package hostload

import (
	"math"
	"sync"
)

const (
	DefaultCPUThreshold     = 95.0
	DefaultConsecutiveTicks = 3
)

// PressureConfig tunes when sustained CPU load counts as pressure.
type PressureConfig struct {
	ThresholdPct     float64 `json:"cpu_pressure_threshold_pct"`
	ConsecutiveTicks int     `json:"cpu_consecutive_ticks"`
}

func (c *PressureConfig) Validate() error {
	if c.ThresholdPct <= 0 || c.ThresholdPct > 100 {
		c.ThresholdPct = DefaultCPUThreshold
	}

	if c.ConsecutiveTicks < 1 {
		c.ConsecutiveTicks = DefaultConsecutiveTicks
	}

	return nil
}

// PressureGauge counts consecutive readings at or above the threshold.
// Readings are rounded to one decimal first, so 94.96 counts against 95.
// An Unknown reading resets the count.
type PressureGauge struct {
	mu     sync.Mutex
	cfg    PressureConfig
	streak int
}

func NewPressureGauge(cfg PressureConfig) *PressureGauge {
	_ = cfg.Validate()

	return &PressureGauge{cfg: cfg}
}

// Observe records one reading and reports whether the host is under pressure.
func (g *PressureGauge) Observe(u Usage) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if u.Known && math.Round(u.Percent*10)/10 >= g.cfg.ThresholdPct {
		g.streak++
	} else {
		g.streak = 0
	}

	return g.streak >= g.cfg.ConsecutiveTicks
}

// Streak is the current number of consecutive readings over the threshold.
func (g *PressureGauge) Streak() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.streak
}
