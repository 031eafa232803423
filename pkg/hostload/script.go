package hostload

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	windowsCounterQuery = `(Get-Counter '\Processor(_Total)\%% Processor Time' ` +
		`-SampleInterval %d -MaxSamples 1).CounterSamples[0].CookedValue`
	scriptGrace = 5 * time.Second
)

//nolint:gochecknoglobals // compiled once
var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// commandRunner runs a program and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// scriptTier asks the OS counter tooling. Both tools take whole seconds, so
// the window is rounded up.
type scriptTier struct {
	run  commandRunner
	goos string
}

func newScriptTier() scriptTier {
	return scriptTier{run: execOutput, goos: runtime.GOOS}
}

func (t scriptTier) Name() string {
	if t.goos == "windows" {
		return "Get-Counter"
	}

	return "vmstat"
}

func (t scriptTier) Sample(ctx context.Context, window time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, window+scriptGrace)
	defer cancel()

	secs := sampleSeconds(window)

	if t.goos == "windows" {
		out, err := t.run(ctx, "powershell.exe", "-NoProfile", "-NonInteractive", "-Command",
			fmt.Sprintf(windowsCounterQuery, secs))
		if err != nil {
			return 0, err
		}

		return parseCounterValue(string(out))
	}

	out, err := t.run(ctx, "vmstat", strconv.Itoa(secs), "2")
	if err != nil {
		return 0, err
	}

	return parseVMStat(string(out))
}

// sampleSeconds rounds a window up to whole seconds, at least one.
func sampleSeconds(window time.Duration) int {
	return max(1, int(math.Ceil(window.Seconds())))
}

// parseCounterValue takes the last number printed. Some locales print a
// decimal comma, and tiny values come back in exponent form.
func parseCounterValue(out string) (float64, error) {
	if fields := strings.Fields(out); len(fields) > 0 {
		tok := strings.ReplaceAll(fields[len(fields)-1], ",", ".")
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			return v, nil
		}
	}

	matches := numberPattern.FindAllString(out, -1)
	if len(matches) == 0 {
		return 0, errNoSample
	}

	return strconv.ParseFloat(strings.ReplaceAll(matches[len(matches)-1], ",", "."), 64)
}

// parseVMStat reads the idle column of the last row. The first data row is
// the average since boot and is skipped by taking the last.
func parseVMStat(out string) (float64, error) {
	idleCol := -1

	var last []string

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if _, err := strconv.Atoi(fields[0]); err != nil {
			for i, f := range fields {
				if f == "id" {
					idleCol = i
				}
			}

			continue
		}

		last = fields
	}

	if idleCol < 0 || idleCol >= len(last) {
		return 0, errUnparseable
	}

	idle, err := strconv.ParseFloat(last[idleCol], 64)
	if err != nil {
		return 0, errUnparseable
	}

	return 100 - idle, nil
}
