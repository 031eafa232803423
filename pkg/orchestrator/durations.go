package orchestrator

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carverauto/vmready/pkg/logger"
)

const sampleLimit = 10

// Duration keys, recorded per VM as "<vm>_<op>".
const (
	// OpRevert runs from a revert request to the readiness handoff.
	OpRevert = "revert"
	// OpConnect runs from a revert's readiness handoff to ready.
	OpConnect = "connect"
	// OpConnectWarm and OpConnectCold time a connect request to ready, for a
	// VM that was already running and one that had to boot.
	OpConnectWarm = "connect_warm"
	OpConnectCold = "connect_cold"
)

// Ops lists every operation ExpectedDuration knows.
func Ops() []string {
	return []string{OpRevert, OpConnect, OpConnectWarm, OpConnectCold}
}

// Durations keeps the last few timings per "<vm>_<op>" key.
type Durations struct {
	mu      sync.Mutex
	path    string
	samples map[string][]float64
	logger  logger.Logger
}

// NewDurations loads samples from path when it exists. An empty path keeps
// everything in memory.
func NewDurations(path string, log logger.Logger) (*Durations, error) {
	d := &Durations{
		path:    path,
		samples: make(map[string][]float64),
		logger:  log,
	}

	if path == "" {
		return d, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d, nil
	}

	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, &d.samples); err != nil {
		return nil, err
	}

	// A file holding "null" decodes to a nil map.
	if d.samples == nil {
		d.samples = make(map[string][]float64)
	}

	return d, nil
}

func durationKey(vm, op string) string {
	return vm + "_" + op
}

// Record appends a sample, rounded to a tenth of a second.
func (d *Durations) Record(vm, op string, took time.Duration) {
	key := durationKey(vm, op)

	d.mu.Lock()
	defer d.mu.Unlock()

	s := append(d.samples[key], math.Round(took.Seconds()*10)/10)
	if len(s) > sampleLimit {
		s = s[len(s)-sampleLimit:]
	}

	d.samples[key] = s

	if d.path == "" {
		return
	}

	snapshot, err := json.Marshal(d.samples)
	if err == nil {
		err = writeFileAtomic(d.path, snapshot)
	}

	if err != nil {
		d.logger.Warn().Err(err).Str("path", d.path).Msg("Failed to persist duration samples")
	}
}

// Average returns the mean of the kept samples.
func (d *Durations) Average(vm, op string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.samples[durationKey(vm, op)]
	if len(s) == 0 {
		return 0, false
	}

	var sum float64
	for _, v := range s {
		sum += v
	}

	return time.Duration(sum / float64(len(s)) * float64(time.Second)), true
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".durations-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
