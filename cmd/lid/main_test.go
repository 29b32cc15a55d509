package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/lid.report/internal/config"
	"github.com/banshee-data/lid.report/internal/lid"
	"github.com/banshee-data/lid.report/internal/serialangle"
)

// A tuning file like an operator would pass with -config.
const tuningFixture string = `{
  "poll_interval": "50ms",
  "epsilon": 0.8,
  "serial_baud_rate": 9600,
  "serial_parity": "E",
  "serial_stop_bits": 2,
  "stale_after": "5s",
  "sim_profile": "static",
  "sim_angle": 112.5,
  "sim_jitter": 0.3
}`

// TestTuningConfigPipeline loads a tuning file from disk and checks the
// options handed to the serial bridge and the simulator, including the
// defaults for everything the file leaves out.
func TestTuningConfigPipeline(t *testing.T) {
	testingDir := t.TempDir()

	path := filepath.Join(testingDir, "tuning.json")
	if err := os.WriteFile(path, []byte(tuningFixture), 0o644); err != nil {
		t.Fatalf("Failed to write config fixture: %v", err)
	}

	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetPollInterval(); got != 50*time.Millisecond {
		t.Errorf("poll interval = %v, want 50ms", got)
	}
	if got := cfg.GetEpsilon(); got != 0.8 {
		t.Errorf("epsilon = %v, want 0.8", got)
	}
	if got := cfg.GetStaleAfter(); got != 5*time.Second {
		t.Errorf("stale after = %v, want 5s", got)
	}

	expectedPort := serialangle.PortOptions{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 2,
		Parity:   "E",
	}
	if diff := cmp.Diff(expectedPort, portOptionsFromConfig(cfg, cfg.GetSerialBaudRate())); diff != "" {
		t.Errorf("port options mismatch (-want +got):\n%s", diff)
	}

	expectedSim := lid.SimOptions{
		Profile:  "static",
		MinAngle: 0,
		MaxAngle: 135,
		Period:   10 * time.Second,
		Angle:    112.5,
		Jitter:   0.3,
	}
	if diff := cmp.Diff(expectedSim, simOptionsFromConfig(cfg)); diff != "" {
		t.Errorf("sim options mismatch (-want +got):\n%s", diff)
	}
}
