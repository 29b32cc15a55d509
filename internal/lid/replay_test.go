package lid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/lid.report/internal/timeutil"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "angles.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func mustRead(t *testing.T, s Sensor) float64 {
	t.Helper()
	angle, err := s.ReadAngle()
	if err != nil {
		t.Fatalf("ReadAngle() error = %v", err)
	}
	return angle
}

func TestReplayPlayback(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	path := writeFixture(t, "# lid opening\n0,10\n1.0,20\n2.5,30\n")

	sensor, err := NewReplaySensor(clock, path, false)
	if err != nil {
		t.Fatalf("NewReplaySensor() error = %v", err)
	}

	if got := mustRead(t, sensor); got != 10 {
		t.Errorf("at t=0 got %f, want 10", got)
	}

	clock.Advance(500 * time.Millisecond)
	if got := mustRead(t, sensor); got != 10 {
		t.Errorf("at t=0.5s got %f, want 10", got)
	}

	clock.Advance(500 * time.Millisecond)
	if got := mustRead(t, sensor); got != 20 {
		t.Errorf("at t=1s got %f, want 20", got)
	}

	clock.Advance(2 * time.Second)
	if got := mustRead(t, sensor); got != 30 {
		t.Errorf("at t=3s got %f, want 30", got)
	}

	// Without loop the last sample holds forever.
	clock.Advance(time.Hour)
	if got := mustRead(t, sensor); got != 30 {
		t.Errorf("after fixture end got %f, want 30", got)
	}
}

func TestReplayBeforeFirstOffset(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	path := writeFixture(t, "1.0,55\n")

	sensor, err := NewReplaySensor(clock, path, false)
	if err != nil {
		t.Fatalf("NewReplaySensor() error = %v", err)
	}

	if got := mustRead(t, sensor); got != 55 {
		t.Errorf("before first offset got %f, want first sample 55", got)
	}
}

func TestReplayLoop(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	path := writeFixture(t, "0,10\n1,20\n2,20\n")

	sensor, err := NewReplaySensor(clock, path, true)
	if err != nil {
		t.Fatalf("NewReplaySensor() error = %v", err)
	}

	if got := mustRead(t, sensor); got != 10 {
		t.Errorf("at t=0 got %f, want 10", got)
	}

	clock.Advance(1500 * time.Millisecond)
	if got := mustRead(t, sensor); got != 20 {
		t.Errorf("at t=1.5s got %f, want 20", got)
	}

	clock.Advance(500 * time.Millisecond)
	if got := mustRead(t, sensor); got != 10 {
		t.Errorf("at t=2s (wrap) got %f, want 10", got)
	}

	clock.Advance(3500 * time.Millisecond)
	if got := mustRead(t, sensor); got != 20 {
		t.Errorf("at t=5.5s (wrapped 1.5s) got %f, want 20", got)
	}
}

func TestReplayScriptedFailure(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	path := writeFixture(t, "0,10\n1,ERR\n2,30\n")

	sensor, err := NewReplaySensor(clock, path, false)
	if err != nil {
		t.Fatalf("NewReplaySensor() error = %v", err)
	}

	if got := mustRead(t, sensor); got != 10 {
		t.Errorf("at t=0 got %f, want 10", got)
	}

	clock.Advance(1200 * time.Millisecond)
	if _, err := sensor.ReadAngle(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("scripted failure returned %v, want ErrUnavailable", err)
	}

	clock.Advance(1300 * time.Millisecond)
	if got := mustRead(t, sensor); got != 30 {
		t.Errorf("after failure window got %f, want 30", got)
	}
}

func TestReplayParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing comma", "0 10\n"},
		{"bad offset", "soon,10\n"},
		{"negative offset", "-1,10\n"},
		{"bad angle", "0,wide\n"},
		{"descending offsets", "2,10\n1,20\n"},
		{"empty file", ""},
		{"comments only", "# nothing here\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := timeutil.NewMockClock(time.Now())
			path := writeFixture(t, tt.content)
			if _, err := NewReplaySensor(clock, path, false); err == nil {
				t.Errorf("NewReplaySensor() accepted fixture %q", tt.content)
			}
		})
	}
}

func TestReplayMissingFile(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	if _, err := NewReplaySensor(clock, filepath.Join(t.TempDir(), "absent.csv"), false); err == nil {
		t.Error("NewReplaySensor() accepted missing file")
	}
}

func TestReplayName(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	path := writeFixture(t, "0,90\n")

	sensor, err := NewReplaySensor(clock, path, false)
	if err != nil {
		t.Fatalf("NewReplaySensor() error = %v", err)
	}
	if got := sensor.Name(); got != "replay:angles.csv" {
		t.Errorf("Name() = %q, want replay:angles.csv", got)
	}
}
