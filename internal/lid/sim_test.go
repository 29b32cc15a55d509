package lid

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/lid.report/internal/timeutil"
)

func TestSimSweep(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sensor, err := NewSimSensor(clock, SimOptions{
		Profile:  SimProfileSweep,
		MinAngle: 0,
		MaxAngle: 100,
		Period:   10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSimSensor() error = %v", err)
	}

	steps := []struct {
		advance time.Duration
		want    float64
	}{
		{0, 0},                        // start of sweep
		{2500 * time.Millisecond, 50}, // quarter way up
		{2500 * time.Millisecond, 100},
		{2500 * time.Millisecond, 50}, // coming back down
		{2500 * time.Millisecond, 0},  // wrapped to next period
	}

	for _, step := range steps {
		clock.Advance(step.advance)
		got, err := sensor.ReadAngle()
		if err != nil {
			t.Fatalf("ReadAngle() error = %v", err)
		}
		if math.Abs(got-step.want) > 1e-9 {
			t.Errorf("ReadAngle() at %v = %f, want %f", clock.Now(), got, step.want)
		}
	}
}

func TestSimStatic(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	sensor, err := NewSimSensor(clock, SimOptions{
		Profile: SimProfileStatic,
		Angle:   90,
	})
	if err != nil {
		t.Fatalf("NewSimSensor() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		got, err := sensor.ReadAngle()
		if err != nil {
			t.Fatalf("ReadAngle() error = %v", err)
		}
		if got != 90 {
			t.Errorf("ReadAngle() = %f, want exactly 90 with zero jitter", got)
		}
	}
}

func TestSimStaticJitter(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	opts := SimOptions{
		Profile: SimProfileStatic,
		Angle:   90,
		Jitter:  0.5,
		Seed:    42,
	}

	sensor, err := NewSimSensor(clock, opts)
	if err != nil {
		t.Fatalf("NewSimSensor() error = %v", err)
	}

	moved := false
	var first []float64
	for i := 0; i < 10; i++ {
		got, err := sensor.ReadAngle()
		if err != nil {
			t.Fatalf("ReadAngle() error = %v", err)
		}
		if got != 90 {
			moved = true
		}
		if math.Abs(got-90) > 5 {
			t.Errorf("ReadAngle() = %f, implausibly far from 90 for 0.5 degree jitter", got)
		}
		first = append(first, got)
	}
	if !moved {
		t.Error("jittered sensor never deviated from the centre angle")
	}

	// Same seed replays the same noise.
	replayed, err := NewSimSensor(clock, opts)
	if err != nil {
		t.Fatalf("NewSimSensor() error = %v", err)
	}
	for i, want := range first {
		got, _ := replayed.ReadAngle()
		if got != want {
			t.Fatalf("seeded reading %d = %f, want %f", i, got, want)
		}
	}
}

func TestSimOptionValidation(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())

	if _, err := NewSimSensor(clock, SimOptions{Profile: "chaotic"}); err == nil {
		t.Error("NewSimSensor() accepted unknown profile")
	}
	if _, err := NewSimSensor(clock, SimOptions{MinAngle: 120, MaxAngle: 30}); err == nil {
		t.Error("NewSimSensor() accepted inverted angle range")
	}
}

func TestSimName(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	sensor, err := NewSimSensor(clock, SimOptions{Profile: SimProfileStatic, Angle: 90})
	if err != nil {
		t.Fatalf("NewSimSensor() error = %v", err)
	}
	if got := sensor.Name(); got != "sim:static" {
		t.Errorf("Name() = %q, want sim:static", got)
	}
}
