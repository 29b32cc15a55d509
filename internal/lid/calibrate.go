package lid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lid.report/internal/timeutil"
)

// CalibrationResult summarises sensor noise measured while the lid is held
// still. SuggestedEpsilon is the change threshold that would suppress the
// observed noise: three standard deviations, rounded up to a tenth of a
// degree.
type CalibrationResult struct {
	Samples          int     `json:"samples"`
	Failures         int     `json:"failures"`
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"std_dev"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	P95Jitter        float64 `json:"p95_jitter"`
	SuggestedEpsilon float64 `json:"suggested_epsilon"`
}

// Calibrate takes count readings at the given interval and reports noise
// statistics. Transient read failures are counted and skipped; the run
// fails only if no reading succeeds or the context is cancelled.
func Calibrate(ctx context.Context, clock timeutil.Clock, sensor Sensor, count int, interval time.Duration) (*CalibrationResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", count)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %s", interval)
	}

	values := make([]float64, 0, count)
	failures := 0

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for attempts := 0; attempts < count; attempts++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C():
		}

		angle, err := sensor.ReadAngle()
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				failures++
				continue
			}
			return nil, fmt.Errorf("calibration read failed: %w", err)
		}
		values = append(values, angle)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("calibration got no successful readings from %s", sensor.Name())
	}

	mean := stat.Mean(values, nil)
	stddev := 0.0
	if len(values) > 1 {
		stddev = stat.StdDev(values, nil)
	}

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - mean)
	}
	slices.Sort(deviations)

	return &CalibrationResult{
		Samples:          len(values),
		Failures:         failures,
		Mean:             mean,
		StdDev:           stddev,
		Min:              slices.Min(values),
		Max:              slices.Max(values),
		P95Jitter:        stat.Quantile(0.95, stat.Empirical, deviations, nil),
		SuggestedEpsilon: suggestEpsilon(stddev),
	}, nil
}

// suggestEpsilon rounds three standard deviations up to a tenth of a
// degree. A noise-free sensor keeps the exact comparison.
func suggestEpsilon(stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return math.Ceil(stddev*3*10) / 10
}
