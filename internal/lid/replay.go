package lid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lid.report/internal/timeutil"
)

// replaySample is one line of a fixture file.
type replaySample struct {
	offset time.Duration
	angle  float64
	fail   bool
}

// ReplaySensor plays back angle readings from a fixture file against the
// clock. Each non-comment line is "<offset_seconds>,<angle>"; the angle
// field may instead be ERR to script a transient sensor failure for that
// window. Offsets must be ascending. The reading for a given instant is
// the last sample whose offset has passed.
type ReplaySensor struct {
	clock   timeutil.Clock
	start   time.Time
	samples []replaySample
	loop    bool
	total   time.Duration
	name    string
}

// NewReplaySensor loads a fixture file and starts playback at the current
// clock time. With loop set, playback wraps at the last sample's offset,
// so the final line acts as the loop end marker; repeat the previous angle
// there to hold it until the wrap.
func NewReplaySensor(clock timeutil.Clock, path string, loop bool) (*ReplaySensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var samples []replaySample
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		offsetField, angleField, found := strings.Cut(line, ",")
		if !found {
			return nil, fmt.Errorf("fixture line %d: expected <offset>,<angle>, got %q", i+1, line)
		}

		offsetSecs, err := strconv.ParseFloat(strings.TrimSpace(offsetField), 64)
		if err != nil {
			return nil, fmt.Errorf("fixture line %d: bad offset %q: %w", i+1, offsetField, err)
		}
		if offsetSecs < 0 {
			return nil, fmt.Errorf("fixture line %d: offset must be non-negative, got %f", i+1, offsetSecs)
		}

		sample := replaySample{offset: time.Duration(offsetSecs * float64(time.Second))}
		angleField = strings.TrimSpace(angleField)
		if strings.EqualFold(angleField, "ERR") {
			sample.fail = true
		} else {
			sample.angle, err = strconv.ParseFloat(angleField, 64)
			if err != nil {
				return nil, fmt.Errorf("fixture line %d: bad angle %q: %w", i+1, angleField, err)
			}
		}

		if len(samples) > 0 && sample.offset < samples[len(samples)-1].offset {
			return nil, fmt.Errorf("fixture line %d: offsets must be ascending", i+1)
		}
		samples = append(samples, sample)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("fixture file %s has no samples", path)
	}

	return &ReplaySensor{
		clock:   clock,
		start:   clock.Now(),
		samples: samples,
		loop:    loop,
		total:   samples[len(samples)-1].offset,
		name:    "replay:" + filepath.Base(path),
	}, nil
}

// ReadAngle returns the fixture value for the current clock time. Before
// the first offset it returns the first sample, so playback always has an
// initial reading.
func (r *ReplaySensor) ReadAngle() (float64, error) {
	elapsed := r.clock.Since(r.start)
	if r.loop && r.total > 0 {
		elapsed = elapsed % r.total
	}

	current := r.samples[0]
	for _, s := range r.samples {
		if s.offset > elapsed {
			break
		}
		current = s
	}

	if current.fail {
		return 0, fmt.Errorf("scripted failure at offset %s: %w", current.offset, ErrUnavailable)
	}
	return current.angle, nil
}

// Name identifies the fixture being replayed.
func (r *ReplaySensor) Name() string {
	return r.name
}
