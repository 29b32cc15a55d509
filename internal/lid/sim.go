package lid

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/banshee-data/lid.report/internal/timeutil"
	"github.com/banshee-data/lid.report/internal/units"
)

// Sim profiles.
const (
	SimProfileSweep  = "sweep"
	SimProfileStatic = "static"
)

// SimOptions configures a simulated sensor.
type SimOptions struct {
	Profile  string        // SimProfileSweep or SimProfileStatic
	MinAngle float64       // degrees, sweep lower bound
	MaxAngle float64       // degrees, sweep upper bound
	Period   time.Duration // time for one full open-and-close sweep
	Angle    float64       // degrees, static profile centre
	Jitter   float64       // degrees, static profile noise stddev
	Seed     int64         // 0 seeds from the clock
}

// SimSensor generates synthetic lid angles for development and demos. The
// sweep profile opens and closes the lid in a triangle wave; the static
// profile holds one angle with optional gaussian noise.
type SimSensor struct {
	opts  SimOptions
	clock timeutil.Clock
	start time.Time
	rng   *rand.Rand
}

// NewSimSensor creates a simulated sensor. Option zero values fall back to
// a 0-135 degree sweep over ten seconds.
func NewSimSensor(clock timeutil.Clock, opts SimOptions) (*SimSensor, error) {
	if opts.Profile == "" {
		opts.Profile = SimProfileSweep
	}
	if opts.Profile != SimProfileSweep && opts.Profile != SimProfileStatic {
		return nil, fmt.Errorf("unknown sim profile %q", opts.Profile)
	}
	if opts.MinAngle == 0 && opts.MaxAngle == 0 {
		opts.MaxAngle = 135
	}
	if opts.MaxAngle <= opts.MinAngle {
		return nil, fmt.Errorf("sim angle range %f..%f is empty", opts.MinAngle, opts.MaxAngle)
	}
	if opts.Period <= 0 {
		opts.Period = 10 * time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &SimSensor{
		opts:  opts,
		clock: clock,
		start: clock.Now(),
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// ReadAngle returns the simulated angle for the current clock time. It
// never fails.
func (s *SimSensor) ReadAngle() (float64, error) {
	if s.opts.Profile == SimProfileStatic {
		angle := s.opts.Angle
		if s.opts.Jitter > 0 {
			angle += s.rng.NormFloat64() * s.opts.Jitter
		}
		return units.NormalizeDegrees(angle), nil
	}

	// Triangle wave: min to max over the first half period, back down
	// over the second.
	elapsed := s.clock.Since(s.start)
	phase := elapsed % s.opts.Period
	half := s.opts.Period / 2
	span := s.opts.MaxAngle - s.opts.MinAngle

	var angle float64
	if phase < half {
		angle = s.opts.MinAngle + span*float64(phase)/float64(half)
	} else {
		angle = s.opts.MaxAngle - span*float64(phase-half)/float64(half)
	}
	return units.NormalizeDegrees(angle), nil
}

// Name identifies the active profile.
func (s *SimSensor) Name() string {
	return "sim:" + s.opts.Profile
}
