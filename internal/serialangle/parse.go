package serialangle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/lid.report/internal/units"
)

// Record types emitted by the bridge firmware.
const (
	RecordTypeAngle   = "angle"
	RecordTypeAccel   = "accel"
	RecordTypeUnknown = "unknown"
)

// ErrIndeterminate reports that gravity lies too close to the hinge axis
// for the accelerometer pair to resolve an angle. Happens when the machine
// is stood on its side.
var ErrIndeterminate = errors.New("hinge angle indeterminate")

// minTiltRatio is the smallest fraction of the gravity vector that must
// project into the hinge-normal plane for the angle to be trusted.
const minTiltRatio = 0.25

// Record is one parsed line from the bridge.
type Record struct {
	Type  string
	Angle float64 // degrees
}

// ParseLine parses a line from the bridge firmware. Two record forms carry
// angle data:
//
//	ANG,<degrees>
//	ACC,<lid_x>,<lid_y>,<lid_z>,<base_x>,<base_y>,<base_z>
//
// ANG records carry an angle the firmware computed itself. ACC records
// carry raw gravity vectors from the lid and base accelerometers, in any
// consistent unit, and the angle is derived here. Lines with any other
// prefix come back as RecordTypeUnknown with no error so callers can skip
// firmware chatter.
func ParseLine(line string) (Record, error) {
	line = strings.TrimSpace(line)
	fields := strings.Split(line, ",")

	switch fields[0] {
	case "ANG":
		if len(fields) != 2 {
			return Record{}, fmt.Errorf("ANG record needs 1 value, got %d", len(fields)-1)
		}
		angle, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("bad ANG value %q: %w", fields[1], err)
		}
		return Record{Type: RecordTypeAngle, Angle: units.NormalizeDegrees(angle)}, nil

	case "ACC":
		if len(fields) != 7 {
			return Record{}, fmt.Errorf("ACC record needs 6 values, got %d", len(fields)-1)
		}
		var v [6]float64
		for i := 0; i < 6; i++ {
			f, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
			if err != nil {
				return Record{}, fmt.Errorf("bad ACC value %q: %w", fields[i+1], err)
			}
			v[i] = f
		}
		angle, err := hingeAngle([3]float64{v[0], v[1], v[2]}, [3]float64{v[3], v[4], v[5]})
		if err != nil {
			return Record{}, err
		}
		return Record{Type: RecordTypeAccel, Angle: angle}, nil

	default:
		return Record{Type: RecordTypeUnknown}, nil
	}
}

// hingeAngle derives the lid opening angle from the gravity vectors seen
// by the lid and base accelerometers. Both chips share the hinge as their
// X axis and their frames coincide when the lid is closed, so the opening
// angle is the rotation between the two gravity directions projected into
// the Y-Z plane.
func hingeAngle(lid, base [3]float64) (float64, error) {
	lidNorm := vectorNorm(lid)
	baseNorm := vectorNorm(base)
	if lidNorm == 0 || baseNorm == 0 {
		return 0, fmt.Errorf("%w: zero gravity vector", ErrIndeterminate)
	}

	lidTilt := math.Hypot(lid[1], lid[2])
	baseTilt := math.Hypot(base[1], base[2])
	if lidTilt/lidNorm < minTiltRatio || baseTilt/baseNorm < minTiltRatio {
		return 0, fmt.Errorf("%w: gravity too close to the hinge axis", ErrIndeterminate)
	}

	lidTheta := math.Atan2(lid[2], lid[1])
	baseTheta := math.Atan2(base[2], base[1])
	return units.NormalizeDegrees(units.RadiansToDegrees(baseTheta - lidTheta)), nil
}

func vectorNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
