// Package lid provides lid angle sensor backends. A backend reports the
// hinge opening angle of a laptop lid in degrees, where 0 is closed and
// larger values are more open. Backends exist for the kernel IIO device
// exposed on ChromeOS-derived hardware, for an external accelerometer
// bridge attached over serial, and for simulated and replayed data used
// in development.
package lid

import (
	"errors"
	"time"
)

// ErrUnavailable reports that a backend could not produce a reading this
// cycle. Callers treat it as transient and keep polling.
var ErrUnavailable = errors.New("lid sensor unavailable")

// Observation is a single angle reading and the time it was taken.
type Observation struct {
	Angle float64   `json:"angle"`
	At    time.Time `json:"at"`
}

// Sensor produces lid angle readings in degrees.
type Sensor interface {
	// ReadAngle returns the current lid angle. A read that fails with
	// ErrUnavailable (or an error wrapping it) is transient; any other
	// error means the backend is gone for good.
	ReadAngle() (float64, error)

	// Name identifies the backend for logs and the status API.
	Name() string
}
