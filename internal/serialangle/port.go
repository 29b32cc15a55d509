package serialangle

import (
	"io"
)

// Porter defines the minimal interface needed for the bridge serial port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}
