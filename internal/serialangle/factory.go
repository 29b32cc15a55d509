package serialangle

import (
	"fmt"
	"path/filepath"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/lid.report/internal/timeutil"
)

// Open opens the bridge serial port at the given path and wraps it in a
// Bridge. The caller still has to start Monitor and, usually, call
// Initialize once streaming should begin.
func Open(path string, opts PortOptions, clock timeutil.Clock, staleAfter time.Duration) (*Bridge, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	bridge := NewBridge(port, clock, staleAfter)
	bridge.name = "serial:" + filepath.Base(path)
	return bridge, nil
}
