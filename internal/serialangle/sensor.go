// Package serialangle reads lid angles from an external accelerometer
// bridge attached over a serial port. The bridge is a small microcontroller
// with one accelerometer glued to the lid and one to the base; it streams
// newline-delimited records which this package parses into angle readings
// for machines whose embedded controller exposes nothing useful.
package serialangle

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/lid.report/internal/lid"
	"github.com/banshee-data/lid.report/internal/timeutil"
)

// ErrWriteFailed reports a short write to the bridge port.
var ErrWriteFailed = errors.New("failed to write to serial port")

// BridgeStats counts what the monitor loop has seen, for the status API.
type BridgeStats struct {
	Lines         uint64    `json:"lines"`
	AngleRecords  uint64    `json:"angle_records"`
	AccelRecords  uint64    `json:"accel_records"`
	ParseErrors   uint64    `json:"parse_errors"`
	Indeterminate uint64    `json:"indeterminate"`
	Unknown       uint64    `json:"unknown"`
	LastSampleAt  time.Time `json:"last_sample_at"`
	Stale         bool      `json:"stale"`
}

// Bridge is a lid angle sensor backed by the serial accelerometer bridge.
// A monitor goroutine owns the port and keeps the most recent reading;
// ReadAngle hands that reading out as long as it is fresh.
type Bridge struct {
	port       Porter
	clock      timeutil.Clock
	staleAfter time.Duration
	name       string

	commandMu sync.Mutex

	mu         sync.Mutex
	last       lid.Observation
	haveSample bool
	stats      BridgeStats
	closing    bool
}

// NewBridge wraps an open port. staleAfter bounds how old the latest
// reading may be before ReadAngle refuses to serve it; zero or negative
// disables the check.
func NewBridge(port Porter, clock timeutil.Clock, staleAfter time.Duration) *Bridge {
	return &Bridge{
		port:       port,
		clock:      clock,
		staleAfter: staleAfter,
		name:       "serial",
	}
}

// Initialize configures the bridge firmware for streaming.
func (b *Bridge) Initialize() error {
	for _, command := range []string{
		"R=20", // report at 20Hz
		"OA",   // stream computed angle records
	} {
		if err := b.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes a command line to the bridge.
func (b *Bridge) SendCommand(command string) error {
	b.commandMu.Lock()
	defer b.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n"
	}
	n, err := b.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines from the port until the context is cancelled or the
// port closes, keeping the latest parsed angle for ReadAngle.
func (b *Bridge) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(b.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop
	// can keep watching for context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				// channel closed, port is done
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			if b.isClosing() {
				return nil
			}
			b.handleLine(line)
		}
	}
}

func (b *Bridge) isClosing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing
}

func (b *Bridge) handleLine(line string) {
	record, err := ParseLine(line)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Lines++

	switch {
	case errors.Is(err, ErrIndeterminate):
		b.stats.Indeterminate++
	case err != nil:
		b.stats.ParseErrors++
	case record.Type == RecordTypeUnknown:
		b.stats.Unknown++
	default:
		if record.Type == RecordTypeAngle {
			b.stats.AngleRecords++
		} else {
			b.stats.AccelRecords++
		}
		b.last = lid.Observation{Angle: record.Angle, At: b.clock.Now()}
		b.haveSample = true
	}
}

// ReadAngle implements lid.Sensor with the monitor's latest reading. It
// fails transient while no reading has arrived yet, or when the latest one
// has gone stale.
func (b *Bridge) ReadAngle() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.haveSample {
		return 0, fmt.Errorf("%w: no data from bridge yet", lid.ErrUnavailable)
	}
	if b.staleAfter > 0 {
		if age := b.clock.Since(b.last.At); age > b.staleAfter {
			return 0, fmt.Errorf("%w: last reading is %s old", lid.ErrUnavailable, age)
		}
	}
	return b.last.Angle, nil
}

// Name implements lid.Sensor.
func (b *Bridge) Name() string {
	return b.name
}

// Stats returns a copy of the monitor counters.
func (b *Bridge) Stats() BridgeStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := b.stats
	stats.LastSampleAt = b.last.At
	if b.staleAfter > 0 && b.haveSample {
		stats.Stale = b.clock.Since(b.last.At) > b.staleAfter
	}
	return stats
}

// Close stops the monitor and closes the port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	return b.port.Close()
}
