// Package report implements the angle reporter loop: poll the lid sensor
// at a fixed cadence, deliver a reading whenever the angle changes, and
// redeliver the latest reading on a heartbeat so receivers can tell a
// still lid from a dead feed.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lid.report/internal/lid"
	"github.com/banshee-data/lid.report/internal/monitoring"
	"github.com/banshee-data/lid.report/internal/timeutil"
)

// Sender delivers one angle value to the receiver.
type Sender interface {
	Send(angle float64) error
}

// Reasons a reading was delivered.
const (
	ReasonInitial   = "initial"
	ReasonChange    = "change"
	ReasonHeartbeat = "heartbeat"
)

// Event is one delivery, published to stream subscribers.
type Event struct {
	Angle  float64   `json:"angle"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// Options tune the reporter loop.
type Options struct {
	// PollInterval is the sensor sampling cadence. Defaults to 100ms.
	PollInterval time.Duration

	// Heartbeat is the longest the loop lets the receiver go without a
	// message while the angle holds still. Zero disables resends.
	Heartbeat time.Duration

	// Epsilon is the change threshold in degrees, compared against the
	// last delivered value. Zero means any difference counts.
	Epsilon float64

	// Debug enables per-cycle decision traces.
	Debug bool
}

// Snapshot is the reporter state served by the status API.
type Snapshot struct {
	Session          string           `json:"session"`
	Sensor           string           `json:"sensor"`
	StartedAt        time.Time        `json:"started_at"`
	UptimeSeconds    float64          `json:"uptime_seconds"`
	PollInterval     string           `json:"poll_interval"`
	HeartbeatSeconds float64          `json:"heartbeat_seconds"`
	Epsilon          float64          `json:"epsilon"`
	LastObserved     *lid.Observation `json:"last_observed,omitempty"`
	LastSent         *lid.Observation `json:"last_sent,omitempty"`
	Sends            uint64           `json:"sends"`
	Changes          uint64           `json:"changes"`
	Heartbeats       uint64           `json:"heartbeats"`
	ReadFailures     uint64           `json:"read_failures"`
	LastReadError    string           `json:"last_read_error,omitempty"`
}

// Reporter runs the poll loop against one sensor and one sender.
type Reporter struct {
	sensor  lid.Sensor
	sender  Sender
	clock   timeutil.Clock
	opts    Options
	session string

	mu           sync.Mutex
	started      time.Time
	lastObserved *lid.Observation
	lastSent     *lid.Observation
	sends        uint64
	changes      uint64
	heartbeats   uint64
	readFailures uint64
	lastReadErr  string
	subscribers  map[string]chan Event
}

// NewReporter wires a reporter. A zero or negative poll interval falls
// back to the default cadence.
func NewReporter(sensor lid.Sensor, sender Sender, clock timeutil.Clock, opts Options) *Reporter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return &Reporter{
		sensor:      sensor,
		sender:      sender,
		clock:       clock,
		opts:        opts,
		session:     uuid.NewString(),
		started:     clock.Now(),
		subscribers: make(map[string]chan Event),
	}
}

// Session returns the identifier for this reporter run.
func (r *Reporter) Session() string {
	return r.session
}

// Run polls until the context is cancelled or delivery fails. The first
// cycle runs immediately so the receiver learns the lid position without
// waiting out a poll interval; after that, cycles follow the ticker.
// Delivery failures are fatal and come back as the error; cancellation
// comes back as the context's error.
func (r *Reporter) Run(ctx context.Context) error {
	if err := r.step(); err != nil {
		return err
	}

	ticker := r.clock.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := r.step(); err != nil {
				return err
			}
		}
	}
}

// step runs one poll cycle: read the sensor, decide whether the reading
// must go out, and deliver it.
func (r *Reporter) step() error {
	angle, err := r.sensor.ReadAngle()
	if err != nil {
		if errors.Is(err, lid.ErrUnavailable) {
			// Transient: skip this cycle. The heartbeat stays anchored
			// to the last delivery, so a flaky sensor does not silence
			// the feed.
			r.mu.Lock()
			r.readFailures++
			r.lastReadErr = err.Error()
			r.mu.Unlock()
			if r.opts.Debug {
				monitoring.Logf("sensor read failed, skipping cycle: %v", err)
			}
			return nil
		}
		return fmt.Errorf("sensor failed: %w", err)
	}

	now := r.clock.Now()
	observation := lid.Observation{Angle: angle, At: now}

	r.mu.Lock()
	r.lastObserved = &observation
	lastSent := r.lastSent
	r.mu.Unlock()

	var reason string
	switch {
	case lastSent == nil:
		reason = ReasonInitial
	case r.changed(angle, lastSent.Angle):
		reason = ReasonChange
	case r.opts.Heartbeat > 0 && now.Sub(lastSent.At) >= r.opts.Heartbeat:
		reason = ReasonHeartbeat
	default:
		if r.opts.Debug {
			monitoring.Logf("angle %.2f unchanged, nothing to send", angle)
		}
		return nil
	}

	return r.deliver(observation, reason)
}

// changed reports whether angle differs enough from the last delivered
// value to warrant a send.
func (r *Reporter) changed(angle, sent float64) bool {
	if r.opts.Epsilon <= 0 {
		return angle != sent
	}
	return math.Abs(angle-sent) > r.opts.Epsilon
}

// deliver sends the observation and records it as the new anchor for both
// change comparison and heartbeat timing. Send failures propagate up and
// stop the loop: a dead receiver target should kill the process, not rot
// quietly.
func (r *Reporter) deliver(observation lid.Observation, reason string) error {
	if err := r.sender.Send(observation.Angle); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	event := Event{Angle: observation.Angle, At: observation.At, Reason: reason}

	r.mu.Lock()
	r.lastSent = &observation
	r.sends++
	switch reason {
	case ReasonChange:
		r.changes++
	case ReasonHeartbeat:
		r.heartbeats++
	}
	// Fanout happens under the lock so Unsubscribe cannot close a channel
	// mid-send. Sends are non-blocking; a slow subscriber drops events
	// rather than stalling the loop.
	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	r.mu.Unlock()

	if r.opts.Debug {
		monitoring.Logf("sent angle %.2f (%s)", observation.Angle, reason)
	}
	return nil
}

// Subscribe registers a channel that receives every delivery. The returned
// ID identifies the subscription for Unsubscribe.
func (r *Reporter) Subscribe() (string, chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 16)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Reporter) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// Snapshot returns a copy of the reporter state.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Session:          r.session,
		Sensor:           r.sensor.Name(),
		StartedAt:        r.started,
		UptimeSeconds:    r.clock.Since(r.started).Seconds(),
		PollInterval:     r.opts.PollInterval.String(),
		HeartbeatSeconds: r.opts.Heartbeat.Seconds(),
		Epsilon:          r.opts.Epsilon,
		LastObserved:     r.lastObserved,
		LastSent:         r.lastSent,
		Sends:            r.sends,
		Changes:          r.changes,
		Heartbeats:       r.heartbeats,
		ReadFailures:     r.readFailures,
		LastReadError:    r.lastReadErr,
	}
}
