// Package network delivers lid angle readings to an OSC receiver over UDP.
package network

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// SenderStats counts delivery activity for the status API.
type SenderStats struct {
	Sends      uint64    `json:"sends"`
	LastSendAt time.Time `json:"last_send_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// Sender transmits angle values as OSC control messages. Each value goes
// out as a single message with one float32 argument, which is what
// mainstream OSC receivers (Max, Pd, TouchDesigner) expect for a control
// stream.
type Sender struct {
	client  *osc.Client
	address string
	target  string

	mu    sync.Mutex
	stats SenderStats
}

// NewSender creates a sender for the given receiver host and port. address
// is the OSC address pattern the receiver routes on, e.g. /lid. The target
// is resolved up front so a bad host fails at startup, not on first send.
func NewSender(host string, port int, address string) (*Sender, error) {
	if host == "" {
		return nil, fmt.Errorf("receiver host must not be empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid receiver port %d", port)
	}
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("OSC address pattern %q must start with /", address)
	}
	if strings.ContainsAny(address, " #*,?[]{}") {
		return nil, fmt.Errorf("OSC address pattern %q contains reserved characters", address)
	}

	target := net.JoinHostPort(host, strconv.Itoa(port))
	udpAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receiver address %s: %w", target, err)
	}

	// The OSC client wants a literal IP, so hostnames resolve here, once.
	return &Sender{
		client:  osc.NewClient(udpAddr.IP.String(), port),
		address: address,
		target:  target,
	}, nil
}

// Send transmits one angle reading. Delivery is synchronous: a failure
// here means the receiver target is unusable and the caller is expected to
// stop rather than silently drop readings.
func (s *Sender) Send(angle float64) error {
	message := osc.NewMessage(s.address)
	message.Append(float32(angle))

	err := s.client.Send(message)

	s.mu.Lock()
	if err != nil {
		s.stats.LastError = err.Error()
	} else {
		s.stats.Sends++
		s.stats.LastSendAt = time.Now()
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to send OSC message to %s: %w", s.target, err)
	}
	return nil
}

// Target returns the receiver host:port.
func (s *Sender) Target() string {
	return s.target
}

// Address returns the OSC address pattern.
func (s *Sender) Address() string {
	return s.address
}

// Stats returns a copy of the delivery counters.
func (s *Sender) Stats() SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
