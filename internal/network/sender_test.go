package network

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func listenUDP(t *testing.T) (net.PacketConn, int) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestSendDeliversOSCMessage(t *testing.T) {
	conn, port := listenUDP(t)

	sender, err := NewSender("127.0.0.1", port, "/lid")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}

	if err := sender.Send(93.5); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 512)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("no datagram arrived: %v", err)
	}
	datagram := buf[:n]

	// OSC messages are the NUL-padded address, the ",f" typetag, then a
	// big-endian float32.
	if !bytes.HasPrefix(datagram, []byte("/lid\x00")) {
		t.Errorf("datagram %q does not start with the address pattern", datagram)
	}
	if !bytes.Contains(datagram, []byte(",f")) {
		t.Errorf("datagram %q carries no float32 typetag", datagram)
	}
	if !bytes.Contains(datagram, []byte{0x42, 0xbb, 0x00, 0x00}) {
		t.Errorf("datagram % x carries no float32 encoding of 93.5", datagram)
	}
	if n%4 != 0 {
		t.Errorf("datagram length %d is not 4-byte aligned", n)
	}
}

func TestSendCountsDeliveries(t *testing.T) {
	_, port := listenUDP(t)

	sender, err := NewSender("127.0.0.1", port, "/lid")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}

	for _, angle := range []float64{10, 20, 30} {
		if err := sender.Send(angle); err != nil {
			t.Fatalf("Send(%f) error = %v", angle, err)
		}
	}

	stats := sender.Stats()
	if stats.Sends != 3 {
		t.Errorf("Sends = %d, want 3", stats.Sends)
	}
	if stats.LastSendAt.IsZero() {
		t.Error("LastSendAt was never set")
	}
	if stats.LastError != "" {
		t.Errorf("LastError = %q, want empty", stats.LastError)
	}
}

func TestNewSenderValidation(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		address string
	}{
		{"empty host", "", 8000, "/lid"},
		{"zero port", "127.0.0.1", 0, "/lid"},
		{"negative port", "127.0.0.1", -1, "/lid"},
		{"port out of range", "127.0.0.1", 70000, "/lid"},
		{"pattern without slash", "127.0.0.1", 8000, "lid"},
		{"pattern with space", "127.0.0.1", 8000, "/lid angle"},
		{"pattern with wildcard", "127.0.0.1", 8000, "/lid*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSender(tt.host, tt.port, tt.address); err == nil {
				t.Errorf("NewSender(%q, %d, %q) accepted bad input", tt.host, tt.port, tt.address)
			}
		})
	}
}

func TestSenderAccessors(t *testing.T) {
	sender, err := NewSender("127.0.0.1", 8000, "/lid")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if got := sender.Target(); got != "127.0.0.1:8000" {
		t.Errorf("Target() = %q, want 127.0.0.1:8000", got)
	}
	if got := sender.Address(); got != "/lid" {
		t.Errorf("Address() = %q, want /lid", got)
	}
}
