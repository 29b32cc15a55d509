package serialangle

import (
	"bytes"
	"io"
	"sync"
)

// TestablePort implements Porter for tests. Reads block until data is
// added or the port is closed, matching how a real serial port behaves
// under bufio.Scanner; Close makes pending and future reads return EOF so
// the monitor loop winds down cleanly.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuffer  bytes.Buffer
	writeBuffer bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error

	closed bool
}

// NewTestablePort creates a TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read blocks until data is available or the port is closed.
func (p *TestablePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.closed && p.readBuffer.Len() == 0 {
		p.readCond.Wait()
	}
	if p.readBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuffer.Read(buf)
}

// Write captures data written to the port.
func (p *TestablePort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.writeBuffer.Write(buf)
}

// Close wakes any blocked readers, which then drain and return EOF.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readBuffer.Write(data)
	p.readCond.Broadcast()
}

// WrittenData returns everything written to the port so far.
func (p *TestablePort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]byte(nil), p.writeBuffer.Bytes()...)
}
