// Package mockport simulates the far end of a serial line for tests.
package mockport

import (
	"errors"
	"sync"
	"time"

	"led-relay/internal/protocol"
)

// ErrWriteFailed is returned by scripted write failures
var ErrWriteFailed = errors.New("mockport: write failed")

// Device is a simulated microcontroller. Every open hands out a new Port
// bound to the same Device, so counters survive reconnects.
type Device struct {
	mu sync.Mutex

	// OpenErr makes every open fail
	OpenErr error
	// FailWrites makes every write fail
	FailWrites bool
	// FailNextWrites makes the next N writes fail
	FailNextWrites int
	// DrainErr is returned by every Drain
	DrainErr error
	// ReadErr is returned by every Read
	ReadErr error

	incoming []byte
	written  []byte
	opens    int
	closes   int
	writes   int
	reads    int
	configs  []protocol.SerialConfig
}

// NewDevice creates a simulated device that accepts everything
func NewDevice() *Device {
	return &Device{}
}

// Opener returns a protocol.Opener bound to this device
func (d *Device) Opener() protocol.Opener {
	return func(config *protocol.SerialConfig) (protocol.Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()

		d.opens++
		d.configs = append(d.configs, *config)
		if d.OpenErr != nil {
			return nil, d.OpenErr
		}
		return &Port{device: d}, nil
	}
}

// Feed queues bytes the device will send back
func (d *Device) Feed(data string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.incoming = append(d.incoming, data...)
}

// Opens returns how many times the device was opened
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns how many ports were closed
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Writes returns how many write calls reached the device, failed ones included
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Reads returns how many read calls reached the device
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Written returns every byte successfully written
func (d *Device) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.written)
}

// LastConfig returns the configuration of the most recent open
func (d *Device) LastConfig() (protocol.SerialConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.configs) == 0 {
		return protocol.SerialConfig{}, false
	}
	return d.configs[len(d.configs)-1], true
}

// Touches returns the total number of handle operations (opens, writes, reads)
func (d *Device) Touches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens + d.writes + d.reads
}

// Port is one open handle to a Device
type Port struct {
	device *Device
	closed bool

	mu          sync.Mutex
	readTimeout time.Duration
}

// Write implements protocol.Port
func (p *Port) Write(data []byte) (int, error) {
	d := p.device
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writes++
	if p.isClosed() {
		return 0, protocol.ErrPortClosed
	}
	if d.FailWrites {
		return 0, ErrWriteFailed
	}
	if d.FailNextWrites > 0 {
		d.FailNextWrites--
		return 0, ErrWriteFailed
	}

	d.written = append(d.written, data...)
	return len(data), nil
}

// Read implements protocol.Port. An empty buffer behaves like a read timeout.
func (p *Port) Read(buf []byte) (int, error) {
	d := p.device
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reads++
	if p.isClosed() {
		return 0, protocol.ErrPortClosed
	}
	if d.ReadErr != nil {
		return 0, d.ReadErr
	}

	n := copy(buf, d.incoming)
	d.incoming = d.incoming[n:]
	return n, nil
}

// Drain implements protocol.Port
func (p *Port) Drain() error {
	d := p.device
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.DrainErr
}

// SetReadTimeout implements protocol.Port
func (p *Port) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// ReadTimeout returns the last timeout set on this handle
func (p *Port) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimeout
}

// Close implements protocol.Port
func (p *Port) Close() error {
	d := p.device
	d.mu.Lock()
	defer d.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return protocol.ErrPortClosed
	}
	p.closed = true
	d.closes++
	return nil
}

func (p *Port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

var _ protocol.Port = (*Port)(nil)
