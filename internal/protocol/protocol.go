// internal/protocol/protocol.go
package protocol

import (
	"errors"
	"time"
)

// ErrPortClosed is returned when an operation is attempted on a closed port
var ErrPortClosed = errors.New("serial port is closed")

// Port is the byte transport to a device.
// go.bug.st/serial ports satisfy it directly.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	// Drain blocks until everything written has been transmitted
	Drain() error
	SetReadTimeout(timeout time.Duration) error
	Close() error
}

// Opener opens a Port for the given configuration
type Opener func(config *SerialConfig) (Port, error)
