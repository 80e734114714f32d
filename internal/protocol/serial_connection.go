// internal/protocol/serial_connection.go
package protocol

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens a physical serial port. It is the default Opener.
func OpenSerial(config *SerialConfig) (Port, error) {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
	}

	switch config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	// Set parity
	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", config.Port, err)
	}

	if config.Timeout > 0 {
		if err := port.SetReadTimeout(config.Timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}

	return port, nil
}

// OpenErrorReason classifies an open failure for log records
func OpenErrorReason(err error) string {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return "unknown"
	}

	switch portErr.Code() {
	case serial.PortNotFound:
		return "not_found"
	case serial.PermissionDenied:
		return "permission_denied"
	case serial.PortBusy:
		return "busy"
	case serial.InvalidSpeed:
		return "invalid_speed"
	default:
		return "open_failed"
	}
}

// ReadLine reads bytes until '\n' or until the port's read timeout elapses
// without data. A timeout is not an error: whatever arrived is returned.
func ReadLine(port Port, timeout time.Duration) ([]byte, error) {
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	var line []byte
	buf := make([]byte, 1)
	deadline := time.Now().Add(timeout)

	for {
		n, err := port.Read(buf)
		if err != nil {
			return line, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			// read timeout
			return line, nil
		}

		line = append(line, buf[0])
		if buf[0] == '\n' {
			return line, nil
		}

		if time.Now().After(deadline) {
			return line, nil
		}
	}
}
