// internal/device/state.go
package device

import "time"

// State is the connection state of a Manager
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

// String returns the lowercase state name used in logs and events
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config identifies the device. It is immutable once a Manager is built.
type Config struct {
	Address  string `json:"address"`
	BaudRate int    `json:"baud_rate"`
}

// SleepFunc blocks for d. Tests substitute a no-op.
type SleepFunc func(d time.Duration)

// Delays are the fixed waits imposed by the device firmware
type Delays struct {
	// Settle is the wait after opening the line; opening resets the board
	Settle time.Duration
	// Write is the wait after a flushed write so the device can act on it
	Write time.Duration
}

// DefaultDelays returns the delays an Arduino-class board needs
func DefaultDelays() Delays {
	return Delays{
		Settle: 2 * time.Second,
		Write:  100 * time.Millisecond,
	}
}

// StateChangeFunc observes state transitions. It is called with the
// manager lock held and must not block or call back into the manager.
type StateChangeFunc func(address string, from, to State, reason string)

// Snapshot is a point-in-time copy of a Manager's internals
type Snapshot struct {
	Config   Config `json:"config"`
	State    State  `json:"state"`
	PortOpen bool   `json:"port_open"`
}
