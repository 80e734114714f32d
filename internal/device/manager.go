// internal/device/manager.go
package device

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"led-relay/internal/protocol"
	"led-relay/internal/utils"
)

// openReadTimeout is the read timeout set when the line is opened
const openReadTimeout = 2 * time.Second

var errInvalidUTF8 = errors.New("response is not valid UTF-8")

// Manager owns the serial handle to one device and its connection state.
// Transport errors never escape: every operation reports a boolean and logs.
type Manager struct {
	config   Config
	opener   protocol.Opener
	delays   Delays
	sleep    SleepFunc
	onChange StateChangeFunc
	logger   *utils.DeviceLogger

	mu    sync.Mutex
	port  protocol.Port
	state State

	// connected mirrors state so status reads never wait on a settle delay
	connected atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithOpener replaces the serial port opener
func WithOpener(opener protocol.Opener) Option {
	return func(m *Manager) { m.opener = opener }
}

// WithDelays replaces the settle and post-write delays
func WithDelays(delays Delays) Option {
	return func(m *Manager) { m.delays = delays }
}

// WithSleep replaces the blocking wait used for all delays
func WithSleep(sleep SleepFunc) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// WithStateChangeHook registers an observer for state transitions
func WithStateChangeHook(fn StateChangeFunc) Option {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager creates a disconnected manager for the given device
func NewManager(config Config, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		config: config,
		opener: protocol.OpenSerial,
		delays: DefaultDelays(),
		sleep:  time.Sleep,
		logger: utils.NewDeviceLogger(logger, config.Address, config.BaudRate),
		state:  StateDisconnected,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger.Info("Device manager initialized")
	return m
}

// Config returns the device configuration
func (m *Manager) Config() Config {
	return m.config
}

// IsConnected reports whether the manager is in the Connected state
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// State returns the current connection state
func (m *Manager) State() State {
	if m.connected.Load() {
		return StateConnected
	}
	return StateDisconnected
}

// Snapshot returns a copy of the manager's internals
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Config:   m.config,
		State:    m.state,
		PortOpen: m.port != nil,
	}
}

// Connect (re)opens the device. Any open handle is closed first, so calling
// Connect while connected resets the line.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

func (m *Manager) connectLocked() bool {
	m.logger.Info("Attempting to connect to device")

	m.closePortLocked()

	port, err := m.opener(protocol.NewSerialConfig(m.config.Address, m.config.BaudRate, openReadTimeout))
	if err != nil {
		m.logger.Error("Error connecting to device",
			zap.String("reason", protocol.OpenErrorReason(err)),
			zap.Error(err),
		)
		m.setStateLocked(StateDisconnected, "open failed")
		return false
	}
	m.port = port

	// opening the line resets the board; it cannot take input until it has booted
	m.logger.Info("Waiting for device to initialize", zap.Duration("settle_delay", m.delays.Settle))
	m.sleep(m.delays.Settle)

	m.setStateLocked(StateConnected, "connect")
	m.logger.LogConnection("connect", true, nil)
	return true
}

// Disconnect closes the handle. It is a no-op when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil && m.state == StateDisconnected {
		return
	}

	m.closePortLocked()
	m.setStateLocked(StateDisconnected, "disconnect")
	m.logger.LogConnection("disconnect", true, nil)
}

// SendCommand writes payload to the device, reconnecting once first if
// needed. It returns true only when the write and flush both succeeded.
func (m *Manager) SendCommand(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		m.logger.Warn("Not connected, attempting to reconnect")
		if !m.connectLocked() {
			m.logger.Error("Failed to reconnect")
			return false
		}
	}

	m.logger.Info("Sending command", zap.ByteString("command", payload))

	n, err := m.port.Write(payload)
	if err == nil && n != len(payload) {
		err = fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(payload))
	}
	if err != nil {
		m.failLocked("write", err)
		return false
	}

	if err := m.port.Drain(); err != nil {
		m.failLocked("flush", err)
		return false
	}

	m.sleep(m.delays.Write)

	m.logger.Info("Command sent successfully", zap.ByteString("command", payload))
	return true
}

// ReadResponse reads one line from the device and returns it trimmed.
// It never reconnects; ok is false when disconnected or on any failure.
// A read timeout with nothing received yields an empty response.
func (m *Manager) ReadResponse(timeout time.Duration) (response string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected {
		return "", false
	}

	line, err := protocol.ReadLine(m.port, timeout)
	if err != nil {
		m.failLocked("read", err)
		return "", false
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		// a timeout can land inside a multi-byte character
		line = trimPartialRune(line)
	}
	if !utf8.Valid(line) {
		m.failLocked("decode", errInvalidUTF8)
		return "", false
	}

	response = strings.TrimSpace(string(line))
	m.logger.Info("Device response", zap.String("response", response))
	return response, true
}

// trimPartialRune drops an incomplete UTF-8 sequence from the end of b
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		tail := b[len(b)-i:]
		if !utf8.RuneStart(tail[0]) {
			continue
		}
		if !utf8.FullRune(tail) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}

// failLocked invalidates the handle after a transport failure
func (m *Manager) failLocked(op string, err error) {
	m.logger.Error("Serial "+op+" failed, marking device disconnected", zap.Error(err))
	m.closePortLocked()
	m.setStateLocked(StateDisconnected, op+" failed")
}

func (m *Manager) closePortLocked() {
	if m.port == nil {
		return
	}
	if err := m.port.Close(); err != nil {
		m.logger.Debug("Error closing serial port", zap.Error(err))
	}
	m.port = nil
}

func (m *Manager) setStateLocked(to State, reason string) {
	from := m.state
	m.state = to
	m.connected.Store(to == StateConnected)

	if from == to {
		return
	}

	m.logger.LogStateChange(from.String(), to.String(), reason)
	if m.onChange != nil {
		m.onChange(m.config.Address, from, to, reason)
	}
}
