// internal/service/command_service.go
package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"led-relay/internal/config"
	"led-relay/internal/device"
	"led-relay/internal/discovery"
	"led-relay/internal/utils"
)

// Connection is the device connection the gateway drives.
// *device.Manager implements it.
type Connection interface {
	Connect() bool
	Disconnect()
	SendCommand(payload []byte) bool
	ReadResponse(timeout time.Duration) (string, bool)
	IsConnected() bool
	Config() device.Config
}

// ConnectionFactory builds a fresh, disconnected connection
type ConnectionFactory func(cfg device.Config) Connection

// AddressChecker verifies a device address before opening it
type AddressChecker func(address string) error

// PortFinder picks a serial port when the configured one is missing
type PortFinder interface {
	FindPort(preferred string) (string, error)
}

// Settings controls how the gateway reaches the device
type Settings struct {
	Address       string
	BaudRate      int
	AutoDetect    bool
	Alphabet      []string
	ProbeCommand  string
	RetryAttempts int
	RetryDelay    time.Duration
	ProbeDelay    time.Duration
}

// SettingsFromConfig maps the device configuration section onto Settings
func SettingsFromConfig(cfg *config.DeviceConfig) Settings {
	return Settings{
		Address:       cfg.Address,
		BaudRate:      cfg.BaudRate,
		AutoDetect:    cfg.AutoDetect,
		Alphabet:      cfg.Alphabet,
		ProbeCommand:  cfg.ProbeCommand,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		ProbeDelay:    cfg.ProbeDelay,
	}
}

// Status is a snapshot of the device connection
type Status struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
}

// CommandService is the single entry point for device commands. It owns
// at most one Connection and re-creates it whenever the device is lost.
type CommandService struct {
	settings     Settings
	alphabet     Alphabet
	factory      ConnectionFactory
	checkAddress AddressChecker
	finder       PortFinder
	sleep        device.SleepFunc
	logger       *utils.ServiceLogger

	// opMu serializes device operations, including retries and re-initialization
	opMu sync.Mutex

	mu   sync.RWMutex
	conn Connection
}

// Option configures a CommandService
type Option func(*CommandService)

// WithAddressChecker replaces the address pre-check
func WithAddressChecker(check AddressChecker) Option {
	return func(s *CommandService) { s.checkAddress = check }
}

// WithPortFinder enables port lookup when auto-detect is on
func WithPortFinder(finder PortFinder) Option {
	return func(s *CommandService) { s.finder = finder }
}

// WithSleep replaces the blocking wait used for retry and probe delays
func WithSleep(sleep device.SleepFunc) Option {
	return func(s *CommandService) { s.sleep = sleep }
}

// NewCommandService creates a gateway with no connection yet
func NewCommandService(settings Settings, factory ConnectionFactory, logger *zap.Logger, opts ...Option) *CommandService {
	if settings.RetryAttempts < 1 {
		settings.RetryAttempts = 1
	}

	s := &CommandService{
		settings:     settings,
		alphabet:     NewAlphabet(settings.Alphabet),
		factory:      factory,
		checkAddress: discovery.CheckAddress,
		sleep:        time.Sleep,
		logger:       utils.NewServiceLogger(logger, "command-service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Alphabet returns the legal commands
func (s *CommandService) Alphabet() Alphabet {
	return s.alphabet
}

// Initialize performs the startup re-initialization
func (s *CommandService) Initialize() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.reinitializeLocked()
}

// SendCommand validates cmd and delivers it to the device, re-initializing
// the connection first if needed and retrying failed sends.
func (s *CommandService) SendCommand(cmd string) error {
	s.logger.Info("Received command request", zap.String("command", cmd))

	// Validate before anything touches the device
	if !s.alphabet.Contains(cmd) {
		s.logger.Warn("Rejected invalid command", zap.String("command", cmd))
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn := s.current()
	if conn == nil || !conn.IsConnected() {
		s.logger.Warn("Device not connected, trying to reconnect")
		if err := s.reinitializeLocked(); err != nil {
			return err
		}
		conn = s.current()
	}

	maxAttempts := s.settings.RetryAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if conn.SendCommand([]byte(cmd)) {
			s.logger.Info("Command sent successfully",
				zap.String("command", cmd),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		s.logger.Warn("Command failed",
			zap.String("command", cmd),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
		)

		if attempt < maxAttempts {
			s.sleep(s.settings.RetryDelay)
		}
	}

	s.logger.Error("Failed to send command after multiple attempts",
		zap.String("command", cmd),
		zap.Int("max_attempts", maxAttempts),
	)
	return fmt.Errorf("%w: %q after %d attempts", ErrSendFailed, cmd, maxAttempts)
}

// Status reports the current connection without touching the device
func (s *CommandService) Status() Status {
	conn := s.current()
	if conn == nil || !conn.IsConnected() {
		s.logger.Debug("Status check: device not connected")
		return Status{}
	}

	address := conn.Config().Address
	s.logger.Debug("Status check: device connected", zap.String("address", address))
	return Status{Connected: true, Address: address}
}

// Reconnect drops any existing connection and re-initializes
func (s *CommandService) Reconnect() error {
	s.logger.Info("Reconnect request received")

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if conn := s.current(); conn != nil {
		conn.Disconnect()
		s.logger.Info("Closed existing connection", zap.String("address", conn.Config().Address))
	}

	return s.reinitializeLocked()
}

// ReadResponse reads one line from the device. It never re-initializes.
func (s *CommandService) ReadResponse(timeout time.Duration) (string, bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn := s.current()
	if conn == nil {
		return "", false
	}
	return conn.ReadResponse(timeout)
}

// Teardown disconnects and releases the connection
func (s *CommandService) Teardown() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	conn := s.current()
	if conn == nil {
		return
	}

	conn.Disconnect()
	s.setCurrent(nil)
	s.logger.Info("Device connection released", zap.String("address", conn.Config().Address))
}

// reinitializeLocked replaces the connection with a fresh one, connects it
// and sends the probe command. Callers hold opMu.
func (s *CommandService) reinitializeLocked() error {
	address, err := s.resolveAddress()
	if err != nil {
		s.logger.Error("No serial port available", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	conn := s.factory(device.Config{Address: address, BaudRate: s.settings.BaudRate})
	s.setCurrent(conn)

	if err := s.checkAddress(address); err != nil {
		switch {
		case errors.Is(err, discovery.ErrAddressNotFound):
			s.logger.Error("Device address does not exist", zap.String("address", address))
		case errors.Is(err, discovery.ErrPermissionDenied):
			s.logger.Error("No permission to access device address, add the service user to the dialout group",
				zap.String("address", address),
			)
		default:
			s.logger.Error("Device address check failed", zap.String("address", address), zap.Error(err))
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if !conn.Connect() {
		s.logger.Error("Failed to connect to device", zap.String("address", address))
		return fmt.Errorf("%w: connect to %s failed", ErrDeviceUnavailable, address)
	}
	s.logger.Info("Device connected", zap.String("address", address))

	// the probe only confirms the line accepts input; its result is informational
	if conn.SendCommand([]byte(s.settings.ProbeCommand)) {
		s.logger.Info("Probe command sent", zap.String("command", s.settings.ProbeCommand))
	} else {
		s.logger.Warn("Probe command failed", zap.String("command", s.settings.ProbeCommand))
	}
	s.sleep(s.settings.ProbeDelay)

	return nil
}

func (s *CommandService) resolveAddress() (string, error) {
	if !s.settings.AutoDetect || s.finder == nil {
		return s.settings.Address, nil
	}

	address, err := s.finder.FindPort(s.settings.Address)
	if err != nil {
		return "", err
	}
	if address != s.settings.Address {
		s.logger.Info("Auto-detected serial port",
			zap.String("configured", s.settings.Address),
			zap.String("detected", address),
		)
	}
	return address, nil
}

func (s *CommandService) current() Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *CommandService) setCurrent(conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}
