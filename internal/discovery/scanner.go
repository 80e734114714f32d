// internal/discovery/scanner.go
package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// ErrNoPorts is returned when the system reports no serial ports
var ErrNoPorts = errors.New("no serial ports found")

// allow tests to override the system enumerator
var detailedPortsList = enumerator.GetDetailedPortsList

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// likelyMicrocontroller reports whether a port looks like a USB-attached board
func (p PortInfo) likelyMicrocontroller() bool {
	name := strings.ToLower(p.Name)
	return p.IsUSB || strings.Contains(name, "usb") || strings.Contains(name, "acm")
}

// Scanner enumerates serial ports
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a new serial port scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
	}
}

// ListPorts returns every serial port the system reports, sorted by name
func (s *Scanner) ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })

	s.logger.Debug("Serial ports enumerated", zap.Int("count", len(ports)))
	return ports, nil
}

// FindPort picks the port a microcontroller is most likely attached to.
// The preferred address wins when it exists; otherwise the first USB/ACM
// port, otherwise the first port listed.
func (s *Scanner) FindPort(preferred string) (string, error) {
	if preferred != "" && !errors.Is(CheckAddress(preferred), ErrAddressNotFound) {
		s.logger.Info("Using preferred serial port", zap.String("port", preferred))
		return preferred, nil
	}

	ports, err := s.ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		s.logger.Error("No serial ports found")
		return "", ErrNoPorts
	}

	for _, p := range ports {
		if p.likelyMicrocontroller() {
			s.logger.Info("Auto-detected serial port",
				zap.String("port", p.Name),
				zap.String("vid", p.VID),
				zap.String("pid", p.PID),
			)
			return p.Name, nil
		}
	}

	s.logger.Info("Using first available serial port", zap.String("port", ports[0].Name))
	return ports[0].Name, nil
}
