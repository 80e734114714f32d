// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// NewSerialConfig returns an 8N1 configuration for the given port and baud rate
func NewSerialConfig(port string, baudRate int, timeout time.Duration) *SerialConfig {
	return &SerialConfig{
		Port:     port,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
		Timeout:  timeout,
	}
}
