package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadWith(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Device.Address != "/dev/ttyACM0" {
		t.Errorf("Address = %q, want /dev/ttyACM0", cfg.Device.Address)
	}
	if cfg.Device.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", cfg.Device.BaudRate)
	}
	if cfg.Device.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", cfg.Device.SettleDelay)
	}
	if cfg.Device.WriteDelay != 100*time.Millisecond {
		t.Errorf("WriteDelay = %v, want 100ms", cfg.Device.WriteDelay)
	}
	if cfg.Device.RetryAttempts != 3 || cfg.Device.RetryDelay != 500*time.Millisecond {
		t.Errorf("retry = %d/%v, want 3/500ms", cfg.Device.RetryAttempts, cfg.Device.RetryDelay)
	}
	if len(cfg.Device.Alphabet) != 11 {
		t.Errorf("Alphabet has %d entries, want 11", len(cfg.Device.Alphabet))
	}
	if cfg.Device.ProbeCommand != "c" {
		t.Errorf("ProbeCommand = %q, want c", cfg.Device.ProbeCommand)
	}
	if cfg.GetServerAddr() != "0.0.0.0:5000" {
		t.Errorf("GetServerAddr() = %q", cfg.GetServerAddr())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	content := `
device:
  address: /dev/mock0
  baud_rate: 115200
  alphabet: [a, b, c, x]
  probe_command: x
logging:
  level: debug
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWith(viper.New(), file)
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Device.Address != "/dev/mock0" || cfg.Device.BaudRate != 115200 {
		t.Errorf("device = %s@%d", cfg.Device.Address, cfg.Device.BaudRate)
	}
	if cfg.Device.ProbeCommand != "x" {
		t.Errorf("ProbeCommand = %q, want x", cfg.Device.ProbeCommand)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := LoadWith(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LED_RELAY_DEVICE_ADDRESS", "/dev/ttyUSB3")

	cfg, err := LoadWith(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	if cfg.Device.Address != "/dev/ttyUSB3" {
		t.Errorf("Address = %q, want /dev/ttyUSB3", cfg.Device.Address)
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "5000"},
		Device: DeviceConfig{
			Address:       "/dev/ttyACM0",
			BaudRate:      9600,
			RetryAttempts: 3,
			ProbeCommand:  "c",
			Alphabet:      []string{"a", "b", "c"},
		},
		Logging: LoggingConfig{Level: "info"},
		App:     AppConfig{Environment: "test"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"missing address", func(c *Config) { c.Device.Address = "" }, true},
		{"missing address with auto detect", func(c *Config) {
			c.Device.Address = ""
			c.Device.AutoDetect = true
		}, false},
		{"zero baud", func(c *Config) { c.Device.BaudRate = 0 }, true},
		{"zero attempts", func(c *Config) { c.Device.RetryAttempts = 0 }, true},
		{"empty alphabet", func(c *Config) { c.Device.Alphabet = nil }, true},
		{"multi char command", func(c *Config) { c.Device.Alphabet = []string{"c", "on"} }, true},
		{"probe outside alphabet", func(c *Config) { c.Device.ProbeCommand = "z" }, true},
		{"bad environment", func(c *Config) { c.App.Environment = "qa" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// chdirTemp changes into a fresh temp dir for the duration of the test
// (equivalent to t.Chdir(t.TempDir()), which needs Go 1.24).
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
