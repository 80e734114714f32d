// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. LED_RELAY_DEVICE_ADDRESS
const EnvPrefix = "LED_RELAY"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Device   DeviceConfig   `mapstructure:"device"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DeviceConfig describes the serial device and the command contract
type DeviceConfig struct {
	Address       string        `mapstructure:"address"`
	BaudRate      int           `mapstructure:"baud_rate"`
	AutoDetect    bool          `mapstructure:"auto_detect"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	WriteDelay    time.Duration `mapstructure:"write_delay"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ProbeDelay    time.Duration `mapstructure:"probe_delay"`
	ProbeCommand  string        `mapstructure:"probe_command"`
	Alphabet      []string      `mapstructure:"alphabet"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from the default search paths and environment
func Load() (*Config, error) {
	return LoadWith(viper.New(), "")
}

// LoadWith loads configuration into v. When configFile is empty the default
// search paths are used and a missing file is not an error.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/led-relay")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Device defaults
	v.SetDefault("device.address", "/dev/ttyACM0")
	v.SetDefault("device.baud_rate", 9600)
	v.SetDefault("device.auto_detect", false)
	v.SetDefault("device.settle_delay", "2s")
	v.SetDefault("device.write_delay", "100ms")
	v.SetDefault("device.read_timeout", "1s")
	v.SetDefault("device.retry_attempts", 3)
	v.SetDefault("device.retry_delay", "500ms")
	v.SetDefault("device.probe_delay", "500ms")
	v.SetDefault("device.probe_command", "c")
	v.SetDefault("device.alphabet", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "x"})

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "led-relay")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Device.Address == "" && !config.Device.AutoDetect {
		return fmt.Errorf("device.address is required unless device.auto_detect is enabled")
	}
	if config.Device.BaudRate <= 0 {
		return fmt.Errorf("device.baud_rate must be positive, got %d", config.Device.BaudRate)
	}
	if config.Device.RetryAttempts < 1 {
		return fmt.Errorf("device.retry_attempts must be at least 1, got %d", config.Device.RetryAttempts)
	}
	if len(config.Device.Alphabet) == 0 {
		return fmt.Errorf("device.alphabet must not be empty")
	}

	probeFound := false
	for _, cmd := range config.Device.Alphabet {
		if utf8.RuneCountInString(cmd) != 1 {
			return fmt.Errorf("device.alphabet entries must be single characters, got %q", cmd)
		}
		if cmd == config.Device.ProbeCommand {
			probeFound = true
		}
	}
	if !probeFound {
		return fmt.Errorf("device.probe_command %q is not in device.alphabet", config.Device.ProbeCommand)
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}
