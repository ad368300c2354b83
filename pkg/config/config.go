package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// OutputFormats lists the accepted values of Config.OutputFormat
var OutputFormats = []string{"text", "json"}

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	LogLevel  string `yaml:"log_level" default:"info"`
	HCIDevice int    `yaml:"hci_device" default:"0"`

	// Discovery
	ScanTimeout time.Duration `yaml:"scan_timeout" default:"6s"`
	NamePrefix  string        `yaml:"name_prefix" default:"Nintendo RVL-WBC-01"`

	// Connection
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" default:"100ms"`
	ControlPSM     uint16        `yaml:"control_psm" default:"17"`
	DataPSM        uint16        `yaml:"data_psm" default:"19"`

	// Weighing
	Samples int           `yaml:"samples" default:"200"`
	Loops   int           `yaml:"loops" default:"10"`
	Pause   time.Duration `yaml:"pause" default:"2s"`

	// Output
	OutputFormat string  `yaml:"output_format" default:"text"`
	MassRate     float64 `yaml:"mass_rate" default:"10"` // mass events per second printed by monitor, 0 = all
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	_, err := logrus.ParseLevel(c.LogLevel)
	check(err == nil, "log_level: unknown level %q", c.LogLevel)
	check(c.HCIDevice >= 0, "hci_device: must not be negative")
	check(c.ScanTimeout > 0, "scan_timeout: must be positive")
	check(c.ConnectTimeout > 0, "connect_timeout: must be positive")
	check(c.ReceiveTimeout > 0, "receive_timeout: must be positive")
	// L2CAP PSMs are odd
	check(c.ControlPSM%2 == 1, "control_psm: 0x%02x is not a valid PSM", c.ControlPSM)
	check(c.DataPSM%2 == 1, "data_psm: 0x%02x is not a valid PSM", c.DataPSM)
	check(c.ControlPSM != c.DataPSM, "control_psm and data_psm must differ")
	check(c.Samples > 0, "samples: must be positive")
	check(c.Loops >= 0, "loops: must not be negative")
	check(c.Pause >= 0, "pause: must not be negative")
	check(slices.Contains(OutputFormats, c.OutputFormat), "output_format: %q is not one of %v", c.OutputFormat, OutputFormats)
	check(c.MassRate >= 0, "mass_rate: must not be negative")

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Level returns the parsed log level, InfoLevel if it cannot be parsed
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
