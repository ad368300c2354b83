package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.HCIDevice)
	assert.Equal(t, 6*time.Second, cfg.ScanTimeout)
	assert.Equal(t, "Nintendo RVL-WBC-01", cfg.NamePrefix)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.ReceiveTimeout)
	assert.Equal(t, uint16(0x11), cfg.ControlPSM)
	assert.Equal(t, uint16(0x13), cfg.DataPSM)
	assert.Equal(t, 200, cfg.Samples)
	assert.Equal(t, 10, cfg.Loops)
	assert.Equal(t, 2*time.Second, cfg.Pause)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, 10.0, cfg.MassRate)

	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		expected logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			expected: logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			expected: logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			expected: logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			expected: logrus.ErrorLevel,
		},
		{
			name:     "falls back to info on garbage",
			logLevel: "loud",
			expected: logrus.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.expected, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("keeps defaults for absent keys", func(t *testing.T) {
		cfg, err := Parse([]byte(`
log_level: debug
receive_timeout: 250ms
samples: 50
output_format: json
`))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 250*time.Millisecond, cfg.ReceiveTimeout)
		assert.Equal(t, 50, cfg.Samples)
		assert.Equal(t, "json", cfg.OutputFormat)
		assert.Equal(t, 6*time.Second, cfg.ScanTimeout, "absent key MUST keep its default")
		assert.Equal(t, uint16(0x11), cfg.ControlPSM)
	})

	t.Run("empty document yields defaults", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := Parse([]byte("scan_timout: 3s\n"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scan_timout")
	})

	t.Run("rejects malformed durations", func(t *testing.T) {
		_, err := Parse([]byte("connect_timeout: soon\n"))
		assert.Error(t, err)
	})
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"negative hci device", func(c *Config) { c.HCIDevice = -1 }, "hci_device"},
		{"zero scan timeout", func(c *Config) { c.ScanTimeout = 0 }, "scan_timeout"},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, "connect_timeout"},
		{"negative receive timeout", func(c *Config) { c.ReceiveTimeout = -time.Second }, "receive_timeout"},
		{"even control psm", func(c *Config) { c.ControlPSM = 0x10 }, "control_psm"},
		{"equal psms", func(c *Config) { c.DataPSM = c.ControlPSM }, "must differ"},
		{"zero samples", func(c *Config) { c.Samples = 0 }, "samples"},
		{"negative loops", func(c *Config) { c.Loops = -1 }, "loops"},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }, "output_format"},
		{"negative mass rate", func(c *Config) { c.MassRate = -1 }, "mass_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(dir, "wbb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hci_device: 1\nmass_rate: 0\n"), 0o600))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 1, cfg.HCIDevice)
		assert.Zero(t, cfg.MassRate)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"))

		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid values name the file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("samples: -5\n"), 0o600))

		_, err := Load(path)

		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "bad.yaml")
	})
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

func BenchmarkConfig_NewLogger(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.NewLogger()
	}
}
