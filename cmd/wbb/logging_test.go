package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	goble "github.com/srg/wbb/internal/device/go-ble"
	"github.com/srg/wbb/internal/devicefactory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlagCommand builds a command carrying the root persistent flags.
func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("config", "", "")
	cmd.Flags().Int("hci", -1, "")
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wbb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigureLoggerPrecedence(t *testing.T) {
	cfgPath := writeConfig(t, "log_level: warn\n")

	tests := []struct {
		name string
		args []string
		want logrus.Level
	}{
		{"silent by default", nil, logrus.PanicLevel},
		{"flag only", []string{"--log-level", "debug"}, logrus.DebugLevel},
		{"config only", []string{"--config", cfgPath}, logrus.WarnLevel},
		{"flag wins over config", []string{"--config", cfgPath, "--log-level", "error"}, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newFlagCommand(t, tt.args...)
			cfg, fromFile, err := loadConfig(cmd)
			require.NoError(t, err)

			logger, err := configureLogger(cmd, cfg, fromFile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
			assert.Same(t, cmd.ErrOrStderr(), logger.Out, "logs MUST go to the command's stderr")
		})
	}
}

func TestConfigureLoggerInvalidLevel(t *testing.T) {
	cmd := newFlagCommand(t, "--log-level", "trace")
	cfg, fromFile, err := loadConfig(cmd)
	require.NoError(t, err)

	_, err = configureLogger(cmd, cfg, fromFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: trace")
}

func TestSetupAppliesHCIDevice(t *testing.T) {
	original := devicefactory.HCIDevice()
	t.Cleanup(func() { devicefactory.SetHCIDevice(original) })

	cmd := newFlagCommand(t, "--config", writeConfig(t, "hci_device: 2\n"))
	cfg, _, err := setup(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.HCIDevice)
	assert.Equal(t, 2, devicefactory.HCIDevice(), "the inquiry scanner MUST use the configured adapter")
	assert.Equal(t, 2, goble.HCIDevice, "the LE scanner MUST use the configured adapter")

	cmd = newFlagCommand(t, "--config", writeConfig(t, "hci_device: 2\n"), "--hci", "1")
	cfg, _, err = setup(cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.HCIDevice, "--hci MUST override the config file")
	assert.Equal(t, 1, devicefactory.HCIDevice())
	assert.Equal(t, 1, goble.HCIDevice)
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	cmd := newFlagCommand(t, "--config", writeConfig(t, "samples: 0\n"))
	_, _, err := setup(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "samples")
}
