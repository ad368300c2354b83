package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/wbb/internal/devicefactory"
	"github.com/srg/wbb/pkg/config"
)

// loadConfig returns the defaults, or the --config file on top of them.
// fromFile reports whether a file was read.
func loadConfig(cmd *cobra.Command) (cfg *config.Config, fromFile bool, err error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), false, nil
	}

	cfg, err = config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// configureLogger creates a logger with the appropriate log level.
// --log-level wins over the config file's log_level; without either the
// logger stays silent.
func configureLogger(cmd *cobra.Command, cfg *config.Config, fromFile bool) (*logrus.Logger, error) {
	// Default to panic level (essentially silent for normal operations)
	logLevel := logrus.PanicLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	switch {
	case logLevelStr != "":
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	case fromFile:
		logLevel = cfg.Level()
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}

// setup loads configuration, applies global flags and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, fromFile, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	if hci, _ := cmd.Flags().GetInt("hci"); hci >= 0 {
		cfg.HCIDevice = hci
	}
	devicefactory.SetHCIDevice(cfg.HCIDevice)

	logger, err := configureLogger(cmd, cfg, fromFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
