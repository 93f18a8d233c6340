package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SaveToFile writes the effective configuration to path. The format follows
// the file extension (.yaml, .json, .toml).
func SaveToFile(configuration *Config, path string) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	v := viper.New()
	v.Set("device", map[string]any{
		"vendorId":  configuration.Device.VendorID,
		"productId": configuration.Device.ProductID,
		"selector":  configuration.Device.Selector,
	})
	v.Set("capture", map[string]any{
		"channel":  configuration.Capture.Channel,
		"file":     configuration.Capture.File,
		"debug":    configuration.Capture.Debug,
		"snapLen":  configuration.Capture.SnapLen,
		"dumpRate": configuration.Capture.DumpRate,
	})
	v.Set("logging", map[string]any{
		"level":  configuration.Logging.Level,
		"format": configuration.Logging.Format,
		"file": map[string]any{
			"filename":   configuration.Logging.File.Filename,
			"maxSize":    configuration.Logging.File.MaxSizeMB,
			"maxBackups": configuration.Logging.File.MaxBackups,
			"maxAge":     configuration.Logging.File.MaxAgeDays,
			"compress":   configuration.Logging.File.Compress,
		},
	})
	v.Set("metrics", map[string]any{
		"enable": configuration.Metrics.Enable,
		"addr":   configuration.Metrics.Addr,
		"path":   configuration.Metrics.Path,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadFromFile reads and validates a configuration file
func LoadFromFile(path string) (*Config, error) {
	configuration, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return configuration, nil
}
