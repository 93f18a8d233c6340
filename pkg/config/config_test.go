package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/ccsniffer/pkg/cc2531"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, cc2531.VendorID, cfg.Device.VendorID)
	assert.Equal(t, cc2531.ProductID, cfg.Device.ProductID)
	assert.Equal(t, 13, cfg.Capture.Channel)
	assert.Equal(t, "capture.pcapng", cfg.Capture.File)
	assert.False(t, cfg.Capture.Debug)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, cfg, Default())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccsniffer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  selector: "1:7"
capture:
  channel: 25
  file: /tmp/zigbee.pcapng
  debug: true
logging:
  level: debug
  format: json
metrics:
  enable: true
  addr: 127.0.0.1:9000
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1:7", cfg.Device.Selector)
	assert.Equal(t, 25, cfg.Capture.Channel)
	assert.Equal(t, "/tmp/zigbee.pcapng", cfg.Capture.File)
	assert.True(t, cfg.Capture.Debug)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "127.0.0.1:9000", cfg.Metrics.Addr)
	assert.Equal(t, cc2531.VendorID, cfg.Device.VendorID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CCSNIFF_CAPTURE_CHANNEL", "20")
	t.Setenv("CCSNIFF_CAPTURE_FILE", "env.pcapng")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Capture.Channel)
	assert.Equal(t, "env.pcapng", cfg.Capture.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{name: "lowest channel", modify: func(c *Config) { c.Capture.Channel = 11 }},
		{name: "highest channel", modify: func(c *Config) { c.Capture.Channel = 26 }},
		{name: "channel too low", modify: func(c *Config) { c.Capture.Channel = 10 }, err: ErrInvalidChannel},
		{name: "channel too high", modify: func(c *Config) { c.Capture.Channel = 27 }, err: ErrInvalidChannel},
		{name: "no output", modify: func(c *Config) { c.Capture.File = " " }, err: ErrNoOutput},
		{name: "no vendor", modify: func(c *Config) { c.Device.VendorID = 0 }, err: ErrInvalidDevice},
		{name: "negative channel", modify: func(c *Config) { c.Capture.Channel = -13 }, err: ErrInvalidChannel},
		{name: "vendor too wide", modify: func(c *Config) { c.Device.VendorID = 0x10451 }, err: ErrInvalidDevice},
		{name: "product too wide", modify: func(c *Config) { c.Device.ProductID = 0x116A8 }, err: ErrInvalidDevice},
		{name: "highest id", modify: func(c *Config) { c.Device.ProductID = 0xFFFF }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	cfg := Default()
	cfg.Capture.Channel = 15
	cfg.Capture.Debug = true
	cfg.Device.Selector = "#1"

	path := filepath.Join(t.TempDir(), "etc", "saved.yaml")
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  channel: 30\n"), 0644))

	_, err := LoadFromFile(path)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "..", "etc", "ccsniffer.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsValuesBeyondFieldWidth(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{name: "channel 267", yaml: "capture:\n  channel: 267\n", err: ErrInvalidChannel},
		{name: "channel 270", yaml: "capture:\n  channel: 270\n", err: ErrInvalidChannel},
		{name: "vendor 0x10451", yaml: "device:\n  vendorId: 0x10451\n", err: ErrInvalidDevice},
		{name: "product 0x116A8", yaml: "device:\n  productId: 0x116A8\n", err: ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "wide.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := LoadFromFile(path)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEnvChannelOutOfRange(t *testing.T) {
	t.Setenv("CCSNIFF_CAPTURE_CHANNEL", "267")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 267, cfg.Capture.Channel)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidChannel)
}
