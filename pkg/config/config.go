package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/herlein/ccsniffer/pkg/cc2531"
)

// DeviceConfig selects which USB sniffer to open
// IDs decode as int so out-of-range values reach Validate instead of wrapping.
type DeviceConfig struct {
	VendorID  int    `mapstructure:"vendorId"`
	ProductID int    `mapstructure:"productId"`
	Selector  string `mapstructure:"selector"`
}

// CaptureConfig controls the capture session
type CaptureConfig struct {
	// Channel is narrowed to uint8 only after Validate
	Channel int    `mapstructure:"channel"`
	File    string `mapstructure:"file"`
	Debug   bool   `mapstructure:"debug"`
	SnapLen uint32 `mapstructure:"snapLen"`
	// DumpRate throttles debug hex dumps (per second, 0 = unlimited)
	DumpRate float64 `mapstructure:"dumpRate"`
}

// LumberjackConfig configures rotating log files
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// Config is the top-level configuration
type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Capture CaptureConfig `mapstructure:"capture"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// EnvPrefix is prepended to environment overrides, e.g. CCSNIFF_CAPTURE_CHANNEL
const EnvPrefix = "CCSNIFF"

// Configuration errors
var (
	ErrInvalidChannel = errors.New("capture channel must be between 11 and 26")
	ErrNoOutput       = errors.New("capture file must be set")
	ErrInvalidDevice  = errors.New("device vendor and product ids must be between 0x0001 and 0xFFFF")
)

// Load reads configuration from path (YAML, JSON or TOML) and CCSNIFF_* environment
// variables on top of defaults. An empty path means defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	var cfg Config
	// Defaults are plain values, decoding them cannot fail
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.vendorId", cc2531.VendorID)
	v.SetDefault("device.productId", cc2531.ProductID)
	v.SetDefault("device.selector", "")

	v.SetDefault("capture.channel", cc2531.DefaultChannel)
	v.SetDefault("capture.file", "capture.pcapng")
	v.SetDefault("capture.debug", false)
	v.SetDefault("capture.snapLen", 0xFFFF)
	v.SetDefault("capture.dumpRate", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", false)
	v.SetDefault("metrics.addr", ":9276")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Capture.Channel < cc2531.MinChannel || c.Capture.Channel > cc2531.MaxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, c.Capture.Channel)
	}
	if strings.TrimSpace(c.Capture.File) == "" {
		return ErrNoOutput
	}
	if !validID(c.Device.VendorID) || !validID(c.Device.ProductID) {
		return fmt.Errorf("%w: %#x:%#x", ErrInvalidDevice, c.Device.VendorID, c.Device.ProductID)
	}
	return nil
}

func validID(id int) bool {
	return id > 0 && id <= 0xFFFF
}
