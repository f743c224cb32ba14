// Package config loads the monitor's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/srg/hrmon/scanner"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" decode directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds monitor settings. Flags override file values, file values
// override defaults.
type Config struct {
	// Listen is the loopback address the status endpoint binds to.
	Listen string `yaml:"listen" default:"127.0.0.1:8080"`

	// Device is the preferred sensor address; when set, monitor can start
	// without an address argument and reconnect using the fast scan profile.
	Device string `yaml:"device"`

	// MinRSSI is the weakest signal (dBm) the scan command retains.
	MinRSSI int `yaml:"min_rssi" default:"-90"`

	// HeartRateOnly restricts scan output to devices advertising the Heart
	// Rate service.
	HeartRateOnly bool `yaml:"heart_rate_only"`

	ConnectTimeout   Duration `yaml:"connect_timeout"`
	ScanDuration     Duration `yaml:"scan_duration"`
	FastScanDuration Duration `yaml:"fast_scan_duration"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		ConnectTimeout:   Duration(30 * time.Second),
		ScanDuration:     Duration(scanner.ThoroughDuration),
		FastScanDuration: Duration(scanner.FastDuration),
	}
	defaults.SetDefaults(c)
	return c
}

// Load reads a YAML config file over the defaults. Fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return c, nil
}
