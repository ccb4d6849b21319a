// Package config loads and validates the sacnd configuration file.
//
// Configuration is YAML with strict field checking: unknown keys are
// rejected so typos fail loudly instead of silently falling back to
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strandlight/sacnd/internal/protocol"
)

// Config holds the daemon settings.
type Config struct {
	// Universe is the E1.31 universe to listen on (1-63999).
	Universe uint16 `yaml:"universe"`

	// Interface optionally names the network interface to join the
	// multicast group on. Empty lets the kernel pick.
	Interface string `yaml:"interface"`

	// MaxSources is the admission ceiling for concurrent sources.
	MaxSources int `yaml:"max_sources"`

	// IgnorePreview admits preview-flagged packets into arbitration.
	IgnorePreview bool `yaml:"ignore_preview"`

	// DefaultPriority is the winning priority of an empty universe.
	DefaultPriority uint8 `yaml:"default_priority"`

	// DataLossTimeout overrides the E1.31 2.5s source timeout.
	DataLossTimeout Duration `yaml:"data_loss_timeout"`

	// HistoryDB is an optional SQLite path for the source event log.
	HistoryDB string `yaml:"history_db"`

	Output Output `yaml:"output"`
}

// Output configures the LED sink.
type Output struct {
	// Device is the SPI device path (e.g. /dev/spidev0.0). Empty means
	// render to the log instead of hardware.
	Device string `yaml:"device"`

	// LEDs is the number of LEDs on the string.
	LEDs int `yaml:"leds"`

	// Brightness is the APA102 global brightness (0-31).
	Brightness uint8 `yaml:"brightness"`

	// ChannelOffset is the first channel slot mapped onto LED zero.
	// LED i renders slots offset+3i, +1, +2 as R, G, B.
	ChannelOffset int `yaml:"channel_offset"`
}

// Duration wraps time.Duration for YAML values like "2500ms" or "3s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"2500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the settings used when the file leaves them unset.
func Default() *Config {
	return &Config{
		Universe:        1,
		MaxSources:      8,
		DefaultPriority: protocol.DefaultPriority,
		DataLossTimeout: Duration(protocol.DataLossTimeout),
		Output: Output{
			LEDs:       8,
			Brightness: 31,
		},
	}
}

// Load reads, parses, and validates a configuration file. Fields absent
// from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // reject typos like "univrse:"
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		// An empty file is a valid all-defaults configuration.
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Universe < 1 || c.Universe > 63999 {
		return fmt.Errorf("universe %d out of range 1-63999", c.Universe)
	}
	if c.MaxSources < 1 {
		return fmt.Errorf("max_sources must be at least 1, got %d", c.MaxSources)
	}
	if c.DefaultPriority > protocol.MaxPriority {
		return fmt.Errorf("default_priority %d exceeds maximum %d", c.DefaultPriority, protocol.MaxPriority)
	}
	if c.DataLossTimeout <= 0 {
		return fmt.Errorf("data_loss_timeout must be positive")
	}
	if c.Output.LEDs < 0 {
		return fmt.Errorf("output.leds must not be negative, got %d", c.Output.LEDs)
	}
	if c.Output.Brightness > 31 {
		return fmt.Errorf("output.brightness %d exceeds maximum 31", c.Output.Brightness)
	}
	if c.Output.ChannelOffset < 0 {
		return fmt.Errorf("output.channel_offset must not be negative, got %d", c.Output.ChannelOffset)
	}
	if need := c.Output.ChannelOffset + 3*c.Output.LEDs; need > protocol.MaxChannels {
		return fmt.Errorf("output needs %d channel slots (offset %d + 3x%d LEDs), universe has %d",
			need, c.Output.ChannelOffset, c.Output.LEDs, protocol.MaxChannels)
	}
	return nil
}
