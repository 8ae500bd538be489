// Package config holds the stflash settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/flash"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/tool"
)

// DefaultLogFile is where the debug log goes unless configured otherwise.
const DefaultLogFile = "stm32_programmer_debug.log"

// Config controls tool location, timing and output files.
type Config struct {
	// Tool is the programmer executable (default: STM32_Programmer_CLI on PATH).
	Tool string `yaml:"tool" toml:"tool"`

	// Discovery settings
	QueryTimeout     time.Duration `yaml:"query_timeout" toml:"query_timeout"`         // Per tool call during discovery (default: 10s)
	QueryConcurrency int           `yaml:"query_concurrency" toml:"query_concurrency"` // Probes queried at once (default: 4)

	// Flashing and display cadence
	ClockInterval time.Duration `yaml:"clock_interval" toml:"clock_interval"` // Elapsed time updates (default: 200ms)
	TickInterval  time.Duration `yaml:"tick_interval" toml:"tick_interval"`   // Display refresh (default: 200ms)

	// Output files
	LogFile     string `yaml:"log_file" toml:"log_file"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`
	JournalFile string `yaml:"journal_file" toml:"journal_file"` // Empty disables the journal

	// Default images, overridable from the command line
	Firmware string `yaml:"firmware" toml:"firmware"`
	Loader   string `yaml:"loader" toml:"loader"`

	level logrus.Level
}

// DefaultConfig returns a Config matching the behaviour of the stock tool
// setup.
func DefaultConfig() *Config {
	return &Config{
		Tool:             tool.DefaultPath,
		QueryTimeout:     probe.DefaultTimeout,
		QueryConcurrency: probe.DefaultConcurrency,
		ClockInterval:    flash.DefaultClockInterval,
		TickInterval:     200 * time.Millisecond,
		LogFile:          DefaultLogFile,
		LogLevel:         "info",
		level:            logrus.InfoLevel,
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file on top of the
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	c := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: parse %s: unknown keys %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("config: unsupported file type %q (use .yaml or .toml)", filepath.Ext(path))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate fills in zero values with defaults and checks the log level.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Tool == "" {
		c.Tool = def.Tool
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = def.QueryTimeout
	}
	if c.QueryConcurrency < 1 {
		c.QueryConcurrency = 1
	}
	if c.ClockInterval <= 0 {
		c.ClockInterval = def.ClockInterval
	}
	if c.ClockInterval > flash.MaxClockInterval {
		c.ClockInterval = flash.MaxClockInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.level = level
	return nil
}

// Level returns the parsed log level. It is only meaningful after Validate.
func (c *Config) Level() logrus.Level {
	return c.level
}
