// Package config loads the revtree configuration file (HCL).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the root of a configuration file.
//
//	log_level = "debug"
//	journal { path = "revtree.db" }
//	stress {
//	  committers = 2
//	  readers    = 4
//	  duration   = "2s"
//	}
//	inspect { listen = "127.0.0.1:0" }
type Config struct {
	LogLevel string         `hcl:"log_level,optional"`
	Journal  *JournalConfig `hcl:"journal,block"`
	Stress   *StressConfig  `hcl:"stress,block"`
	Inspect  *InspectConfig `hcl:"inspect,block"`
}

// JournalConfig enables the SQLite journal.
type JournalConfig struct {
	Path      string `hcl:"path"`
	QueueSize int    `hcl:"queue_size,optional"`
}

// StressConfig parameterizes the contention scenario.
type StressConfig struct {
	Committers int     `hcl:"committers,optional"`
	Readers    int     `hcl:"readers,optional"`
	Duration   string  `hcl:"duration,optional"`
	Rate       float64 `hcl:"rate,optional"`
	TryCommit  bool    `hcl:"try_commit,optional"`
	Consumer   bool    `hcl:"consumer,optional"`
}

// InspectConfig configures the NFS inspector.
type InspectConfig struct {
	Listen string `hcl:"listen,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load decodes the file at path and fills in defaults.
func Load(path string) (*Config, error) {
	var c Config
	if err := hclsimple.DecodeFile(path, nil, &c); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return finish(&c)
}

// Parse decodes src; filename selects the syntax and appears in diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	var c Config
	if err := hclsimple.Decode(filename, src, nil, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&c)
}

func finish(c *Config) (*Config, error) {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Stress == nil {
		c.Stress = &StressConfig{}
	}
	if c.Stress.Committers == 0 {
		c.Stress.Committers = 2
	}
	if c.Stress.Readers == 0 {
		c.Stress.Readers = 4
	}
	if c.Stress.Duration == "" {
		c.Stress.Duration = "2s"
	}
	if c.Inspect == nil {
		c.Inspect = &InspectConfig{}
	}
	if c.Inspect.Listen == "" {
		c.Inspect.Listen = "127.0.0.1:0"
	}
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Journal != nil && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path must not be empty"))
	}
	if c.Stress != nil {
		if _, err := c.Stress.ParsedDuration(); err != nil {
			errs = append(errs, err)
		}
		if c.Stress.Committers < 0 || c.Stress.Readers < 0 {
			errs = append(errs, errors.New("stress worker counts must not be negative"))
		}
		if c.Stress.Rate < 0 {
			errs = append(errs, errors.New("stress.rate must not be negative"))
		}
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// ParsedDuration parses Duration.
func (s *StressConfig) ParsedDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.Duration)
	if err != nil {
		return 0, fmt.Errorf("stress.duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("stress.duration must be positive, got %s", d)
	}
	return d, nil
}
