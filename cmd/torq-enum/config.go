package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the torq-enum configuration. Fields can come from flags or
// from a YAML config file; flags set on the command line win.
type Config struct {
	ConfigFile string `yaml:"-"`

	Bridge           string        `yaml:"bridge"`
	Discover         bool          `yaml:"discover"`
	NodeID           uint          `yaml:"node_id"`
	CollectionWindow time.Duration `yaml:"collection_window"`
	OnlineTimeout    time.Duration `yaml:"online_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	LogLevel         string        `yaml:"log_level"`
	EventLog         string        `yaml:"event_log"`
	Interactive      bool          `yaml:"interactive"`
}

// flagNames maps Config fields to their flag names so LoadFile can tell
// which values were set explicitly on the command line.
var flagNames = map[string]func(c *Config, from *Config){
	"bridge":            func(c, from *Config) { c.Bridge = from.Bridge },
	"discover":          func(c, from *Config) { c.Discover = from.Discover },
	"node-id":           func(c, from *Config) { c.NodeID = from.NodeID },
	"collection-window": func(c, from *Config) { c.CollectionWindow = from.CollectionWindow },
	"online-timeout":    func(c, from *Config) { c.OnlineTimeout = from.OnlineTimeout },
	"poll-interval":     func(c, from *Config) { c.PollInterval = from.PollInterval },
	"run-timeout":       func(c, from *Config) { c.RunTimeout = from.RunTimeout },
	"request-timeout":   func(c, from *Config) { c.RequestTimeout = from.RequestTimeout },
	"log-level":         func(c, from *Config) { c.LogLevel = from.LogLevel },
	"event-log":         func(c, from *Config) { c.EventLog = from.EventLog },
	"interactive":       func(c, from *Config) { c.Interactive = from.Interactive },
}

// LoadFile merges the YAML config file (if any) into the configuration.
// File values fill in everything, then values from flags that were set
// explicitly are restored on top.
func (c *Config) LoadFile() error {
	if c.ConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.ConfigFile, err)
	}

	fromFlags := *c
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", c.ConfigFile, err)
	}

	flag.Visit(func(f *flag.Flag) {
		if restore, ok := flagNames[f.Name]; ok {
			restore(c, &fromFlags)
		}
	})
	return nil
}

// Validate checks the configuration for values the rest of the tool
// assumes to be sane.
func (c *Config) Validate() error {
	if c.NodeID == 0 || c.NodeID > 255 {
		return fmt.Errorf("node-id must be in 1..255, got %d", c.NodeID)
	}
	if c.CollectionWindow <= 0 {
		return fmt.Errorf("collection-window must be positive")
	}
	if c.OnlineTimeout <= 0 {
		return fmt.Errorf("online-timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}
