package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileFillsUnsetValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torq-enum.yaml")
	data := []byte("bridge: bench-rig.local:5650\nnode_id: 42\ncollection_window: 2s\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Config{
		ConfigFile:       path,
		NodeID:           defaultNodeID,
		CollectionWindow: defaultCollectionWindow,
		OnlineTimeout:    defaultOnlineTimeout,
		PollInterval:     defaultPollInterval,
		LogLevel:         "info",
	}
	require.NoError(t, cfg.LoadFile())

	assert.Equal(t, "bench-rig.local:5650", cfg.Bridge)
	assert.Equal(t, uint(42), cfg.NodeID)
	assert.Equal(t, 2*time.Second, cfg.CollectionWindow)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched by the file
	assert.Equal(t, defaultOnlineTimeout, cfg.OnlineTimeout)
}

func TestLoadFileMissingFile(t *testing.T) {
	cfg := Config{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}
	assert.Error(t, cfg.LoadFile())
}

func TestLoadFileNoFileConfigured(t *testing.T) {
	cfg := Config{}
	assert.NoError(t, cfg.LoadFile())
}

func TestValidate(t *testing.T) {
	valid := Config{
		NodeID:           126,
		CollectionWindow: time.Second,
		OnlineTimeout:    time.Second,
		PollInterval:     100 * time.Millisecond,
		LogLevel:         "info",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero node id", func(c *Config) { c.NodeID = 0 }},
		{"node id too large", func(c *Config) { c.NodeID = 300 }},
		{"zero collection window", func(c *Config) { c.CollectionWindow = 0 }},
		{"zero online timeout", func(c *Config) { c.OnlineTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
