package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
adapter: mcp2221
address: 0x4a
settling_time: 750ms
monitor:
  interval: 30s
  max_failures: 3
outputs:
  console: false
  mqtt:
    server: tcp://broker:1883
    client_id: kitchen
    discovery_topic: homeassistant/sensor/kitchen/config
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds1624.yml")
	writeFile(t, path, sample)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterMCP2221, cfg.Adapter)
	assert.Equal(t, uint16(0x4a), cfg.Address)
	assert.Equal(t, 750*time.Millisecond, cfg.SettlingTime)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 3, cfg.Monitor.MaxFailures)
	assert.Equal(t, "ds1624", cfg.Monitor.Name, "defaults are kept")
	assert.False(t, cfg.Outputs.Console)
	require.NotNil(t, cfg.Outputs.MQTT)
	assert.Equal(t, "kitchen", cfg.Outputs.MQTT.ClientID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds1624.yml")
	writeFile(t, path, "adapter: [sim")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mutate func(c *Config)
		valid  bool
	}{
		"defaults":          {func(c *Config) {}, true},
		"unknown adapter":   {func(c *Config) { c.Adapter = "spi" }, false},
		"address too low":   {func(c *Config) { c.Address = 0x20 }, false},
		"last address":      {func(c *Config) { c.Address = 0x4f }, true},
		"negative settling": {func(c *Config) { c.SettlingTime = -time.Second }, false},
		"zero settling":     {func(c *Config) { c.SettlingTime = 0 }, true},
		"zero interval":     {func(c *Config) { c.Monitor.Interval = 0 }, false},
		"mqtt no server":    {func(c *Config) { c.Outputs.MQTT = &MQTT{} }, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds1624.yml")
	writeFile(t, path, "adapter: sim\n")

	var mx sync.Mutex
	var got []Config
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) {
			mx.Lock()
			got = append(got, c)
			mx.Unlock()
		})
	}()

	writeFile(t, path, "adapter: sim\nmonitor:\n  interval: 2s\n")
	assert.Eventually(t, func() bool {
		mx.Lock()
		defer mx.Unlock()
		for _, c := range got {
			if c.Monitor.Interval == 2*time.Second {
				return true
			}
		}
		// the watcher may not be registered yet
		_ = os.WriteFile(path, []byte("adapter: sim\nmonitor:\n  interval: 2s\n"), 0o644)
		return false
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
