package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfu.yaml")
	content := `
pool:
  partitions: 4
  statistics: true
  bookkeeping: true
  history_limit: 32
load:
  packet_rate_overload: 1000
  packet_rate_recovery: 700
  cpu_overload: 3.5
  cpu_recovery: 2
  sample_interval: 2s
  impact_time: 30s
relay:
  listen_address: "0.0.0.0:5000"
  workers: 2
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{220, 775, 1500}, cfg.Pool.Thresholds, "defaults survive")
	assert.Equal(t, 4, cfg.Pool.Partitions)
	assert.True(t, cfg.Pool.Bookkeeping)
	assert.Equal(t, 32, cfg.Pool.HistoryLimit)
	assert.Equal(t, 2*time.Second, cfg.Load.SampleInterval)
	assert.Equal(t, 30*time.Second, cfg.Load.ImpactTime)
	assert.True(t, cfg.Load.CPUEnabled())
	assert.Equal(t, "0.0.0.0:5000", cfg.Relay.ListenAddress)
	assert.Equal(t, 1500, cfg.Relay.MaxPacketSize)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	assert.Equal(t, map[string]any{
		"pool.statistics_enabled":  true,
		"pool.bookkeeping_enabled": true,
	}, cfg.RuntimeKeys())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("pool: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty thresholds", func(c *Config) { c.Pool.Thresholds = nil }, "pool config: thresholds cannot be empty"},
		{"descending thresholds", func(c *Config) { c.Pool.Thresholds = []int{775, 220} }, "strictly ascending"},
		{"zero partitions", func(c *Config) { c.Pool.Partitions = 0 }, "partitions must be at least 1"},
		{"negative history", func(c *Config) { c.Pool.HistoryLimit = -1 }, "history_limit"},
		{"recovery above overload", func(c *Config) { c.Load.PacketRateRecovery = c.Load.PacketRateOverload }, "load config: packet_rate_recovery"},
		{"cpu recovery above overload", func(c *Config) { c.Load.CPUOverload, c.Load.CPURecovery = 2, 3 }, "cpu_recovery"},
		{"zero interval", func(c *Config) { c.Load.SampleInterval = 0 }, "sample_interval"},
		{"reduction scale", func(c *Config) { c.Load.ReductionScale = 1 }, "reduction_scale"},
		{"recover scale", func(c *Config) { c.Load.RecoverScale = 0.5 }, "recover_scale"},
		{"bad listen address", func(c *Config) { c.Relay.ListenAddress = "nope" }, "relay config: listen_address"},
		{"huge packets", func(c *Config) { c.Relay.MaxPacketSize = 70000 }, "max_packet_size"},
		{"bad management address", func(c *Config) { c.Management.Address = "" }, "management config"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging config: level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "format must be text or json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_DisabledManagementSkipsAddress(t *testing.T) {
	cfg := Default()
	cfg.Management.Enabled = false
	cfg.Management.Address = ""
	assert.NoError(t, cfg.Validate())
}
