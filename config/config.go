package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Pool       PoolConfig       `yaml:"pool"`
	Load       LoadConfig       `yaml:"load"`
	Relay      RelayConfig      `yaml:"relay"`
	Management ManagementConfig `yaml:"management"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PoolConfig contains buffer allocator settings
type PoolConfig struct {
	Thresholds        []int `yaml:"thresholds"`
	Partitions        int   `yaml:"partitions"`
	PartitionCapacity int   `yaml:"partition_capacity"`
	Statistics        bool  `yaml:"statistics"`
	Bookkeeping       bool  `yaml:"bookkeeping"`
	HistoryLimit      int   `yaml:"history_limit"` // events per buffer, 0 keeps all
}

// LoadConfig contains load-shedding settings. A zero CPU overload threshold
// disables the CPU source.
type LoadConfig struct {
	ReducerEnabled bool `yaml:"reducer_enabled"`

	// Packets per second.
	PacketRateOverload float64 `yaml:"packet_rate_overload"`
	PacketRateRecovery float64 `yaml:"packet_rate_recovery"`

	// Fractions of one core.
	CPUOverload float64 `yaml:"cpu_overload"`
	CPURecovery float64 `yaml:"cpu_recovery"`

	SampleInterval time.Duration `yaml:"sample_interval"`
	ImpactTime     time.Duration `yaml:"impact_time"`
	ReductionScale float64       `yaml:"reduction_scale"`
	RecoverScale   float64       `yaml:"recover_scale"`
	MinLastN       int           `yaml:"min_last_n"`
}

// RelayConfig contains UDP relay settings
type RelayConfig struct {
	ListenAddress string `yaml:"listen_address"`
	Workers       int    `yaml:"workers"` // 0 means one per CPU
	QueueSize     int    `yaml:"queue_size"`
	MaxPacketSize int    `yaml:"max_packet_size"`
}

// ManagementConfig contains HTTP management API settings
type ManagementConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Thresholds:        []int{220, 775, 1500},
			Partitions:        8,
			PartitionCapacity: 1024,
		},
		Load: LoadConfig{
			ReducerEnabled:     true,
			PacketRateOverload: 50000,
			PacketRateRecovery: 40000,
			SampleInterval:     10 * time.Second,
			ImpactTime:         time.Minute,
			ReductionScale:     0.75,
			RecoverScale:       1.25,
			MinLastN:           1,
		},
		Relay: RelayConfig{
			ListenAddress: ":10000",
			QueueSize:     1024,
			MaxPacketSize: 1500,
		},
		Management: ManagementConfig{
			Enabled: true,
			Address: "127.0.0.1:8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses the configuration file on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool config: %w", err)
	}
	if err := c.Load.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}
	if err := c.Management.Validate(); err != nil {
		return fmt.Errorf("management config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates allocator configuration
func (p *PoolConfig) Validate() error {
	if len(p.Thresholds) == 0 {
		return fmt.Errorf("thresholds cannot be empty")
	}
	for i, t := range p.Thresholds {
		if t <= 0 || (i > 0 && t <= p.Thresholds[i-1]) {
			return fmt.Errorf("thresholds must be positive and strictly ascending, got %v", p.Thresholds)
		}
	}
	if p.Partitions < 1 {
		return fmt.Errorf("partitions must be at least 1, got %d", p.Partitions)
	}
	if p.PartitionCapacity < 1 {
		return fmt.Errorf("partition_capacity must be at least 1, got %d", p.PartitionCapacity)
	}
	if p.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative, got %d", p.HistoryLimit)
	}
	return nil
}

// Validate validates load-shedding configuration
func (l *LoadConfig) Validate() error {
	if l.PacketRateOverload <= 0 {
		return fmt.Errorf("packet_rate_overload must be positive, got %v", l.PacketRateOverload)
	}
	if l.PacketRateRecovery < 0 || l.PacketRateRecovery >= l.PacketRateOverload {
		return fmt.Errorf("packet_rate_recovery must be in [0, %v), got %v", l.PacketRateOverload, l.PacketRateRecovery)
	}
	if l.CPUOverload < 0 {
		return fmt.Errorf("cpu_overload cannot be negative, got %v", l.CPUOverload)
	}
	if l.CPUOverload > 0 && (l.CPURecovery < 0 || l.CPURecovery >= l.CPUOverload) {
		return fmt.Errorf("cpu_recovery must be in [0, %v), got %v", l.CPUOverload, l.CPURecovery)
	}
	if l.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be positive, got %v", l.SampleInterval)
	}
	if l.ImpactTime <= 0 {
		return fmt.Errorf("impact_time must be positive, got %v", l.ImpactTime)
	}
	if l.ReductionScale <= 0 || l.ReductionScale >= 1 {
		return fmt.Errorf("reduction_scale must be in (0, 1), got %v", l.ReductionScale)
	}
	if l.RecoverScale <= 1 {
		return fmt.Errorf("recover_scale must be greater than 1, got %v", l.RecoverScale)
	}
	if l.MinLastN < 0 {
		return fmt.Errorf("min_last_n cannot be negative, got %d", l.MinLastN)
	}
	return nil
}

// CPUEnabled reports whether the CPU source is configured.
func (l *LoadConfig) CPUEnabled() bool { return l.CPUOverload > 0 }

// Validate validates relay configuration
func (r *RelayConfig) Validate() error {
	if _, _, err := net.SplitHostPort(r.ListenAddress); err != nil {
		return fmt.Errorf("listen_address %q: %w", r.ListenAddress, err)
	}
	if r.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", r.Workers)
	}
	if r.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", r.QueueSize)
	}
	if r.MaxPacketSize < 1 || r.MaxPacketSize > 65535 {
		return fmt.Errorf("max_packet_size must be between 1 and 65535, got %d", r.MaxPacketSize)
	}
	return nil
}

// Validate validates management API configuration
func (m *ManagementConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Address); err != nil {
		return fmt.Errorf("address %q: %w", m.Address, err)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := l.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
}

// SlogLevel converts Level to a slog.Level.
func (l *LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("level %q: %w", l.Level, err)
	}
	return level, nil
}

// RuntimeKeys returns the settings that may change without a restart, keyed
// like the control plane expects them.
func (c *Config) RuntimeKeys() map[string]any {
	return map[string]any{
		"pool.statistics_enabled":  c.Pool.Statistics,
		"pool.bookkeeping_enabled": c.Pool.Bookkeeping,
	}
}
