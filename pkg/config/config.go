// Package config provides YAML-based configuration loading for a
// clustering node, with environment overrides and startup validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root node configuration.
type Config struct {
	// NodeID is this node's stable integer identity.
	NodeID int `mapstructure:"node_id"`
	// NumHosts is the size of the addressable id space; data destinations
	// are drawn from [0, NumHosts).
	NumHosts int `mapstructure:"num_hosts"`

	// Group is the well-known multicast group beacons are broadcast to.
	Group string `mapstructure:"group"`
	// LocalPort is the UDP port the node binds; DestPort is where group
	// traffic is sent. They normally match.
	LocalPort int `mapstructure:"local_port"`
	DestPort  int `mapstructure:"dest_port"`
	// Interface optionally pins the multicast join to one interface.
	Interface string `mapstructure:"interface"`

	// WireFormat selects the packet codec: cbor (default) or json.
	WireFormat string `mapstructure:"wire_format"`

	// Timers driving the protocol. All must be non-negative;
	// MaintenanceInterval must be strictly positive.
	HelloInterval       time.Duration `mapstructure:"hello_interval"`
	HelloJitter         time.Duration `mapstructure:"hello_jitter"`
	NeighborTimeout     time.Duration `mapstructure:"neighbor_timeout"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	ColoringInterval    time.Duration `mapstructure:"coloring_interval"`
	ColoringJitter      time.Duration `mapstructure:"coloring_jitter"`
	DataInterval        time.Duration `mapstructure:"data_interval"`
	DataJitter          time.Duration `mapstructure:"data_jitter"`
	ForwardJitter       time.Duration `mapstructure:"forward_jitter"`

	// InitialTTL is the hop limit stamped on originated data packets.
	InitialTTL int `mapstructure:"initial_ttl"`

	// Log holds logging configuration.
	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`
	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		NodeID:              0,
		NumHosts:            16,
		Group:               "239.42.42.42",
		LocalPort:           9797,
		DestPort:            9797,
		WireFormat:          "cbor",
		HelloInterval:       time.Second,
		HelloJitter:         200 * time.Millisecond,
		NeighborTimeout:     3 * time.Second,
		MaintenanceInterval: time.Second,
		ColoringInterval:    2 * time.Second,
		ColoringJitter:      500 * time.Millisecond,
		DataInterval:        0,
		DataJitter:          100 * time.Millisecond,
		ForwardJitter:       20 * time.Millisecond,
		InitialTTL:          8,
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment
// overrides. Environment variables use the prefix GCMESH with `.`/`-`
// replaced by `_`. Example: GCMESH_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GCMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("node_id", cfg.NodeID)
	v.SetDefault("num_hosts", cfg.NumHosts)
	v.SetDefault("group", cfg.Group)
	v.SetDefault("local_port", cfg.LocalPort)
	v.SetDefault("dest_port", cfg.DestPort)
	v.SetDefault("interface", cfg.Interface)
	v.SetDefault("wire_format", cfg.WireFormat)
	v.SetDefault("hello_interval", cfg.HelloInterval)
	v.SetDefault("hello_jitter", cfg.HelloJitter)
	v.SetDefault("neighbor_timeout", cfg.NeighborTimeout)
	v.SetDefault("maintenance_interval", cfg.MaintenanceInterval)
	v.SetDefault("coloring_interval", cfg.ColoringInterval)
	v.SetDefault("coloring_jitter", cfg.ColoringJitter)
	v.SetDefault("data_interval", cfg.DataInterval)
	v.SetDefault("data_jitter", cfg.DataJitter)
	v.SetDefault("forward_jitter", cfg.ForwardJitter)
	v.SetDefault("initial_ttl", cfg.InitialTTL)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		if envPath := os.Getenv("GCMESH_CONFIG"); envPath != "" {
			path = envPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gcmesh")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".gcmesh"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the node must refuse to start with.
func (c *Config) Validate() error {
	if c.NodeID < 0 {
		return fmt.Errorf("node_id must be >= 0, got %d", c.NodeID)
	}
	if c.NumHosts <= 0 {
		return fmt.Errorf("num_hosts must be > 0, got %d", c.NumHosts)
	}
	if c.NodeID >= c.NumHosts {
		return fmt.Errorf("node_id %d outside id space [0,%d)", c.NodeID, c.NumHosts)
	}
	if c.LocalPort <= 0 || c.LocalPort > 65535 {
		return fmt.Errorf("local_port out of range: %d", c.LocalPort)
	}
	if c.DestPort <= 0 || c.DestPort > 65535 {
		return fmt.Errorf("dest_port out of range: %d", c.DestPort)
	}
	for name, d := range map[string]time.Duration{
		"hello_interval":    c.HelloInterval,
		"hello_jitter":      c.HelloJitter,
		"neighbor_timeout":  c.NeighborTimeout,
		"coloring_interval": c.ColoringInterval,
		"coloring_jitter":   c.ColoringJitter,
		"data_interval":     c.DataInterval,
		"data_jitter":       c.DataJitter,
		"forward_jitter":    c.ForwardJitter,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, d)
		}
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance_interval must be > 0, got %v", c.MaintenanceInterval)
	}
	if c.InitialTTL <= 0 {
		return fmt.Errorf("initial_ttl must be > 0, got %d", c.InitialTTL)
	}
	switch c.WireFormat {
	case "cbor", "json":
	default:
		return fmt.Errorf("unknown wire_format: %q", c.WireFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
