package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gridllm/gridllm/coordinator"
)

// Config is the agent configuration, loadable from a TOML file and merged
// with flag overrides. Durations are strings in the file ("300s", "5m").
type Config struct {
	// BindAddr is the address the HTTP server listens on
	BindAddr string `toml:"bind_addr"`

	// Port is the HTTP listen port
	Port int `toml:"port"`

	// LogLevel is the hclog level to log at
	LogLevel string `toml:"log_level"`

	// DevMode runs the agent on an in-memory store
	DevMode bool `toml:"-"`

	// EnableDebug exposes the pprof endpoints
	EnableDebug bool `toml:"enable_debug"`

	// Redis configures the state backend
	Redis RedisConfig `toml:"redis"`

	// Tuning overrides coordinator timings
	Tuning TuningConfig `toml:"tuning"`
}

// RedisConfig is the redis connection block.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// TuningConfig overrides the coordinator's timing defaults. Empty fields
// keep the defaults.
type TuningConfig struct {
	LockTTL          string `toml:"lock_ttl"`
	HeartbeatStale   string `toml:"heartbeat_stale"`
	SweepInterval    string `toml:"sweep_interval"`
	SignatureWindow  string `toml:"signature_window"`
	NodeOnlineWindow string `toml:"node_online_window"`
	JobCleanupAge    string `toml:"job_cleanup_age"`
}

// DefaultConfig returns the baseline agent configuration.
func DefaultConfig() *Config {
	return &Config{
		BindAddr: "0.0.0.0",
		Port:     8420,
		LogLevel: "INFO",
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
	}
}

// LoadConfigFile parses an agent config from a TOML file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// Merge returns a new config with b's non-zero fields layered over a.
func (a *Config) Merge(b *Config) *Config {
	result := *a
	if b == nil {
		return &result
	}
	if b.BindAddr != "" {
		result.BindAddr = b.BindAddr
	}
	if b.Port != 0 {
		result.Port = b.Port
	}
	if b.LogLevel != "" {
		result.LogLevel = b.LogLevel
	}
	if b.DevMode {
		result.DevMode = true
	}
	if b.EnableDebug {
		result.EnableDebug = true
	}
	if b.Redis.Addr != "" {
		result.Redis.Addr = b.Redis.Addr
	}
	if b.Redis.Password != "" {
		result.Redis.Password = b.Redis.Password
	}
	if b.Redis.DB != 0 {
		result.Redis.DB = b.Redis.DB
	}
	if b.Tuning.LockTTL != "" {
		result.Tuning.LockTTL = b.Tuning.LockTTL
	}
	if b.Tuning.HeartbeatStale != "" {
		result.Tuning.HeartbeatStale = b.Tuning.HeartbeatStale
	}
	if b.Tuning.SweepInterval != "" {
		result.Tuning.SweepInterval = b.Tuning.SweepInterval
	}
	if b.Tuning.SignatureWindow != "" {
		result.Tuning.SignatureWindow = b.Tuning.SignatureWindow
	}
	if b.Tuning.NodeOnlineWindow != "" {
		result.Tuning.NodeOnlineWindow = b.Tuning.NodeOnlineWindow
	}
	if b.Tuning.JobCleanupAge != "" {
		result.Tuning.JobCleanupAge = b.Tuning.JobCleanupAge
	}
	return &result
}

// CoordinatorConfig converts the agent tuning block into a coordinator
// config, applying defaults for anything unset.
func (a *Config) CoordinatorConfig() (*coordinator.Config, error) {
	conf := coordinator.DefaultConfig()
	overrides := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"lock_ttl", a.Tuning.LockTTL, &conf.LockTTL},
		{"heartbeat_stale", a.Tuning.HeartbeatStale, &conf.HeartbeatStale},
		{"sweep_interval", a.Tuning.SweepInterval, &conf.SweepInterval},
		{"signature_window", a.Tuning.SignatureWindow, &conf.SignatureWindow},
		{"node_online_window", a.Tuning.NodeOnlineWindow, &conf.NodeOnlineWindow},
		{"job_cleanup_age", a.Tuning.JobCleanupAge, &conf.JobCleanupAge},
	}
	for _, o := range overrides {
		if o.raw == "" {
			continue
		}
		d, err := time.ParseDuration(o.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", o.name, err)
		}
		*o.field = d
	}
	return conf, nil
}
