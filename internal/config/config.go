// Package config loads leakcheck settings from a yaml file, RTCGUARD_*
// environment variables and flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

// EnvPrefix is prepended to every environment override, e.g.
// RTCGUARD_SERVER_ADDR for server.addr.
const EnvPrefix = "RTCGUARD"

// Config is the root of the leakcheck configuration tree.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger"`
	Server ServerConfig `mapstructure:"server"`
	Guard  GuardConfig  `mapstructure:"guard"`
}

// LoggerConfig controls the process-wide zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // console or json
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// LogFile, when set, receives JSON logs rotated by size.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig configures the leak-check HTTP server.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	GatherTimeout time.Duration `mapstructure:"gather_timeout" yaml:"gather_timeout"`
}

// GuardConfig selects the guard policy and the ICE servers offered to peers.
type GuardConfig struct {
	Fallback        string            `mapstructure:"fallback" yaml:"fallback"`
	RelayOnly       bool              `mapstructure:"relay_only" yaml:"relay_only"`
	CandidateFilter bool              `mapstructure:"candidate_filter" yaml:"candidate_filter"`
	MulticastDNS    bool              `mapstructure:"multicast_dns" yaml:"multicast_dns"`
	ICEServers      []ICEServerConfig `mapstructure:"ice_servers" yaml:"ice_servers"`
}

// ICEServerConfig mirrors webrtc.ICEServer with password credentials only.
type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls" yaml:"urls"`
	Username   string   `mapstructure:"username" yaml:"username"`
	Credential string   `mapstructure:"credential" yaml:"credential"`
}

// SetDefaults registers the default value of every key. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "leakcheck")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.gather_timeout", 10*time.Second)

	v.SetDefault("guard.fallback", guard.FallbackStrict.String())
	v.SetDefault("guard.relay_only", false)
	v.SetDefault("guard.candidate_filter", true)
	v.SetDefault("guard.multicast_dns", true)
	v.SetDefault("guard.ice_servers", []ICEServerConfig{})
}

// NewViper returns a viper instance with defaults and environment overrides
// wired. Callers add a config file on top.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the yaml file at path into v. A missing default file is not
// an error when path is empty.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("leakcheck")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Load unmarshals v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.GatherTimeout <= 0 {
		return errors.New("server.gather_timeout must be positive")
	}
	if _, err := c.Guard.Policy(); err != nil {
		return fmt.Errorf("guard.fallback: %w", err)
	}
	for i, s := range c.Guard.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("guard.ice_servers[%d] has no urls", i)
		}
	}
	return nil
}

// Policy converts the textual settings into a guard.Policy.
func (g GuardConfig) Policy() (guard.Policy, error) {
	fallback, err := guard.ParseFallbackPolicy(g.Fallback)
	if err != nil {
		return guard.Policy{}, err
	}
	return guard.Policy{Fallback: fallback, RelayOnly: g.RelayOnly}, nil
}

// Options returns the guard options matching g.
func (g GuardConfig) Options() ([]guard.Option, error) {
	policy, err := g.Policy()
	if err != nil {
		return nil, err
	}
	return []guard.Option{
		guard.WithFallbackPolicy(policy.Fallback),
		guard.WithRelayOnly(policy.RelayOnly),
		guard.WithCandidateFilter(g.CandidateFilter),
	}, nil
}

// WebRTC returns the configured servers as pion ICE servers.
func (g GuardConfig) WebRTC() []webrtc.ICEServer {
	if len(g.ICEServers) == 0 {
		return nil
	}
	out := make([]webrtc.ICEServer, 0, len(g.ICEServers))
	for _, s := range g.ICEServers {
		server := webrtc.ICEServer{
			URLs:     append([]string(nil), s.URLs...),
			Username: s.Username,
		}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}
