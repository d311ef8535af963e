// Package config loads upsd settings and UPS provisioning from YAML, with
// environment overrides and hot reload.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"avaneesh/nut-go/pkg/internal/logger"
	"avaneesh/nut-go/pkg/protocol"
	"avaneesh/nut-go/pkg/server"
	"avaneesh/nut-go/pkg/types"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Transports accepted in ServerSection.Transport
const (
	TransportTCP  = "tcp"
	TransportQUIC = "quic"
)

var ErrInvalidConfig = errors.New("invalid config")

// ServerSection holds listener and session settings.
type ServerSection struct {
	ID            string        `yaml:"id"`
	Listen        string        `yaml:"listen"`
	Port          int           `yaml:"port"`
	Transport     string        `yaml:"transport"`
	Authorized    []string      `yaml:"authorized"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
	SingleQuery   bool          `yaml:"single_query"`
	Version       string        `yaml:"version"`
}

// LogSection controls logging.
type LogSection struct {
	Level     string `yaml:"level"`
	WireDebug bool   `yaml:"wire_debug"`
}

// CacheSection selects the client cache store. An empty RedisAddr keeps
// the cache in memory.
type CacheSection struct {
	MaxEntries int           `yaml:"max_entries"`
	RedisAddr  string        `yaml:"redis_addr"`
	KeyPrefix  string        `yaml:"key_prefix"`
	TTL        time.Duration `yaml:"ttl"`
}

// RangeConfig is an inclusive numeric range.
type RangeConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// VariableConfig provisions one UPS variable.
type VariableConfig struct {
	Name         string        `yaml:"name"`
	Value        string        `yaml:"value"`
	Flags        []string      `yaml:"flags"`
	Description  string        `yaml:"description"`
	MaxLength    int           `yaml:"max_length"`
	Enumerations []string      `yaml:"enum"`
	Ranges       []RangeConfig `yaml:"ranges"`
}

// CommandConfig provisions one instant command.
type CommandConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// UPSConfig provisions one UPS.
type UPSConfig struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Variables   []VariableConfig `yaml:"variables"`
	Commands    []CommandConfig  `yaml:"commands"`
}

// Config is the top-level configuration.
type Config struct {
	Server ServerSection `yaml:"server"`
	Log    LogSection    `yaml:"log"`
	Cache  CacheSection  `yaml:"cache"`
	UPS    []UPSConfig   `yaml:"ups"`
}

// envOverrides are read by envdecode. Slices are ";"-separated.
type envOverrides struct {
	Listen        string        `env:"NUT_LISTEN"`
	Port          int           `env:"NUT_PORT"`
	Authorized    []string      `env:"NUT_AUTHORIZED"`
	ClientTimeout time.Duration `env:"NUT_CLIENT_TIMEOUT"`
	LogLevel      string        `env:"NUT_LOG_LEVEL"`
	RedisAddr     string        `env:"NUT_CACHE_REDIS_ADDR"`
}

// LoadConfig reads and parses a YAML configuration file. Fields missing
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a new Config with upsd defaults and no UPS entries.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSection{
			ID:            "upsd",
			Port:          protocol.DefaultPort,
			Transport:     TransportTCP,
			ClientTimeout: 60 * time.Second,
			Version:       server.DefaultVersion,
		},
		Log: LogSection{
			Level: "info",
		},
		Cache: CacheSection{
			MaxEntries: 1024,
			KeyPrefix:  "nut:cache:",
		},
	}
}

// ApplyEnvOverrides updates cfg in place from NUT_* environment variables.
// Unset or zero values leave the file settings alone.
func ApplyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	if env.Listen != "" {
		cfg.Server.Listen = env.Listen
	}
	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if len(env.Authorized) > 0 {
		cfg.Server.Authorized = env.Authorized
	}
	if env.ClientTimeout != 0 {
		cfg.Server.ClientTimeout = env.ClientTimeout
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.RedisAddr != "" {
		cfg.Cache.RedisAddr = env.RedisAddr
	}
	return nil
}

// Validate checks settings and UPS definitions.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch strings.ToLower(c.Server.Transport) {
	case "", TransportTCP, TransportQUIC:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Server.Transport)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.BuildUPSes(); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logger.Level {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.LevelInfo
	}
	return level
}

// TransportName returns the normalized transport name.
func (c *Config) TransportName() string {
	if c.Server.Transport == "" {
		return TransportTCP
	}
	return strings.ToLower(c.Server.Transport)
}

// ServerConfig maps the server section onto a server.ServerConfig.
func (c *Config) ServerConfig() server.ServerConfig {
	sc := server.DefaultServerConfig()
	if c.Server.ID != "" {
		sc.ID = c.Server.ID
	}
	sc.ListenAddress = c.Server.Listen
	sc.Port = c.Server.Port
	sc.AuthorizedAddresses = c.Server.Authorized
	sc.ClientTimeout = c.Server.ClientTimeout
	sc.SingleQuery = c.Server.SingleQuery
	if c.Server.Version != "" {
		sc.Version = c.Server.Version
	}
	return sc
}

// BuildUPSes constructs the provisioned UPS entries.
func (c *Config) BuildUPSes() ([]*types.UPS, error) {
	upses := make([]*types.UPS, 0, len(c.UPS))
	seen := make(map[string]bool, len(c.UPS))

	for _, uc := range c.UPS {
		if seen[uc.Name] {
			return nil, fmt.Errorf("%w: duplicate UPS %q", ErrInvalidConfig, uc.Name)
		}
		seen[uc.Name] = true

		u, err := buildUPS(uc)
		if err != nil {
			return nil, fmt.Errorf("%w: UPS %q: %w", ErrInvalidConfig, uc.Name, err)
		}
		upses = append(upses, u)
	}
	return upses, nil
}

func buildUPS(uc UPSConfig) (*types.UPS, error) {
	u, err := types.NewUPS(uc.Name, uc.Description)
	if err != nil {
		return nil, err
	}

	for _, vc := range uc.Variables {
		v, err := buildVariable(vc)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vc.Name, err)
		}
		if err := u.AddVariable(v); err != nil {
			return nil, err
		}
	}
	for _, cc := range uc.Commands {
		if err := u.AddCommand(cc.Name, cc.Description); err != nil {
			return nil, fmt.Errorf("command %q: %w", cc.Name, err)
		}
	}
	return u, nil
}

func buildVariable(vc VariableConfig) (*types.Variable, error) {
	flags, err := types.ParseVarFlags(vc.Flags)
	if err != nil {
		return nil, err
	}
	v, err := types.NewVariable(vc.Name, flags)
	if err != nil {
		return nil, err
	}
	if vc.MaxLength > 0 {
		if err := v.SetMaxLength(vc.MaxLength); err != nil {
			return nil, err
		}
	}
	if err := v.SetValue(vc.Value); err != nil {
		return nil, err
	}
	v.SetDescription(vc.Description)

	for _, e := range vc.Enumerations {
		if err := v.AddEnumeration(e); err != nil {
			return nil, err
		}
	}
	for _, r := range vc.Ranges {
		if err := v.AddRange(types.Range{Min: r.Min, Max: r.Max}); err != nil {
			return nil, err
		}
	}
	return v, nil
}
