// Package config handles loading and validation of acme-alidns configuration
// from defaults, an optional YAML/TOML file and ACME_ALIDNS_* environment
// variables.
package config

import (
	"log/slog"
	"strconv"
	"time"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
	"gitlab.bluewillows.net/root/acme-alidns/providers/alidns"
)

// Configuration defaults.
const (
	DefaultTTL                 = alidns.DefaultTTL
	DefaultEndpoint            = alidns.DefaultEndpoint
	DefaultHTTPTimeout         = 30 * time.Second
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultPropagationSeconds  = 30
	DefaultPropagationCheck    = false
	DefaultPropagationTimeout  = 2 * time.Minute
	DefaultPropagationInterval = 5 * time.Second
	DefaultListenPort          = 8080
)

// DefaultNameservers are the recursive resolvers used to find a zone's
// authoritative servers during the propagation check.
var DefaultNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// ProviderName is the instance name of the single configured provider.
const ProviderName = "alidns"

// Config holds the complete application configuration.
type Config struct {
	// Alidns
	AccessKeyID     string
	AccessKeySecret string
	TTL             int
	Endpoint        string
	HTTPTimeout     time.Duration

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Propagation
	PropagationSeconds  int           // Fixed wait after adding a record
	PropagationCheck    bool          // Poll authoritative servers instead of sleeping
	PropagationTimeout  time.Duration // Upper bound for the active check
	PropagationInterval time.Duration // Poll interval for the active check
	Nameservers         []string      // host:port of recursive resolvers

	// Server
	ListenPort int

	// Metrics
	MetricsTextfile string

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string
}

// Defaults returns a Config with every default applied and no credentials.
func Defaults() *Config {
	return &Config{
		TTL:                 DefaultTTL,
		Endpoint:            DefaultEndpoint,
		HTTPTimeout:         DefaultHTTPTimeout,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		PropagationSeconds:  DefaultPropagationSeconds,
		PropagationCheck:    DefaultPropagationCheck,
		PropagationTimeout:  DefaultPropagationTimeout,
		PropagationInterval: DefaultPropagationInterval,
		Nameservers:         append([]string(nil), DefaultNameservers...),
		ListenPort:          DefaultListenPort,
	}
}

// AlidnsConfig returns the provider configuration.
func (c *Config) AlidnsConfig() *alidns.Config {
	return &alidns.Config{
		AccessKeyID:     c.AccessKeyID,
		AccessKeySecret: c.AccessKeySecret,
		TTL:             c.TTL,
		Endpoint:        c.Endpoint,
	}
}

// FactoryConfig returns the settings for building the provider through a
// provider.Factory.
func (c *Config) FactoryConfig(logger *slog.Logger) provider.FactoryConfig {
	return provider.FactoryConfig{
		Name: ProviderName,
		HTTP: provider.HTTPConfig{
			Timeout: c.HTTPTimeout,
			Logger:  logger,
		},
		ProviderConfig: map[string]string{
			"ACCESS_KEY_ID":     c.AccessKeyID,
			"ACCESS_KEY_SECRET": c.AccessKeySecret,
			"TTL":               strconv.Itoa(c.TTL),
			"ENDPOINT":          c.Endpoint,
		},
	}
}

// LogValue implements slog.LogValuer. The access key secret is never included.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key_id", c.AccessKeyID),
		slog.Bool("access_key_secret_set", c.AccessKeySecret != ""),
		slog.Int("ttl", c.TTL),
		slog.String("endpoint", c.Endpoint),
		slog.Duration("http_timeout", c.HTTPTimeout),
		slog.String("log_level", c.LogLevel),
		slog.String("log_format", c.LogFormat),
		slog.Int("propagation_seconds", c.PropagationSeconds),
		slog.Bool("propagation_check", c.PropagationCheck),
		slog.Duration("propagation_timeout", c.PropagationTimeout),
		slog.Duration("propagation_interval", c.PropagationInterval),
		slog.Any("nameservers", c.Nameservers),
		slog.Int("listen_port", c.ListenPort),
		slog.String("config_file", c.ConfigFile),
	)
}
