package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure.
// The same layout is accepted as YAML and TOML.
type FileConfig struct {
	// Alidns credentials
	AccessKeyID     string `yaml:"access_key_id,omitempty" toml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret,omitempty" toml:"access_key_secret"`

	// Certbot dns-aliyun plugin spellings of the credentials.
	CertbotAccessKey       string `yaml:"dns_aliyun_access_key,omitempty" toml:"dns_aliyun_access_key"`
	CertbotAccessKeySecret string `yaml:"dns_aliyun_access_key_secret,omitempty" toml:"dns_aliyun_access_key_secret"`

	// Record and API settings
	TTL         int    `yaml:"ttl,omitempty" toml:"ttl"`
	Endpoint    string `yaml:"endpoint,omitempty" toml:"endpoint"`
	HTTPTimeout string `yaml:"http_timeout,omitempty" toml:"http_timeout"` // Go duration format (e.g., "30s")

	Logging     *FileLoggingConfig     `yaml:"logging,omitempty" toml:"logging"`
	Propagation *FilePropagationConfig `yaml:"propagation,omitempty" toml:"propagation"`
	Server      *FileServerConfig      `yaml:"server,omitempty" toml:"server"`
	Metrics     *FileMetricsConfig     `yaml:"metrics,omitempty" toml:"metrics"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FilePropagationConfig holds the settings for waiting on DNS propagation.
type FilePropagationConfig struct {
	Seconds     *int     `yaml:"seconds,omitempty" toml:"seconds"`   // Fixed delay after adding the record
	Check       *bool    `yaml:"check,omitempty" toml:"check"`       // Query authoritative servers instead of sleeping
	Timeout     string   `yaml:"timeout,omitempty" toml:"timeout"`   // Upper bound for the active check
	Interval    string   `yaml:"interval,omitempty" toml:"interval"` // Poll interval for the active check
	Nameservers []string `yaml:"nameservers,omitempty" toml:"nameservers"`
}

// FileServerConfig holds webhook/health server settings.
type FileServerConfig struct {
	Port int `yaml:"port,omitempty" toml:"port"`
}

// FileMetricsConfig holds metrics export settings.
type FileMetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" toml:"textfile"` // node_exporter textfile collector path
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in all string fields.
func (c *FileConfig) interpolateEnvVars() {
	c.AccessKeyID = InterpolateEnvVars(c.AccessKeyID)
	c.AccessKeySecret = InterpolateEnvVars(c.AccessKeySecret)
	c.CertbotAccessKey = InterpolateEnvVars(c.CertbotAccessKey)
	c.CertbotAccessKeySecret = InterpolateEnvVars(c.CertbotAccessKeySecret)
	c.Endpoint = InterpolateEnvVars(c.Endpoint)
	c.HTTPTimeout = InterpolateEnvVars(c.HTTPTimeout)

	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.Propagation != nil {
		c.Propagation.Timeout = InterpolateEnvVars(c.Propagation.Timeout)
		c.Propagation.Interval = InterpolateEnvVars(c.Propagation.Interval)
		for i := range c.Propagation.Nameservers {
			c.Propagation.Nameservers[i] = InterpolateEnvVars(c.Propagation.Nameservers[i])
		}
	}

	if c.Metrics != nil {
		c.Metrics.Textfile = InterpolateEnvVars(c.Metrics.Textfile)
	}
}

// accessKeyID returns the access key ID, preferring the native key over
// the certbot alias.
func (c *FileConfig) accessKeyID() string {
	if c.AccessKeyID != "" {
		return c.AccessKeyID
	}
	return c.CertbotAccessKey
}

// accessKeySecret returns the access key secret, preferring the native key
// over the certbot alias.
func (c *FileConfig) accessKeySecret() string {
	if c.AccessKeySecret != "" {
		return c.AccessKeySecret
	}
	return c.CertbotAccessKeySecret
}

// LoadFile reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, .ini files as a certbot credentials file, everything else
// as YAML. Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	case ".ini":
		if err := parseINI(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing INI config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// parseINI reads the top-level keys of a certbot-style credentials file:
// unquoted "key = value" lines without a section header. Only the
// credential, TTL and API settings are read from it.
func parseINI(data []byte, cfg *FileConfig) error {
	f, err := ini.Load(data)
	if err != nil {
		return err
	}
	sec := f.Section(ini.DefaultSection)

	for key, dst := range map[string]*string{
		"access_key_id":                &cfg.AccessKeyID,
		"access_key_secret":            &cfg.AccessKeySecret,
		"dns_aliyun_access_key":        &cfg.CertbotAccessKey,
		"dns_aliyun_access_key_secret": &cfg.CertbotAccessKeySecret,
		"endpoint":                     &cfg.Endpoint,
		"http_timeout":                 &cfg.HTTPTimeout,
	} {
		if sec.HasKey(key) {
			*dst = sec.Key(key).String()
		}
	}

	if sec.HasKey("ttl") {
		ttl, err := sec.Key("ttl").Int()
		if err != nil {
			return fmt.Errorf("ttl: %w", err)
		}
		cfg.TTL = ttl
	}

	return nil
}
