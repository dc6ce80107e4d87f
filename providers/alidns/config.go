package alidns

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultTTL is the TTL of created TXT records.
const DefaultTTL = 600

// Config holds Alidns-specific configuration.
type Config struct {
	AccessKeyID     string // AccessKey ID of a RAM user allowed to manage DNS
	AccessKeySecret string // AccessKey secret
	TTL             int    // Record TTL (0 means DefaultTTL)
	Endpoint        string // API endpoint (defaults to DefaultEndpoint)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.AccessKeyID == "" {
		errs = append(errs, "ACCESS_KEY_ID is required")
	}
	if c.AccessKeySecret == "" {
		errs = append(errs, "ACCESS_KEY_SECRET is required")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("ENDPOINT %q is not an absolute URL", c.Endpoint))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("alidns config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Credentials returns the access key pair.
func (c *Config) Credentials() Credentials {
	return Credentials{
		AccessKeyID:     c.AccessKeyID,
		AccessKeySecret: c.AccessKeySecret,
	}
}

func (c *Config) ttl() int {
	if c.TTL == 0 {
		return DefaultTTL
	}
	return c.TTL
}

// LoadConfigFromMap creates a Config from a map of key-value pairs.
//
// Required keys: ACCESS_KEY_ID, ACCESS_KEY_SECRET
// Optional keys: TTL (defaults to 600), ENDPOINT
func LoadConfigFromMap(instanceName string, configMap map[string]string) (*Config, error) {
	config := &Config{
		AccessKeyID:     configMap["ACCESS_KEY_ID"],
		AccessKeySecret: configMap["ACCESS_KEY_SECRET"],
		TTL:             DefaultTTL,
		Endpoint:        configMap["ENDPOINT"],
	}

	if ttlStr, ok := configMap["TTL"]; ok && ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", ttlStr, err)
		}
		config.TTL = ttl
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}

	return config, nil
}
