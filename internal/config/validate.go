package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks the complete configuration. All problems are reported
// together in a *ValidationError.
func (c *Config) Validate() error {
	errs := validateConfig(c)
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// validateConfig returns a list of validation errors.
func validateConfig(cfg *Config) []string {
	var errs []string

	if cfg.AccessKeyID == "" {
		errs = append(errs, EnvPrefix+"ACCESS_KEY_ID: required but not set")
	}
	if cfg.AccessKeySecret == "" {
		errs = append(errs, EnvPrefix+"ACCESS_KEY_SECRET: required but not set")
	}
	if cfg.TTL < 1 {
		errs = append(errs, fmt.Sprintf("%sTTL: must be positive, got %d", EnvPrefix, cfg.TTL))
	}
	if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("%sENDPOINT: must be an absolute URL, got %q", EnvPrefix, cfg.Endpoint))
	}
	if cfg.HTTPTimeout <= 0 {
		errs = append(errs, EnvPrefix+"HTTP_TIMEOUT: must be positive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("%sLOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", EnvPrefix, cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("%sLOG_FORMAT: invalid value %q (must be json or text)", EnvPrefix, cfg.LogFormat))
	}

	if cfg.PropagationSeconds < 0 {
		errs = append(errs, EnvPrefix+"PROPAGATION_SECONDS: must not be negative")
	}
	if cfg.PropagationTimeout <= 0 {
		errs = append(errs, EnvPrefix+"PROPAGATION_TIMEOUT: must be positive")
	}
	if cfg.PropagationInterval <= 0 {
		errs = append(errs, EnvPrefix+"PROPAGATION_INTERVAL: must be positive")
	}
	if cfg.PropagationCheck && len(cfg.Nameservers) == 0 {
		errs = append(errs, EnvPrefix+"NAMESERVERS: at least one nameserver is required when PROPAGATION_CHECK is enabled")
	}
	for _, ns := range cfg.Nameservers {
		if _, port, err := net.SplitHostPort(ns); err != nil || !validPort(port) {
			errs = append(errs, fmt.Sprintf("%sNAMESERVERS: invalid address %q", EnvPrefix, ns))
		}
	}

	if cfg.ListenPort < 1 || cfg.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("%sLISTEN_PORT: invalid port number %d", EnvPrefix, cfg.ListenPort))
	}

	return errs
}

func validPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

// normalizeNameserver appends the default DNS port when addr has none.
func normalizeNameserver(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "53")
}

// parseNameservers splits a comma-separated list of resolver addresses.
func parseNameservers(list []string) []string {
	var out []string
	for _, item := range list {
		for _, addr := range strings.Split(item, ",") {
			if ns := normalizeNameserver(addr); ns != "" {
				out = append(out, ns)
			}
		}
	}
	return out
}
