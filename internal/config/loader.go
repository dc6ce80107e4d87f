package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Load builds the configuration from defaults, the config file and the
// environment, in increasing order of precedence, and validates the result.
//
// path selects the config file; when empty, ACME_ALIDNS_CONFIG is used.
// All problems found are returned together in a *ValidationError.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	var errs []string

	if path == "" {
		path = getEnv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		errs = append(errs, applyFile(cfg, path)...)
	}

	errs = append(errs, applyEnv(cfg)...)
	errs = append(errs, validateConfig(cfg)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}

// applyFile overlays the settings present in the file at path onto cfg.
func applyFile(cfg *Config, path string) []string {
	fileCfg, err := LoadFile(path)
	if err != nil {
		return []string{"config file: " + err.Error()}
	}

	slog.Info("loaded configuration from file", slog.String("path", path))
	cfg.ConfigFile = path

	var errs []string

	if v := fileCfg.accessKeyID(); v != "" {
		cfg.AccessKeyID = v
	}
	if v := fileCfg.accessKeySecret(); v != "" {
		cfg.AccessKeySecret = v
	}
	if fileCfg.TTL != 0 {
		cfg.TTL = fileCfg.TTL
	}
	if fileCfg.Endpoint != "" {
		cfg.Endpoint = fileCfg.Endpoint
	}
	errs = append(errs, setDuration(&cfg.HTTPTimeout, fileCfg.HTTPTimeout, "http_timeout")...)

	if l := fileCfg.Logging; l != nil {
		if l.Level != "" {
			cfg.LogLevel = strings.ToLower(l.Level)
		}
		if l.Format != "" {
			cfg.LogFormat = strings.ToLower(l.Format)
		}
	}

	if p := fileCfg.Propagation; p != nil {
		if p.Seconds != nil {
			cfg.PropagationSeconds = *p.Seconds
		}
		if p.Check != nil {
			cfg.PropagationCheck = *p.Check
		}
		errs = append(errs, setDuration(&cfg.PropagationTimeout, p.Timeout, "propagation.timeout")...)
		errs = append(errs, setDuration(&cfg.PropagationInterval, p.Interval, "propagation.interval")...)
		if len(p.Nameservers) > 0 {
			cfg.Nameservers = parseNameservers(p.Nameservers)
		}
	}

	if s := fileCfg.Server; s != nil && s.Port != 0 {
		cfg.ListenPort = s.Port
	}

	if m := fileCfg.Metrics; m != nil && m.Textfile != "" {
		cfg.MetricsTextfile = m.Textfile
	}

	return errs
}

// applyEnv overrides cfg with every ACME_ALIDNS_* variable that is set.
func applyEnv(cfg *Config) []string {
	var errs []string

	secrets := []struct {
		key string
		dst *string
	}{
		{"ACCESS_KEY_ID", &cfg.AccessKeyID},
		{"ACCESS_KEY_SECRET", &cfg.AccessKeySecret},
	}
	for _, s := range secrets {
		v, err := getEnvWithFileFallback(s.key)
		if err != nil {
			errs = append(errs, EnvPrefix+s.key+"_FILE: "+err.Error())
			continue
		}
		if v != "" {
			*s.dst = v
		}
	}

	if v := getEnv(EnvPrefix + "TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.TTL = ttl
		} else {
			errs = append(errs, EnvPrefix+"TTL: invalid integer "+strconv.Quote(v))
		}
	}

	if v := getEnv(EnvPrefix + "ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}

	errs = append(errs, setDuration(&cfg.HTTPTimeout, getEnv(EnvPrefix+"HTTP_TIMEOUT"), EnvPrefix+"HTTP_TIMEOUT")...)

	if v := getEnv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getEnv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := getEnv(EnvPrefix + "PROPAGATION_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PropagationSeconds = n
		} else {
			errs = append(errs, EnvPrefix+"PROPAGATION_SECONDS: invalid integer "+strconv.Quote(v))
		}
	}

	if v := getEnv(EnvPrefix + "PROPAGATION_CHECK"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.PropagationCheck = b
		} else {
			errs = append(errs, EnvPrefix+"PROPAGATION_CHECK: invalid boolean "+strconv.Quote(v))
		}
	}

	errs = append(errs, setDuration(&cfg.PropagationTimeout, getEnv(EnvPrefix+"PROPAGATION_TIMEOUT"), EnvPrefix+"PROPAGATION_TIMEOUT")...)
	errs = append(errs, setDuration(&cfg.PropagationInterval, getEnv(EnvPrefix+"PROPAGATION_INTERVAL"), EnvPrefix+"PROPAGATION_INTERVAL")...)

	if v := getEnv(EnvPrefix + "NAMESERVERS"); v != "" {
		cfg.Nameservers = parseNameservers([]string{v})
	}

	if v := getEnv(EnvPrefix + "LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = port
		} else {
			errs = append(errs, EnvPrefix+"LISTEN_PORT: invalid port number "+strconv.Quote(v))
		}
	}

	if v := getEnv(EnvPrefix + "METRICS_TEXTFILE"); v != "" {
		cfg.MetricsTextfile = v
	}

	return errs
}

// setDuration parses s into dst when s is set.
func setDuration(dst *time.Duration, s, name string) []string {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return []string{name + ": invalid duration " + strconv.Quote(s)}
	}
	*dst = d
	return nil
}
