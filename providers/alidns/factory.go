package alidns

import (
	"fmt"
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/httputil"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

// Factory returns a provider.Factory for creating Alidns provider instances.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg, err := LoadConfigFromMap(cfg.Name, cfg.ProviderConfig)
		if err != nil {
			return nil, err
		}

		httpClient := httputil.NewClient(&httputil.ClientConfig{
			Timeout:       cfg.HTTP.Timeout,
			TLSSkipVerify: cfg.HTTP.TLSSkipVerify,
			UserAgent:     cfg.HTTP.UserAgent,
			Logger:        cfg.HTTP.Logger,
		})

		if cfg.HTTP.TLSSkipVerify && cfg.HTTP.Logger != nil {
			cfg.HTTP.Logger.Warn("TLS certificate verification disabled for Alidns provider",
				slog.String("provider", cfg.Name),
			)
		}

		return NewWithHTTPClient(cfg.Name, providerCfg, httpClient, cfg.HTTP.Logger)
	}
}

// NewWithHTTPClient creates a new Alidns provider with a pre-configured HTTP
// client (timeout, TLS, user-agent and debug logging already applied).
func NewWithHTTPClient(name string, config *Config, httpClient *http.Client, logger *slog.Logger) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	return New(name, config,
		WithProviderLogger(logger),
		WithClientOptions(WithHTTPClient(httpClient)),
	)
}
