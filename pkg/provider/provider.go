// Package provider defines the interface that ACME DNS-01 providers must implement.
package provider

import (
	"context"
	"log/slog"
	"time"
)

// RecordType represents the type of DNS record.
type RecordType string

// RecordTypeTXT is the only record type a DNS-01 challenge needs.
const RecordTypeTXT RecordType = "TXT"

// ChallengePrefix is the label prepended to a domain to form its DNS-01
// validation record name.
const ChallengePrefix = "_acme-challenge"

// Provider defines the interface for DNS-01 challenge providers.
type Provider interface {
	// Name returns the provider instance name (e.g., "alidns").
	Name() string

	// Type returns the provider type (e.g., "alidns").
	Type() string

	// Ping checks connectivity and credentials against the provider.
	Ping(ctx context.Context) error

	// AddTXTRecord creates the TXT record recordName=value for domain.
	AddTXTRecord(ctx context.Context, domain, recordName, value string) error

	// DeleteTXTRecord removes the TXT record previously created by AddTXTRecord.
	DeleteTXTRecord(ctx context.Context, domain, recordName, value string) error
}

// ChallengeRecordName returns the validation record name for domain.
// Example: "example.com" -> "_acme-challenge.example.com"
func ChallengeRecordName(domain string) string {
	return ChallengePrefix + "." + domain
}

// HTTPConfig carries the HTTP client settings handed to provider factories.
type HTTPConfig struct {
	Timeout       time.Duration
	TLSSkipVerify bool
	UserAgent     string
	Logger        *slog.Logger
}

// FactoryConfig is everything a Factory needs to build a provider instance.
type FactoryConfig struct {
	// Name is the instance name used in logs and metrics.
	Name string

	// HTTP holds the shared HTTP client settings.
	HTTP HTTPConfig

	// ProviderConfig holds provider-specific settings (keys, TTL, endpoint).
	ProviderConfig map[string]string
}

// Factory creates a provider instance from configuration.
type Factory func(cfg FactoryConfig) (Provider, error)
