package alidns

import (
	"context"
	"fmt"
	"log/slog"

	"gitlab.bluewillows.net/root/acme-alidns/internal/metrics"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

// ProviderType is the value returned by Type.
const ProviderType = "alidns"

// Provider implements provider.Provider for Alibaba Cloud DNS.
// Zones and record IDs are looked up on every call and never cached.
type Provider struct {
	name   string
	ttl    int
	client *Client
	logger *slog.Logger

	clientOpts []ClientOption
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClientOptions passes options through to the underlying API client.
func WithClientOptions(opts ...ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// New creates a new Alidns provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		ttl:    config.ttl(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	clientOpts := append([]ClientOption{
		WithEndpoint(config.Endpoint),
		WithLogger(p.logger),
	}, p.clientOpts...)
	p.client = NewClient(config.Credentials(), clientOpts...)
	p.clientOpts = nil

	return p, nil
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "alidns".
func (p *Provider) Type() string {
	return ProviderType
}

// TTL returns the TTL applied to created records.
func (p *Provider) TTL() int {
	return p.ttl
}

// Client returns the underlying API client.
func (p *Provider) Client() *Client {
	return p.client
}

// Ping checks connectivity and credentials.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// AddTXTRecord creates the TXT record recordName=value in the zone that
// domain belongs to.
func (p *Provider) AddTXTRecord(ctx context.Context, domain, recordName, value string) (err error) {
	defer func() { metrics.ObserveOperation(metrics.OperationAdd, err) }()

	zone, rr, err := p.locate(ctx, domain, recordName)
	if err != nil {
		return err
	}

	recordID, err := p.client.AddDomainRecord(ctx, zone, rr, string(provider.RecordTypeTXT), value, p.ttl)
	if err != nil {
		return wrapError("adding TXT record", domain, err)
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("domain", domain),
		slog.String("zone", zone),
		slog.String("rr", rr),
		slog.String("value", value),
		slog.Int("ttl", p.ttl),
		slog.String("record_id", recordID),
	)

	return nil
}

// DeleteTXTRecord removes the TXT record recordName=value. The record ID is
// re-resolved from the provider; when several records share the name the
// one carrying value is removed.
func (p *Provider) DeleteTXTRecord(ctx context.Context, domain, recordName, value string) (err error) {
	defer func() { metrics.ObserveOperation(metrics.OperationDelete, err) }()

	zone, rr, err := p.locate(ctx, domain, recordName)
	if err != nil {
		return err
	}

	recordID, err := p.client.ResolveRecordID(ctx, zone, rr, string(provider.RecordTypeTXT), value)
	if err != nil {
		return wrapError("resolving record", domain, err)
	}

	if err := p.client.DeleteDomainRecord(ctx, zone, recordID); err != nil {
		return wrapError("deleting TXT record", domain, err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("domain", domain),
		slog.String("zone", zone),
		slog.String("rr", rr),
		slog.String("record_id", recordID),
	)

	return nil
}

// locate resolves the zone for domain and the RR of recordName within it.
func (p *Provider) locate(ctx context.Context, domain, recordName string) (string, string, error) {
	domain, recordName = DetermineRecordName(domain, recordName)

	zone, err := p.client.ResolveZone(ctx, domain)
	if err != nil {
		return "", "", wrapError("resolving zone", domain, err)
	}

	rr, err := DetermineRR(zone, recordName)
	if err != nil {
		return "", "", wrapError("determining record name", domain, err)
	}

	return zone, rr, nil
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)
