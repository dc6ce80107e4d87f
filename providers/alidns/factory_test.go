package alidns

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

func TestFactory(t *testing.T) {
	fake := newFakeAlidns(t, "example.com")

	factory := Factory()
	p, err := factory(provider.FactoryConfig{
		Name: "alidns",
		HTTP: provider.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "test-agent",
			Logger:    slog.Default(),
		},
		ProviderConfig: map[string]string{
			"ACCESS_KEY_ID":     testAccessKeyID,
			"ACCESS_KEY_SECRET": testAccessKeySecret,
			"ENDPOINT":          fake.server.URL + "/",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name() != "alidns" || p.Type() != ProviderType {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Type())
	}

	alidnsProvider, ok := p.(*Provider)
	if !ok {
		t.Fatalf("expected *Provider, got %T", p)
	}
	if alidnsProvider.Client().httpClient.Timeout != 5*time.Second {
		t.Errorf("expected factory timeout, got %v", alidnsProvider.Client().httpClient.Timeout)
	}

	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	_, err := Factory()(provider.FactoryConfig{Name: "alidns", ProviderConfig: map[string]string{}})
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestNewWithHTTPClient_NilConfig(t *testing.T) {
	if _, err := NewWithHTTPClient("alidns", nil, nil, nil); err == nil {
		t.Error("expected error for nil config, got nil")
	}
}
