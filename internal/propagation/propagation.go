// Package propagation waits until a freshly created TXT record is served by
// every authoritative nameserver of its zone.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/acme-alidns/internal/metrics"
)

// Defaults for the active check.
const (
	DefaultTimeout      = 2 * time.Minute
	DefaultInterval     = 5 * time.Second
	DefaultQueryTimeout = 5 * time.Second
	DefaultPort         = "53"
)

// Sentinel errors for propagation checks.
var (
	// ErrNoNameservers is returned when no authoritative nameserver could be found.
	ErrNoNameservers = errors.New("no authoritative nameservers found")

	// ErrTimeout is returned when the record did not propagate in time.
	ErrTimeout = errors.New("timed out waiting for record propagation")
)

// Checker polls authoritative nameservers for a TXT record.
type Checker struct {
	nameservers []string
	interval    time.Duration
	timeout     time.Duration
	port        string
	client      *dns.Client
	logger      *slog.Logger
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTimeout sets the upper bound for Wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAuthoritativePort sets the port used to query authoritative servers.
func WithAuthoritativePort(port string) Option {
	return func(c *Checker) {
		if port != "" {
			c.port = port
		}
	}
}

// WithDNSClient replaces the DNS client (e.g., to force TCP).
func WithDNSClient(client *dns.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// NewChecker creates a Checker that discovers authoritative servers through
// the given recursive nameservers (host:port).
func NewChecker(nameservers []string, opts ...Option) (*Checker, error) {
	if len(nameservers) == 0 {
		return nil, errors.New("at least one nameserver is required")
	}

	c := &Checker{
		nameservers: nameservers,
		interval:    DefaultInterval,
		timeout:     DefaultTimeout,
		port:        DefaultPort,
		client:      &dns.Client{Net: "udp", Timeout: DefaultQueryTimeout},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Wait blocks until every authoritative nameserver for name answers a TXT
// query with value, or until the configured timeout or ctx expires.
func (c *Checker) Wait(ctx context.Context, name, value string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	fqdn := dns.Fqdn(name)

	zone, hosts, err := c.findNameservers(ctx, fqdn)
	if err != nil {
		return fmt.Errorf("finding nameservers for %s: %w", fqdn, err)
	}

	servers, err := c.resolveServers(ctx, hosts)
	if err != nil {
		return fmt.Errorf("resolving nameservers of %s: %w", zone, err)
	}

	c.logger.Debug("checking propagation",
		slog.String("name", fqdn),
		slog.String("zone", zone),
		slog.Any("servers", servers),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	pending := servers
	for {
		pending = c.pendingServers(ctx, pending, fqdn, value)
		if len(pending) == 0 {
			metrics.PropagationDuration.Observe(time.Since(start).Seconds())
			c.logger.Info("record propagated",
				slog.String("name", fqdn),
				slog.Duration("elapsed", time.Since(start)),
			)
			return nil
		}

		c.logger.Debug("record not yet propagated",
			slog.String("name", fqdn),
			slog.Any("pending", pending),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not served by %s: %w", ErrTimeout, fqdn, strings.Join(pending, ", "), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// findNameservers walks up from fqdn until a name with an NS set is found.
func (c *Checker) findNameservers(ctx context.Context, fqdn string) (string, []string, error) {
	labels := dns.SplitDomainName(fqdn)
	for i := range labels {
		zone := dns.Fqdn(strings.Join(labels[i:], "."))

		resp, err := c.recursive(ctx, zone, dns.TypeNS)
		if err != nil {
			return "", nil, err
		}

		var hosts []string
		for _, rr := range resp.Answer {
			if ns, ok := rr.(*dns.NS); ok && strings.EqualFold(ns.Hdr.Name, zone) {
				hosts = append(hosts, ns.Ns)
			}
		}
		if len(hosts) > 0 {
			return zone, hosts, nil
		}
	}

	return "", nil, ErrNoNameservers
}

// resolveServers turns nameserver host names into host:port addresses.
func (c *Checker) resolveServers(ctx context.Context, hosts []string) ([]string, error) {
	var servers []string
	for _, host := range hosts {
		resp, err := c.recursive(ctx, dns.Fqdn(host), dns.TypeA)
		if err != nil {
			return nil, err
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				servers = append(servers, net.JoinHostPort(a.A.String(), c.port))
			}
		}
	}

	if len(servers) == 0 {
		return nil, ErrNoNameservers
	}
	return servers, nil
}

// pendingServers returns the servers that do not yet serve value.
func (c *Checker) pendingServers(ctx context.Context, servers []string, fqdn, value string) []string {
	var pending []string
	for _, server := range servers {
		ok, err := c.serves(ctx, server, fqdn, value)
		if err != nil {
			c.logger.Debug("TXT query failed",
				slog.String("server", server),
				slog.String("name", fqdn),
				slog.String("error", err.Error()),
			)
		}
		if !ok {
			pending = append(pending, server)
		}
	}
	return pending
}

// serves reports whether server answers the TXT query for fqdn with value.
func (c *Checker) serves(ctx context.Context, server, fqdn, value string) (bool, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, dns.TypeTXT)
	msg.RecursionDesired = false

	resp, _, err := c.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return false, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return false, nil
	}

	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok && strings.Join(txt.Txt, "") == value {
			return true, nil
		}
	}
	return false, nil
}

// recursive sends a query to the recursive nameservers in order and returns
// the first usable answer.
func (c *Checker) recursive(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, ns := range c.nameservers {
		resp, _, err := c.client.ExchangeContext(ctx, msg, ns)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			lastErr = fmt.Errorf("%s returned %s for %s %s", ns, dns.RcodeToString[resp.Rcode], name, dns.TypeToString[qtype])
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
