package alidns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/idn"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

// ZoneCandidates returns the zone names that may hold domain, most specific
// first: "a.b.example.com" yields "a.b.example.com", "b.example.com" and
// "example.com". The bare top-level label is never a candidate.
func ZoneCandidates(domain string) []string {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return []string{domain}
	}

	candidates := make([]string, 0, len(labels)-1)
	for i := 0; i < len(labels)-1; i++ {
		candidates = append(candidates, strings.Join(labels[i:], "."))
	}
	return candidates
}

// ResolveZone finds the zone owned by the account that domain belongs to.
// Candidates are tried in order and the first exact name match wins; a
// zone whose name merely contains the candidate is not a match.
// An InvalidDomainName error moves on to the next candidate, any other
// failure is returned immediately.
func (c *Client) ResolveZone(ctx context.Context, domain string) (string, error) {
	candidates := ZoneCandidates(domain)

	var lastErr *APIError
	for _, candidate := range candidates {
		domains, err := c.DescribeDomains(ctx, candidate)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				return "", err
			}

			classified := Classify(apiErr, domain)
			if classified.Kind != provider.KindNotFound {
				return "", classified
			}

			c.logger.Debug("zone candidate does not exist",
				slog.String("domain", domain),
				slog.String("candidate", candidate),
				slog.String("code", apiErr.Code),
			)
			lastErr = apiErr
			continue
		}

		if zone, ok := matchZone(domains, candidate); ok {
			c.logger.Debug("resolved zone",
				slog.String("domain", domain),
				slog.String("zone", zone),
			)
			return zone, nil
		}
	}

	notFound := &provider.Error{
		Kind:       provider.KindNotFound,
		Op:         "resolving zone",
		Domain:     domain,
		Message:    "unable to determine zone identifier",
		Candidates: candidates,
	}
	// The last InvalidDomainName response is the provider's own explanation.
	if lastErr != nil {
		notFound.Code = lastErr.Code
		notFound.Message = lastErr.Message
		notFound.RequestID = lastErr.RequestID
		notFound.Err = lastErr
	}
	return "", notFound
}

// matchZone returns the zone whose name, or punycode spelling, equals
// candidate once both are decoded, ignoring case.
func matchZone(domains []Domain, candidate string) (string, bool) {
	for _, d := range domains {
		if sameName(d.DomainName, candidate) {
			return d.DomainName, true
		}
		if d.PunyCode != "" && sameName(d.PunyCode, candidate) {
			return d.DomainName, true
		}
	}
	return "", false
}

func sameName(a, b string) bool {
	return strings.EqualFold(idn.ToUnicode(a), idn.ToUnicode(b))
}

// ResolveRecordID finds the ID of the record named rr of recordType in zone.
// The provider's keyword filter is only a pre-filter: the RR must match
// exactly, ignoring case as DNS does. When value is set and several records share the RR (e.g. the
// challenges for example.com and *.example.com), the one carrying value is
// preferred; otherwise the first exact match is returned.
func (c *Client) ResolveRecordID(ctx context.Context, zone, rr, recordType, value string) (string, error) {
	records, err := c.DescribeDomainRecords(ctx, zone, rr, recordType)
	if err != nil {
		return "", err
	}

	var first *DomainRecord
	for i := range records {
		r := &records[i]
		if !strings.EqualFold(r.RR, rr) {
			continue
		}
		if recordType != "" && r.Type != recordType {
			continue
		}
		if value != "" && r.Value == value {
			return r.RecordID, nil
		}
		if first == nil {
			first = r
		}
	}

	if first == nil {
		return "", &provider.Error{
			Kind:    provider.KindNotFound,
			Op:      "resolving record",
			Domain:  zone,
			Message: fmt.Sprintf("no %s record named %q", recordType, rr),
		}
	}

	return first.RecordID, nil
}
