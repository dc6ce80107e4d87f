// Package alidns implements the ACME DNS-01 provider for Alibaba Cloud DNS.
package alidns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/acme-alidns/internal/metrics"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

const (
	// DefaultEndpoint is the public Alidns RPC endpoint.
	DefaultEndpoint = "https://alidns.aliyuncs.com/"

	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// Largest page sizes the API accepts. Listing calls page through
	// results with PageNumber.
	describeDomainsPageSize       = 100
	describeDomainRecordsPageSize = 500
)

// API actions used by this package.
const (
	ActionDescribeDomains       = "DescribeDomains"
	ActionDescribeDomainRecords = "DescribeDomainRecords"
	ActionAddDomainRecord       = "AddDomainRecord"
	ActionDeleteDomainRecord    = "DeleteDomainRecord"
)

// APIError is a failure response decoded from the Alidns API.
type APIError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (code: %s, request id: %s)", e.Message, e.Code, e.RequestID)
}

// apiErrorResponse holds the top-level fields of a failure response.
// A non-empty Code is the only thing that distinguishes it from success.
type apiErrorResponse struct {
	RequestID string `json:"RequestId"`
	Code      string `json:"Code"`
	Message   string `json:"Message"`
}

// Domain is a zone owned by the account.
type Domain struct {
	DomainID   string `json:"DomainId"`
	DomainName string `json:"DomainName"`
	PunyCode   string `json:"PunyCode"`
}

// describeDomainsResponse is the response from DescribeDomains.
type describeDomainsResponse struct {
	TotalCount int `json:"TotalCount"`
	Domains    struct {
		Domain []Domain `json:"Domain"`
	} `json:"Domains"`
}

// DomainRecord is a DNS record inside a zone. Its RecordID is assigned by
// the provider and only ever discovered through a lookup.
type DomainRecord struct {
	RecordID   string `json:"RecordId"`
	RR         string `json:"RR"`
	Type       string `json:"Type"`
	Value      string `json:"Value"`
	TTL        int    `json:"TTL"`
	DomainName string `json:"DomainName"`
	Status     string `json:"Status"`
}

// describeDomainRecordsResponse is the response from DescribeDomainRecords.
type describeDomainRecordsResponse struct {
	TotalCount    int `json:"TotalCount"`
	DomainRecords struct {
		Record []DomainRecord `json:"Record"`
	} `json:"DomainRecords"`
}

// recordIDResponse is returned by AddDomainRecord and DeleteDomainRecord.
type recordIDResponse struct {
	RequestID string `json:"RequestId"`
	RecordID  string `json:"RecordId"`
}

// Client is an Alidns API client. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	endpoint   string
	signer     *Signer
	httpClient *http.Client
	logger     *slog.Logger

	domainsPageSize int
	recordsPageSize int
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEndpoint sets a custom API endpoint (useful for testing).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithSigner replaces the request signer, e.g. to pin the clock in tests.
func WithSigner(signer *Signer) ClientOption {
	return func(c *Client) {
		if signer != nil {
			c.signer = signer
		}
	}
}

// NewClient creates a new Alidns API client.
func NewClient(creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		signer:   NewSigner(creds),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:          slog.Default(),
		domainsPageSize: describeDomainsPageSize,
		recordsPageSize: describeDomainRecordsPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Call performs one signed GET request for action and decodes the JSON
// response into out (which may be nil).
//
// A response carrying a Code field fails with *APIError. Anything that
// prevents getting a decodable response fails with a *provider.Error of
// KindTransport. There are no retries.
func (c *Client) Call(ctx context.Context, action string, params map[string]string, out any) error {
	start := time.Now()
	err := c.call(ctx, action, params, out)
	metrics.ObserveAPIRequest(action, requestResult(err), time.Since(start))
	return err
}

func (c *Client) call(ctx context.Context, action string, params map[string]string, out any) error {
	c.logger.Debug("making API request",
		slog.String("action", action),
		slog.String("endpoint", c.endpoint),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return transportError(action, fmt.Errorf("creating request: %w", err))
	}
	req.URL.RawQuery = c.signer.Sign(action, params).Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(action, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(action, fmt.Errorf("reading response body: %w", err))
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return transportError(action, fmt.Errorf("parsing response JSON (status %d): %w", resp.StatusCode, err))
	}

	if apiErr.Code != "" {
		c.logger.Debug("API error response",
			slog.String("action", action),
			slog.String("code", apiErr.Code),
			slog.String("request_id", apiErr.RequestID),
			slog.Int("status", resp.StatusCode),
		)
		return &APIError{
			Code:      apiErr.Code,
			Message:   strings.TrimRight(apiErr.Message, "."),
			RequestID: apiErr.RequestID,
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return transportError(action, fmt.Errorf("parsing %s response: %w", action, err))
		}
	}

	return nil
}

// Ping verifies connectivity and credentials with the cheapest possible call.
func (c *Client) Ping(ctx context.Context) error {
	err := c.Call(ctx, ActionDescribeDomains, map[string]string{"PageSize": "1"}, nil)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		classified := Classify(apiErr, "")
		classified.Op = "checking credentials"
		return classified
	}
	return fmt.Errorf("ping failed: %w", err)
}

// DescribeDomains lists the account's zones matching keyword, following
// PageNumber until TotalCount zones have been read.
func (c *Client) DescribeDomains(ctx context.Context, keyword string) ([]Domain, error) {
	var domains []Domain
	for page := 1; ; page++ {
		params := map[string]string{
			"PageSize":   strconv.Itoa(c.domainsPageSize),
			"PageNumber": strconv.Itoa(page),
		}
		if keyword != "" {
			params["KeyWord"] = keyword
		}

		var resp describeDomainsResponse
		if err := c.Call(ctx, ActionDescribeDomains, params, &resp); err != nil {
			return nil, fmt.Errorf("describing domains matching %q: %w", keyword, err)
		}

		domains = append(domains, resp.Domains.Domain...)
		if len(resp.Domains.Domain) == 0 || len(domains) >= resp.TotalCount {
			break
		}
	}

	c.logger.Debug("described domains",
		slog.String("keyword", keyword),
		slog.Int("count", len(domains)),
	)

	return domains, nil
}

// DescribeDomainRecords lists records in zone, narrowed by the provider's
// RR and type keyword filters, reading every page. The filters are
// advisory; callers must match exactly on the result.
func (c *Client) DescribeDomainRecords(ctx context.Context, zone, rr, recordType string) ([]DomainRecord, error) {
	var records []DomainRecord
	for page := 1; ; page++ {
		params := map[string]string{
			"DomainName": zone,
			"PageSize":   strconv.Itoa(c.recordsPageSize),
			"PageNumber": strconv.Itoa(page),
		}
		if rr != "" {
			params["RRKeyWord"] = rr
		}
		if recordType != "" {
			params["TypeKeyWord"] = recordType
		}

		var resp describeDomainRecordsResponse
		if err := c.Call(ctx, ActionDescribeDomainRecords, params, &resp); err != nil {
			return nil, fmt.Errorf("describing records of %s: %w", zone, err)
		}

		records = append(records, resp.DomainRecords.Record...)
		if len(resp.DomainRecords.Record) == 0 || len(records) >= resp.TotalCount {
			break
		}
	}

	c.logger.Debug("described domain records",
		slog.String("zone", zone),
		slog.String("rr", rr),
		slog.String("type", recordType),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// AddDomainRecord creates a record and returns its provider-assigned ID.
func (c *Client) AddDomainRecord(ctx context.Context, zone, rr, recordType, value string, ttl int) (string, error) {
	params := map[string]string{
		"DomainName": zone,
		"RR":         rr,
		"Type":       recordType,
		"Value":      value,
		"TTL":        strconv.Itoa(ttl),
	}

	var resp recordIDResponse
	if err := c.Call(ctx, ActionAddDomainRecord, params, &resp); err != nil {
		return "", fmt.Errorf("adding %s record %s in %s: %w", recordType, rr, zone, err)
	}

	return resp.RecordID, nil
}

// DeleteDomainRecord removes the record with the given ID from zone.
func (c *Client) DeleteDomainRecord(ctx context.Context, zone, recordID string) error {
	params := map[string]string{
		"DomainName": zone,
		"RecordId":   recordID,
	}

	if err := c.Call(ctx, ActionDeleteDomainRecord, params, nil); err != nil {
		return fmt.Errorf("deleting record %s in %s: %w", recordID, zone, err)
	}

	return nil
}

func transportError(action string, err error) error {
	return &provider.Error{
		Kind: provider.KindTransport,
		Op:   "calling " + action,
		Err:  err,
	}
}

func requestResult(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return metrics.ResultAPIError
	}
	return metrics.ResultTransportError
}
