package alidns

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is mandated by the Alidns RPC signature scheme
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fixed request parameters of the Alidns RPC API.
const (
	APIVersion       = "2015-01-09"
	SignatureMethod  = "HMAC-SHA1"
	SignatureVersion = "1.0"
	ResponseFormat   = "JSON"

	// TimestampLayout is UTC with second precision and a literal Z.
	TimestampLayout = "2006-01-02T15:04:05Z"

	// stringToSignPrefix is the HTTP method, the percent-encoded "/" path and a separator.
	stringToSignPrefix = "GET&%2F&"
)

// Credentials is an Alibaba Cloud AccessKey pair.
type Credentials struct {
	AccessKeyID     string
	AccessKeySecret string
}

// String redacts the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID: %s, AccessKeySecret: [redacted]}", c.AccessKeyID)
}

// LogValue implements slog.LogValuer so the secret never reaches a log handler.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("access_key_id", c.AccessKeyID))
}

// Signer produces signed query parameters for Alidns API calls.
// A Signer is immutable and safe for concurrent use.
type Signer struct {
	creds Credentials
	now   func() time.Time
	nonce func() string
}

// SignerOption is a functional option for configuring the Signer.
type SignerOption func(*Signer)

// WithClock replaces the time source used for the Timestamp parameter.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNonce replaces the SignatureNonce generator.
func WithNonce(nonce func() string) SignerOption {
	return func(s *Signer) {
		if nonce != nil {
			s.nonce = nonce
		}
	}
}

// NewSigner creates a Signer for the given credentials.
func NewSigner(creds Credentials, opts ...SignerOption) *Signer {
	s := &Signer{
		creds: creds,
		now:   time.Now,
		nonce: func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sign returns the complete query for one API call: the fixed protocol
// parameters, a fresh Timestamp and SignatureNonce, the caller's params
// (which win on key collision) and the resulting Signature.
func (s *Signer) Sign(action string, params map[string]string) url.Values {
	values := url.Values{}
	values.Set("Format", ResponseFormat)
	values.Set("Version", APIVersion)
	values.Set("AccessKeyId", s.creds.AccessKeyID)
	values.Set("SignatureMethod", SignatureMethod)
	values.Set("SignatureVersion", SignatureVersion)
	values.Set("Action", action)
	values.Set("Timestamp", s.now().UTC().Format(TimestampLayout))
	values.Set("SignatureNonce", s.nonce())

	for k, v := range params {
		values.Set(k, v)
	}

	values.Set("Signature", Signature(s.creds.AccessKeySecret, StringToSign(values)))
	return values
}

// StringToSign builds the canonical string the signature is computed over.
// Any Signature parameter already present in params is ignored, so the
// function can also be used to verify a received request.
func StringToSign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "Signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonical strings.Builder
	for i, k := range keys {
		if i > 0 {
			canonical.WriteByte('&')
		}
		canonical.WriteString(percentEncode(k))
		canonical.WriteByte('=')
		canonical.WriteString(percentEncode(params.Get(k)))
	}

	return stringToSignPrefix + percentEncode(canonical.String())
}

// Signature computes base64(HMAC-SHA1(secret + "&", stringToSign)).
func Signature(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(stringToSign))
	return strings.TrimRight(base64.StdEncoding.EncodeToString(mac.Sum(nil)), "\n")
}

// percentEncode applies RFC 3986 encoding: spaces become %20 rather than +,
// and "~" stays literal.
func percentEncode(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	return strings.ReplaceAll(encoded, "%7E", "~")
}
