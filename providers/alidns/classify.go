package alidns

import (
	"errors"
	"strings"

	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
)

// Error code prefixes with a dedicated classification.
const (
	codePrefixInvalidAccessKey  = "InvalidAccessKeyId."
	codePrefixInvalidDomainName = "InvalidDomainName."
)

// credentialHint is attached to credential failures.
const credentialHint = "Are your AccessKey and AccessKeySecret values correct?"

// Classify maps an API error raised while looking up zones for domain onto
// the provider error taxonomy. KindNotFound means the zone name guess does
// not exist and the caller may try the next candidate.
func Classify(apiErr *APIError, domain string) *provider.Error {
	e := &provider.Error{
		Kind:      provider.KindUnexpected,
		Op:        "resolving zone",
		Domain:    domain,
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestID: apiErr.RequestID,
		Err:       apiErr,
	}

	switch {
	case strings.HasPrefix(apiErr.Code, codePrefixInvalidAccessKey):
		e.Kind = provider.KindCredential
		e.Hint = credentialHint
	case strings.HasPrefix(apiErr.Code, codePrefixInvalidDomainName):
		e.Kind = provider.KindNotFound
	}

	return e
}

// wrapError turns a failure outside zone lookup into an unexpected provider
// error. Errors that are already classified pass through untouched.
func wrapError(op, domain string, err error) error {
	if err == nil {
		return nil
	}

	var classified *provider.Error
	if errors.As(err, &classified) {
		return err
	}

	e := &provider.Error{
		Kind:   provider.KindUnexpected,
		Op:     op,
		Domain: domain,
		Err:    err,
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.Code
		e.Message = apiErr.Message
		e.RequestID = apiErr.RequestID
	}

	return e
}
