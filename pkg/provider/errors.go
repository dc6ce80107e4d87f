package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a provider failure into an actionable category.
type Kind int

const (
	// KindUnexpected is any provider error without a more specific kind.
	KindUnexpected Kind = iota

	// KindCredential indicates the access key pair was rejected.
	KindCredential

	// KindNotFound indicates a zone or record could not be found.
	KindNotFound

	// KindTransport indicates the request never produced a decodable API response.
	KindTransport
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unexpected"
	}
}

// Sentinel errors matching each Kind via errors.Is.
var (
	// ErrCredential matches errors of KindCredential.
	ErrCredential = errors.New("invalid credentials")

	// ErrNotFound matches errors of KindNotFound.
	ErrNotFound = errors.New("not found")

	// ErrUnexpected matches errors of KindUnexpected.
	ErrUnexpected = errors.New("unexpected provider error")

	// ErrTransport matches errors of KindTransport.
	ErrTransport = errors.New("provider unavailable")
)

func (k Kind) sentinel() error {
	switch k {
	case KindCredential:
		return ErrCredential
	case KindNotFound:
		return ErrNotFound
	case KindTransport:
		return ErrTransport
	default:
		return ErrUnexpected
	}
}

// Error is a classified provider failure. The payload fields are optional;
// which ones are set depends on where the failure happened.
type Error struct {
	Kind Kind

	// Op is the operation that failed (e.g., "resolving zone").
	Op string

	// Domain is the domain name the operation was working on.
	Domain string

	// Candidates lists the zone names tried before giving up.
	Candidates []string

	// Code, Message and RequestID are copied verbatim from the provider response.
	Code      string
	Message   string
	RequestID string

	// Hint is a human-readable suggestion for fixing the problem.
	Hint string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Domain != "" {
			fmt.Fprintf(&b, " for %s", e.Domain)
		}
		b.WriteString(": ")
	}

	switch {
	case e.Code != "":
		fmt.Fprintf(&b, "%s (code: %s, request id: %s)", e.Message, e.Code, e.RequestID)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.Message != "":
		b.WriteString(e.Message)
	default:
		b.WriteString(e.Kind.sentinel().Error())
	}

	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (tried zones: %s)", strings.Join(e.Candidates, ", "))
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the Kind of the first *Error in err's chain.
// Errors that are not classified report KindUnexpected.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// IsCredential returns true if the error indicates the access key pair was rejected.
func IsCredential(err error) bool {
	return errors.Is(err, ErrCredential)
}

// IsNotFound returns true if the error indicates a zone or record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnexpected returns true if the error is an unclassified provider failure.
func IsUnexpected(err error) bool {
	return errors.Is(err, ErrUnexpected)
}

// IsTransport returns true if the error indicates the provider is unreachable
// or returned something that is not an API response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Value   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error: %s=%q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// ErrConfigMissing creates an error for a missing required configuration field.
func ErrConfigMissing(field string) error {
	return &ConfigError{
		Field:   field,
		Message: "required but not set",
	}
}

// ErrConfigInvalid creates an error for an invalid configuration value.
func ErrConfigInvalid(field, value, message string) error {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsConfigError returns true if the error is a configuration error.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}
