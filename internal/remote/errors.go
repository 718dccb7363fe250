// Package remote classifies failures of the text and image services and paces calls to them.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure class of a remote call.
type Kind int

const (
	// KindTransport means the service could not be reached.
	KindTransport Kind = iota
	// KindRateLimit means the service rejected the call with HTTP 429.
	KindRateLimit
	// KindRejected means the request itself was refused (bad request, content policy).
	KindRejected
	// KindStatus is any other non-2xx status reported by the service.
	KindStatus
	// KindMalformed means the service answered but the body could not be used.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	case KindRejected:
		return "rejected"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure.
type Error struct {
	Service    string
	Kind       Kind
	StatusCode int
	Message    string
	Prompt     string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Service, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Prompt != "" {
		msg += fmt.Sprintf(" [prompt: %q]", e.Prompt)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LogAttrs returns slog key-value pairs describing the failure. The status
// and prompt are included only when set.
func (e *Error) LogAttrs() []any {
	attrs := []any{"service", e.Service, "kind", e.Kind.String()}
	if e.StatusCode != 0 {
		attrs = append(attrs, "status", e.StatusCode)
	}
	if e.Prompt != "" {
		attrs = append(attrs, "prompt", e.Prompt)
	}
	return attrs
}

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(code int) Kind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity:
		return KindRejected
	default:
		return KindStatus
	}
}

// StatusError builds an Error for an unsuccessful HTTP response.
func StatusError(service string, code int, message string) *Error {
	return &Error{
		Service:    service,
		Kind:       KindForStatus(code),
		StatusCode: code,
		Message:    message,
	}
}

// TransportError wraps a failure to reach the service. Context cancellation is
// returned unchanged so callers can tell an interrupted run from an outage.
func TransportError(service string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Service: service, Kind: KindTransport, Err: err}
}

// MalformedError reports a response that could not be used.
func MalformedError(service string, err error) *Error {
	return &Error{Service: service, Kind: KindMalformed, Err: err}
}

// WithPrompt attaches the offending prompt to err when it is a remote Error.
func WithPrompt(err error, prompt string) error {
	var re *Error
	if errors.As(err, &re) && re.Prompt == "" {
		re.Prompt = prompt
	}
	return err
}

// KindOf reports the failure kind of err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRateLimit
}
