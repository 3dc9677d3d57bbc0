// Package errors provides domain-specific error types and sentinel errors
// for the gateway's verification, configuration and dispatch paths.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrHandlerTimeout indicates a handler invocation exceeded its deadline.
	ErrHandlerTimeout = errors.New("handler timed out")

	// ErrHandlerNotFound indicates a rule references an unregistered handler.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrInvalidPattern indicates a wildcard pattern is structurally malformed.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrNoSigningSecret indicates the verifier was built without a secret.
	ErrNoSigningSecret = errors.New("signing secret not configured")
)

// RejectReason identifies why an inbound request failed verification.
type RejectReason string

const (
	ReasonSignatureMismatch RejectReason = "signature_mismatch"
	ReasonStaleRequest      RejectReason = "stale_request"
	ReasonMalformedRequest  RejectReason = "malformed_request"
)

// VerificationError is returned when an inbound request fails the
// authenticity or freshness check. It is always fatal to the request.
type VerificationError struct {
	Reason RejectReason
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("verification failed: %s", e.Reason)
	}
	return fmt.Sprintf("verification failed: %s: %s", e.Reason, e.Detail)
}

// NewVerificationError creates a verification error with a reject reason.
func NewVerificationError(reason RejectReason, detail string) *VerificationError {
	return &VerificationError{Reason: reason, Detail: detail}
}

// ConfigurationError aggregates every invalid rule found during rule-set
// loading. Startup fails loudly on it rather than running with a partial set.
type ConfigurationError struct {
	Problems []error
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("invalid rule configuration (%d problems): %s",
		len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ConfigurationError) Unwrap() []error {
	return e.Problems
}

// HandlerError wraps a failure local to one dispatch. It is reported but
// never propagated as a process-level failure.
type HandlerError struct {
	Handler string // handler reference (e.g. "script:restart.sh")
	Rule    string // display name of the matched rule
	Cause   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("[%s] handler %s failed: %v", e.Rule, e.Handler, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// NewHandlerError creates a handler error for a single dispatch.
func NewHandlerError(rule, handler string, cause error) *HandlerError {
	return &HandlerError{Rule: rule, Handler: handler, Cause: cause}
}
