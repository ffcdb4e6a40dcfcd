package proxy

import "fmt"

// The taxonomy below exists for the orchestrator and the audit trail.
// Externally every member collapses to a generic response so callers
// cannot enumerate valid clients or probe permission boundaries.

// ValidationError rejects malformed input before any credential lookup.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// AuthenticationError covers unknown, inactive, locked, expired and
// mismatched credentials alike.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// OriginDeniedError is raised when the caller's network origin is not
// on the client's allow-list.
type OriginDeniedError struct{}

func (e *OriginDeniedError) Error() string {
	return "origin not allowed"
}

// RateLimitExceeded fails fast before credential or permission work.
type RateLimitExceeded struct {
	Scope string
}

func (e *RateLimitExceeded) Error() string {
	return "rate limit exceeded: " + e.Scope
}

// AuthorizationError means the authenticated client holds no rule that
// permits the concrete operation.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Reason
}

// UpstreamError wraps vendor failures after the bounded retry.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
