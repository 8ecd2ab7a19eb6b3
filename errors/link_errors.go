package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Every kind maps to a stable,
// user-displayable reason string; the UI switches on Kind, never on the
// wrapped cause.
type Kind string

const (
	// KindCancelled means the user declined consent at the platform.
	// Informational, not an error state.
	KindCancelled Kind = "cancelled"
	// KindSecurityError means the callback failed anti-forgery validation.
	// Fatal for the attempt; the link flow must be restarted.
	KindSecurityError Kind = "security_error"
	KindTokenExchangeFailed Kind = "token_exchange_failed"
	KindIdentityFetchFailed Kind = "identity_fetch_failed"
	// KindDiscoveryEmpty means all four top-level collections stayed empty
	// after bounded retries. Non-fatal; the UI offers a manual retry.
	KindDiscoveryEmpty Kind = "discovery_empty"
	// KindDiscoveryTimeout means the hard wall-clock ceiling fired before
	// discovery resolved. Distinct from DiscoveryEmpty: non-response, not an
	// empty response.
	KindDiscoveryTimeout Kind = "discovery_timeout"
	// KindReconnectRequired means the platform reported the stored credential
	// as expired or invalid.
	KindReconnectRequired Kind = "reconnect_required"
	KindValidationError   Kind = "validation_error"
	KindSubmissionError   Kind = "submission_error"
)

// LinkError is a classified pipeline failure. Reason is stable and safe to
// show to the end user; Err carries the underlying cause for logs.
type LinkError struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *LinkError) Unwrap() error { return e.Err }

// New creates a LinkError with the given kind and reason.
func New(kind Kind, reason string) *LinkError {
	return &LinkError{Kind: kind, Reason: reason}
}

// Wrap creates a LinkError carrying an underlying cause.
func Wrap(kind Kind, reason string, err error) *LinkError {
	return &LinkError{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the Kind from err, or "" when err is not a LinkError.
func KindOf(err error) Kind {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// Reason extracts the user-displayable reason, falling back to a generic
// message for unclassified errors.
func Reason(err error) string {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Reason
	}
	return "Something went wrong. Please try again."
}

// Canned pipeline failures. Reasons are part of the UI contract: stable
// strings the dashboard renders verbatim.
var (
	ErrCancelled = New(KindCancelled, "Connection was cancelled. You can retry whenever you are ready.")
	ErrStateMismatch = New(KindSecurityError, "We could not verify this connection attempt. Please restart the link flow.")
	ErrTokenExchange = New(KindTokenExchangeFailed, "The advertising platform did not accept the connection. Please try again.")
	ErrIdentityFetch = New(KindIdentityFetchFailed, "We could not confirm your advertising identity. Please try again.")
	ErrDiscoveryEmpty = New(KindDiscoveryEmpty, "We could not find any assets on your advertising account.")
	ErrDiscoveryTimeout = New(KindDiscoveryTimeout, "Looking up your advertising assets took too long. Please retry the connection.")
	ErrReconnectRequired = New(KindReconnectRequired, "Your advertising connection has expired. Please reconnect your account.")
	ErrSubmission = New(KindSubmissionError, "Saving your selection failed. Your choices are preserved, please retry.")
)

// HTTPStatus maps a pipeline failure to the status code the echo layer
// responds with. Unclassified errors are treated as internal.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindCancelled:
		return http.StatusConflict
	case KindSecurityError:
		return http.StatusForbidden
	case KindTokenExchangeFailed, KindIdentityFetchFailed, KindSubmissionError:
		return http.StatusBadGateway
	case KindReconnectRequired:
		return http.StatusUnauthorized
	case KindValidationError:
		return http.StatusConflict
	case KindDiscoveryTimeout:
		return http.StatusGatewayTimeout
	case KindDiscoveryEmpty:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
