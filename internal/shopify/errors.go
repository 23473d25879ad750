// Package shopify is a stateless client for the Shopify Storefront GraphQL API.
package shopify

import "errors"

// Gateway failure taxonomy. Callers classify with errors.Is; the wrapped
// message carries the operation and the upstream detail.
var (
	// ErrNotConfigured means the store domain or access token is unset.
	// Every operation fails fast with it before any network I/O.
	ErrNotConfigured = errors.New("storefront API is not configured")

	// ErrInvalidInput is a caller-side contract violation, detected
	// before the call is attempted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout means the remote call did not complete within the bound
	// and the in-flight request was cancelled.
	ErrTimeout = errors.New("storefront API request timed out")

	// ErrRemoteRejected means the call completed but the platform reported
	// a business-level rejection; the first reported message is surfaced.
	ErrRemoteRejected = errors.New("rejected by storefront API")

	// ErrTransport is an HTTP or network-level failure, distinct from a
	// business rejection. An open circuit breaker also surfaces as this.
	ErrTransport = errors.New("storefront API unreachable")
)
