package gateway

import "fmt"

// TransportError wraps a network-level failure (connection, timeout) talking
// to the provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthenticationError indicates the provider rejected our credentials.
type AuthenticationError struct {
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("gateway authentication failed with HTTP status %d", e.StatusCode)
}

// ProviderRejection indicates the provider rejected the request itself
// (malformed request, provider-side validation, server error).
type ProviderRejection struct {
	StatusCode int
	Message    string
}

func (e *ProviderRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway rejected request with HTTP status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway rejected request with HTTP status %d: %s", e.StatusCode, e.Message)
}
