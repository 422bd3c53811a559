package analysis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAPIKeyRequired is returned before any network call when a remote
	// provider has no credential.
	ErrAPIKeyRequired = errors.New("API key required")
	// ErrMalformedResponse means the provider answered but the body could not
	// be read as a special point array.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// RemoteError reports a non-success HTTP response from a provider.
type RemoteError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	if body == "" {
		return fmt.Sprintf("%s: remote service error: %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: remote service error: %d: %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether repeating the request may succeed.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TransportError wraps network failures reaching a provider.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable()
	}
	var transport *TransportError
	return errors.As(err, &transport)
}
