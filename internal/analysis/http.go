package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient is used by providers constructed without a client.
// Deadlines come from the caller's context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

// PostJSON sends payload to endpoint and decodes a successful response into
// out. Non-2xx responses become *RemoteError, transport failures
// *TransportError and undecodable bodies ErrMalformedResponse.
func PostJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, payload any, out any) error {
	if client == nil {
		client = DefaultHTTPClient()
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", provider, ctxErr)
		}
		return &TransportError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", provider, ErrMalformedResponse, err)
	}
	return nil
}
