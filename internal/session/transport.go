package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Transport returns a RoundTripper that adds the session's Authorization
// header to every request. A nil base uses http.DefaultTransport.
func (s *Session) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{session: s, base: base}
}

// Client returns an HTTP client that authenticates with the session's token.
func (s *Session) Client() *http.Client {
	return &http.Client{
		Transport: s.Transport(s.httpClient.Transport),
		Timeout:   s.httpClient.Timeout,
	}
}

type authTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers := t.session.AuthHeader()
	if len(headers) == 0 {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	for k, v := range headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}

// APIClient calls a JSON API authenticated by a session.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(baseURL string, s *Session) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  s.Client(),
	}
}

// CanonicalEndpoint trims surrounding slashes from endpoint and appends one
// trailing slash, the layout the API expects.
func CanonicalEndpoint(endpoint string) string {
	return strings.Trim(endpoint, "/") + "/"
}

// FetchJSON sends a request to endpoint and decodes the JSON response into out.
// A nil out discards the body. Non-2xx responses fail with
// "Request error: <status>: <body>".
func (c *APIClient) FetchJSON(ctx context.Context, method, endpoint string, out interface{}) error {
	if method == "" {
		method = http.MethodGet
	}
	target, err := url.Parse(c.baseURL + "/" + CanonicalEndpoint(endpoint))
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("Request error: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
