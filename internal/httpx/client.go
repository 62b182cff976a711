package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autorecord/autorecord/internal/config"
)

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// UserAgent is sent with every request.
const UserAgent = "autorecord/1"

// Placeholder is replaced by the username in endpoint templates.
const Placeholder = "{username}"

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	switch t.auth.Mode {
	case "apikey":
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// NewClient constructs an http.Client for the given auth settings.
func NewClient(auth config.AuthConfig, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &authRoundTripper{base: http.DefaultTransport, auth: auth},
		Timeout:   timeout,
	}
}

// Expand replaces the {username} placeholder in tmpl with the query-escaped
// username.
func Expand(tmpl, username string) string {
	return strings.ReplaceAll(tmpl, Placeholder, url.QueryEscape(username))
}

// GetBytes performs an HTTP GET to rawURL and returns the response body.
func GetBytes(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// GetJSON performs an HTTP GET to rawURL and decodes the JSON body into v.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	body, err := GetBytes(ctx, client, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
