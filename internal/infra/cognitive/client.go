// Package cognitive talks to the vision and text-analytics cognitive services.
package cognitive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
)

// SubscriptionKeyHeader carries the service key on every call.
const SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// maxErrorBody bounds how much of a rejected response ends up in errors and logs.
const maxErrorBody = 4 << 10

// Client sends analysis requests. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a client with the given timeout. A positive requestsPerMinute
// throttles outbound calls (free tiers allow 20 per minute); zero means unlimited.
func NewClient(timeout time.Duration, requestsPerMinute int) *Client {
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	if requestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return c
}

// Do sends req once and returns the JSON body of a 2xx answer.
func (c *Client) Do(ctx context.Context, req analysis.Request) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", analysis.ErrTransport, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.TargetURL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrConfigurationMissing, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &analysis.RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", analysis.ErrTransport, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response is not JSON", analysis.ErrDecode)
	}
	return json.RawMessage(body), nil
}

// endpointURL joins a configured endpoint with an API path, trailing slashes on the endpoint are dropped.
func endpointURL(endpoint, key, apiPath string) (*url.URL, error) {
	endpoint = trimEndpoint(endpoint)
	if endpoint == "" || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: endpoint and key are required", analysis.ErrConfigurationMissing)
	}
	u, err := url.Parse(endpoint + apiPath)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint %q", analysis.ErrConfigurationMissing, endpoint)
	}
	return u, nil
}

func trimEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

// encodeJSON marshals v without HTML escaping so URLs and text reach the service verbatim.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
