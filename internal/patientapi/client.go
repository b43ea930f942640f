// internal/patientapi/client.go
//
// Intake – HTTP creation client.
//
// Context
//   Client implements intake.Creator against a JSON creation endpoint:
//
//      POST {base}/patients
//      Content-Type: application/json
//      Idempotency-Key: <attempt id>      (when the controller set one)
//
//   Any 2xx with a body of the form {"id": "..."} is a success.  Everything
//   else maps onto the intake failure taxonomy:
//
//   •  transport error, timeout, cancelled context  → *intake.NetworkError
//   •  status outside 200-299, whatever the body    → *intake.HTTPError
//      (redirects are not followed)
//   •  2xx whose body is not JSON or has no id      → *intake.DecodeError
//
//   Error bodies are never parsed; they are kept as raw bytes (capped) for
//   the diagnostic log.
//
//------------------------------------------------------------------------------

package patientapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanizio/intake/internal/intake"
	"github.com/yanizio/intake/internal/metrics"
)

const (
	// DefaultTimeout bounds a single creation request.
	DefaultTimeout = 15 * time.Second

	// maxBody caps how much of any response body is read.
	maxBody = 64 << 10

	collectionPath = "/patients"
)

// Compile-time assertion: *Client satisfies intake.Creator.
var _ intake.Creator = (*Client)(nil)

// Client is safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	headers http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient bases the Client on a copy of hc, so later options never
// modify the caller's client.  A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout of the Client's own *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHeader adds a static header to every request (e.g., Authorization).
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// New returns a Client posting to baseURL + "/patients".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	// A redirect is a non-2xx answer to the POST, never a creation.
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

// Create posts p and returns the created reference.
func (c *Client) Create(ctx context.Context, p intake.Payload) (intake.CreatedPatientRef, error) {
	var ref intake.CreatedPatientRef

	body, err := json.Marshal(p)
	if err != nil {
		return ref, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+collectionPath, bytes.NewReader(body))
	if err != nil {
		return ref, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := intake.AttemptID(ctx); id != "" {
		req.Header.Set("Idempotency-Key", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CreateDuration.WithLabelValues(metrics.StatusClass(0)).Observe(time.Since(start).Seconds())
		return ref, &intake.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	metrics.CreateDuration.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A truncated or unreadable error body is still an HTTP failure.
		return ref, &intake.HTTPError{StatusCode: resp.StatusCode, RawBody: raw}
	}
	if readErr != nil {
		return ref, &intake.NetworkError{Err: fmt.Errorf("read response: %w", readErr)}
	}

	if err := json.Unmarshal(raw, &ref); err != nil {
		return intake.CreatedPatientRef{}, &intake.DecodeError{Err: err, RawBody: raw}
	}
	if ref.ID == "" {
		return intake.CreatedPatientRef{}, &intake.DecodeError{Err: intake.ErrEmptyID, RawBody: raw}
	}
	return ref, nil
}
