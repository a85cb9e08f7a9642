// Package authority is the outbound client for the remote system of record
// behind the gateway. The authority owns credentials, protected-resource
// locations, and ratings; this client only defines the request/response
// contract and maps failures into the gateway's error taxonomy.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"coursegate/internal/platform/metrics"
	dErrors "coursegate/pkg/domain-errors"
)

// RequestTimeout bounds every authority round trip. On expiry the call is
// reported as upstream-unavailable; non-idempotent calls are never retried
// here to avoid duplicate side effects.
const RequestTimeout = 8 * time.Second

const (
	actionGetLocation  = "getLocation"
	actionVerifyAccess = "verifyAccess"
	actionGetRatings   = "getRatings"
	actionAddRating    = "addRating"
)

// Client talks to the authority endpoint. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records per-action latency and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds an authority client for the given endpoint.
func New(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: RequestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request is the envelope every authority call posts. The action field
// discriminates; unused parameters are omitted.
type request struct {
	Action     string `json:"action"`
	APIKey     string `json:"apiKey"`
	ResourceID int64  `json:"resourceId,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	Rating     int    `json:"rating,omitempty"`
	Identity   string `json:"identity,omitempty"`
}

// GetLocation resolves the actual protected-resource location for
// resourceID. The location is handed to the caller for a one-time redirect
// and must never be cached or exposed otherwise.
func (c *Client) GetLocation(ctx context.Context, resourceID int64) (string, error) {
	var resp struct {
		DriveURL string `json:"driveUrl"`
	}
	if err := c.call(ctx, request{Action: actionGetLocation, ResourceID: resourceID}, &resp); err != nil {
		return "", err
	}
	if resp.DriveURL == "" {
		return "", dErrors.New(dErrors.CodeUpstreamUnavailable, "resource location unavailable")
	}
	return resp.DriveURL, nil
}

// VerifyAccess checks whether email+password is enrolled for resourceID.
// A definitive "no" is (false, nil); errors mean the answer is unknown and
// must not be conflated with a rejection.
func (c *Client) VerifyAccess(ctx context.Context, resourceID int64, email, password string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := c.call(ctx, request{Action: actionVerifyAccess, ResourceID: resourceID, Email: email, Password: password}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// GetRatings fetches the aggregate ratings payload for resourceID. The raw
// JSON is returned so the read path can cache and serve it verbatim.
func (c *Client) GetRatings(ctx context.Context, resourceID int64) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.call(ctx, request{Action: actionGetRatings, ResourceID: resourceID}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AddRating submits a rating on behalf of identity. The identity is
// attached server-side by the gateway; clients never supply their own.
// Returns the authority's payload verbatim.
func (c *Client) AddRating(ctx context.Context, resourceID int64, rating int, identity string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.call(ctx, request{Action: actionAddRating, ResourceID: resourceID, Rating: rating, Identity: identity}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// call posts one envelope and decodes the response. Every failure mode
// (marshalling, transport, timeout, non-2xx, undecodable body) maps to
// upstream-unavailable; the raw upstream error body is logged, never
// surfaced.
func (c *Client) call(ctx context.Context, req request, out any) error {
	req.APIKey = c.apiKey

	start := time.Now()
	err := c.doCall(ctx, req, out)
	if c.metrics != nil {
		c.metrics.ObserveAuthority(req.Action, time.Since(start), err)
	}
	if err != nil {
		c.logger.Warn("authority call failed", "action", req.Action, "error", err)
	}
	return err
}

func (c *Client) doCall(ctx context.Context, req request, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode authority request")
	}

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build authority request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "verification service unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused; the body content is an
		// upstream detail we do not propagate.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return dErrors.New(dErrors.CodeUpstreamUnavailable, "verification service unavailable")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "verification service unavailable")
		}
	}
	return nil
}
