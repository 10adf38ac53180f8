// Package pricing is the client for the DesguaPro pricing service's
// single-item verification endpoint.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.desguapro.com"

// Client verifies one stock item against the remote pricing service.
type Client interface {
	Verify(ctx context.Context, req VerifyRequest) (*Result, error)
}

// VerifyRequest is the request body for POST /api/v1/precios/verificar.
type VerifyRequest struct {
	RefID               string  `json:"ref_id"`
	RefOEM              string  `json:"ref_oem"`
	RefOE               string  `json:"ref_oe,omitempty"`
	PartType            string  `json:"part_type"`
	Price               float64 `json:"price"`
	OutlierThresholdPct float64 `json:"outlier_threshold_pct"`
}

// Result is one verification outcome computed server-side. PriceSuggested
// is nil when the part's family has no pricing tier yet.
type Result struct {
	RefID          string   `json:"ref_id"`
	RefOEM         string   `json:"ref_oem"`
	PartType       string   `json:"part_type"`
	PriceActual    float64  `json:"price_actual"`
	PriceMarket    float64  `json:"price_market"`
	PriceSuggested *float64 `json:"price_suggested"`
	DifferencePct  float64  `json:"difference_pct"`
	IsOutlier      bool     `json:"is_outlier"`
	Family         string   `json:"family"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimiter caps the overall request rate across all callers of
// this client, on top of whatever per-worker pacing the scheduler does.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a pricing service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Verify issues one verification request. The request is bound to ctx and
// aborts as soon as ctx is cancelled. A 204 or 404 response means the
// service has no market data for the reference and returns (nil, nil).
func (c *httpClient) Verify(ctx context.Context, req VerifyRequest) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pricing: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/precios/verificar", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "pricing: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("pricing: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "pricing: unmarshal response")
	}

	return &result, nil
}
