package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Trigger defaults used when the operator's input is not a positive integer.
const (
	DefaultSolveTimeout = 30
	DefaultSolveOrder   = 5
)

// SolveParams is one search request.
type SolveParams struct {
	Timeout int `json:"timeout"`
	Order   int `json:"order"`
}

// SolveDefaults substitutes values for unusable trigger input.
type SolveDefaults struct {
	Timeout int
	Order   int
}

// Parse converts the raw input fields. Text that is not a positive integer
// falls back to the default for that field.
func (d SolveDefaults) Parse(timeoutText, orderText string) SolveParams {
	if d.Timeout <= 0 {
		d.Timeout = DefaultSolveTimeout
	}
	if d.Order <= 0 {
		d.Order = DefaultSolveOrder
	}
	return SolveParams{
		Timeout: positiveOr(timeoutText, d.Timeout),
		Order:   positiveOr(orderText, d.Order),
	}
}

// ParseSolveParams parses with the built-in defaults of 30 and 5.
func ParseSolveParams(timeoutText, orderText string) SolveParams {
	return SolveDefaults{}.Parse(timeoutText, orderText)
}

func positiveOr(text string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// HTTPClient calls the solver's HTTP endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the solver HTTP root.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Solve sends GET /solve?timeout=&order=. The trigger is fire-and-forget:
// the body is discarded and only transport failures or an error status are
// reported.
func (c *HTTPClient) Solve(ctx context.Context, p SolveParams) error {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(p.Timeout))
	q.Set("order", strconv.Itoa(p.Order))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/solve?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("solve: %s", resp.Status)
	}
	return nil
}
