package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultClientTimeout = 10 * time.Second
	maxResponseBytes     = 2 << 20 // 2MB
	maxErrorBodyBytes    = 512
)

var (
	// ErrServiceUnavailable marks an HTTP 502 from the upstream API.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timed out")
	ErrHTTPStatus         = errors.New("unexpected http status")
	ErrMalformedResponse  = errors.New("malformed response")
)

// FetchError describes a failed request. StatusCode is zero when no response
// was received.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClientOptions for the fetch client.
type ClientOptions struct {
	Timeout           time.Duration
	UserAgent         string
	RetryMax          int
	RequestsPerSecond float64
}

// Client is a JSON GET client with a per-request timeout and an outbound
// rate limit.
type Client struct {
	inner     *retryablehttp.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	r.HTTPClient.Timeout = opts.Timeout
	r.Logger = nil
	// hand back the last response so status codes survive
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	burst := 0
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}
	return &Client{
		inner:     r,
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: opts.UserAgent,
	}
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FetchError{URL: redact(url), Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: redact(url), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		if isTimeout(err) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return &FetchError{URL: redact(url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		cause := ErrHTTPStatus
		if resp.StatusCode == http.StatusBadGateway {
			cause = ErrServiceUnavailable
		}
		return &FetchError{URL: redact(url), StatusCode: resp.StatusCode, Body: string(body), Err: cause}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		if isTimeout(err) {
			return &FetchError{URL: redact(url), StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
		}
		return &FetchError{URL: redact(url), StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}
	return nil
}

// Fetch decodes the response at url as T and shapes it with extract.
func Fetch[T, R any](ctx context.Context, c *Client, url string, extract func(T) R) (R, error) {
	var raw T
	if err := c.GetJSON(ctx, url, &raw); err != nil {
		var zero R
		return zero, err
	}
	return extract(raw), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
