package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"gazette/internal/config"
)

// pacedClient wraps an *http.Client with a token-bucket limiter built from a
// source descriptor's rate_limit/burst, so every driver paces its own
// outbound requests the same way regardless of which source it talks to.
type pacedClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newPacedClient(desc config.SourceDescriptor, timeout time.Duration) *pacedClient {
	interval := desc.RateLimit
	if interval <= 0 {
		interval = time.Second
	}
	burst := desc.Burst
	if burst <= 0 {
		burst = 1
	}
	return &pacedClient{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// get waits for the rate limiter, issues a GET with the given User-Agent,
// and returns the body bytes on a 2xx response. Non-2xx responses are
// classified retryable/fatal via classifyHTTPStatus.
func (c *pacedClient) get(ctx context.Context, url, userAgent string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: "rate_limit_wait", Retryable: true, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Op: "build_request", Retryable: false, Err: err}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "do_request", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: "read_body", Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Op:        "fetch",
			Retryable: classifyHTTPStatus(resp.StatusCode),
			Err:       fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}
	return body, nil
}
