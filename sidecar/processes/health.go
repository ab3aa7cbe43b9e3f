package processes

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPReadinessChecker polls a freshly launched backend until it answers HTTP.
// The core launcher never waits for readiness; hosts that want to can use this.
type HTTPReadinessChecker struct {
	client       *http.Client
	path         string
	pollInterval time.Duration
}

// NewHTTPReadinessChecker creates a new HTTPReadinessChecker.
// requestTimeout bounds each individual request.
func NewHTTPReadinessChecker(path string, requestTimeout, pollInterval time.Duration) *HTTPReadinessChecker {
	if path == "" {
		path = "/"
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &HTTPReadinessChecker{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		path:         path,
		pollInterval: pollInterval,
	}
}

// Check performs one request against http://127.0.0.1:<port><path>. Any
// response below 500 counts as ready: the server is up even if the path 404s.
func (h *HTTPReadinessChecker) Check(ctx context.Context, port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d for readiness check", port)
	}

	url := fmt.Sprintf("http://%s:%d%s", loopbackHost, port, h.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create readiness request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("readiness request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("readiness check at %s returned status %s", url, resp.Status)
	}
	return nil
}

// WaitReady polls Check until it succeeds or ctx is done.
func (h *HTTPReadinessChecker) WaitReady(ctx context.Context, port int) error {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = h.Check(ctx, port); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("backend on port %d not ready: %w (last error: %v)", port, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}
