package render

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// HTTPImageChecker implements ports.ImageChecker with a HEAD request.
type HTTPImageChecker struct {
	client *http.Client
}

// NewHTTPImageChecker creates a checker with the given per-request timeout.
func NewHTTPImageChecker(timeout time.Duration) *HTTPImageChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPImageChecker{client: &http.Client{Timeout: timeout}}
}

// Reachable reports whether url answers with a 2xx image.
func (c *HTTPImageChecker) Reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(ct, "image/")
}
