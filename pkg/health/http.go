package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker reports healthy when a GET on URL returns a 2xx or 3xx status.
// serve points it at the API's own /live route.
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP health checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// LivenessURL builds the URL of the /live route for a listen address.
func LivenessURL(addr string) string {
	return "http://" + dialAddress(addr) + "/live"
}

// Check performs the HTTP health check
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	fail := func(format string, err error) Result {
		return Result{
			Message:   fmt.Sprintf(format, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return fail("failed to create request: %v", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 400
	return Result{
		Healthy:   healthy,
		Message:   fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}
