// Package healthhttp probes deployed services over HTTP.
package healthhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shiplock/shiplock/internal/domain"
)

// Checker implements [domain.HealthChecker] with plain HTTP GETs. A probe
// is healthy when the endpoint answers 2xx within its latency budget.
type Checker struct {
	// Client defaults to a client with a 10 second timeout.
	Client *http.Client
}

var defaultClient = &http.Client{Timeout: 10 * time.Second}

func (c *Checker) Check(ctx context.Context, probe domain.HealthProbe) (domain.HealthResult, error) {
	client := c.Client
	if client == nil {
		client = defaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe.URL, nil)
	if err != nil {
		return domain.HealthResult{}, fmt.Errorf("build probe request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return domain.HealthResult{}, fmt.Errorf("probe %s: %w", probe.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	elapsed := time.Since(start)

	result := domain.HealthResult{
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
		Healthy:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		Detail:       fmt.Sprintf("%s in %s", resp.Status, elapsed.Round(time.Millisecond)),
	}
	if !result.Healthy {
		result.Detail = fmt.Sprintf("endpoint returned %s", resp.Status)
		return result, nil
	}
	if probe.MaxLatency > 0 && elapsed > probe.MaxLatency {
		result.Healthy = false
		result.Detail = fmt.Sprintf("responded in %s, budget %s",
			elapsed.Round(time.Millisecond), probe.MaxLatency)
	}
	return result, nil
}
