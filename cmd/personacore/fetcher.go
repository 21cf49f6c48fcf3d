package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/personacore/personacore/pkg/learning"
)

// httpFetcher pulls settled engagement metrics from the host platform.
// The endpoint is expected to serve GET {base}/{actionID} with an
// EngagementMetrics JSON body.
type httpFetcher struct {
	base   string
	client *http.Client
}

func newHTTPFetcher(base string) *httpFetcher {
	return &httpFetcher{
		base: base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchMetrics retrieves engagement metrics for one action.
func (f *httpFetcher) FetchMetrics(ctx context.Context, actionID string) (learning.EngagementMetrics, error) {
	var metrics learning.EngagementMetrics

	endpoint := f.base + "/" + url.PathEscape(actionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return metrics, fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return metrics, fmt.Errorf("fetch metrics for %s: %w", actionID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return metrics, fmt.Errorf("fetch metrics for %s: unexpected status %d", actionID, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return metrics, fmt.Errorf("decode metrics for %s: %w", actionID, err)
	}
	return metrics, nil
}
