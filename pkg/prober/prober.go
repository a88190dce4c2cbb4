// Package prober checks candidate documentation endpoints: a liveness probe
// and a spec fetch, each on its own bounded-timeout HTTP client so a hung
// service cannot stall reconciliation.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"k8s.io/klog/v2"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
)

// Prober performs availability checks and spec fetches
type Prober struct {
	probeClient *retryablehttp.Client
	fetchClient *retryablehttp.Client
	timeout     time.Duration
}

// NewProber creates a Prober with independent clients for probing and
// fetching. A context deadline bounds each whole call, retries included;
// persistent failures are reported to the caller, not retried across
// reconciles here.
func NewProber() *Prober {
	return newProber(config.ProbeTimeout)
}

func newProber(timeout time.Duration) *Prober {
	return &Prober{
		probeClient: newClient(0, timeout),
		fetchClient: newClient(2, timeout),
		timeout:     timeout,
	}
}

func newClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return client
}

// Probe reports whether url answers with a success status. Transport errors
// and non-success statuses both yield false, never an error.
func (p *Prober) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		klog.Warningf("Failed to build probe request for %s: %v", url, err)
		return false
	}

	resp, err := p.probeClient.Do(req)
	if err != nil {
		klog.Warningf("Failed to check API availability for %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// FetchSpec retrieves the specification body from url. Callers substitute a
// placeholder spec on error rather than failing reconciliation.
func (p *Prober) FetchSpec(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build spec request: %w", err)
	}

	resp, err := p.fetchClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch spec from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %s fetching spec from %s", resp.Status, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read spec body from %s: %w", url, err)
	}
	return string(body), nil
}
