// Package fetcher retrieves raw feed documents over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"islet/internal/model"
)

// DefaultTimeout bounds a single feed retrieval.
const DefaultTimeout = 5 * time.Second

const userAgent = "islet/1.0"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads raw feed documents. Parsing happens elsewhere.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// NewWithProxy creates a Fetcher whose client honors the proxy settings in
// cfg and the default timeout.
func NewWithProxy(cfg *model.AppConfig) (*Fetcher, error) {
	transport := &http.Transport{}
	if cfg.UseProxy && cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &Fetcher{client: &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}}, nil
}

// Fetch returns the raw bytes of the feed document at source. Sources not
// starting with "http" are read from the local filesystem, which keeps test
// fixtures and local files usable as pseudo-URLs.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read local feed: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, model.FeedSizeLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s",
			resp.StatusCode, model.Truncate(string(body), 200))
	}
	return body, nil
}
