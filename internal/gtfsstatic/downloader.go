package gtfsstatic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ogettransport/oget-bot/internal/common/logger"
)

const headerAPIKey = "ApiKey"

// Fetcher retrieves the raw static feed archive.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPFetcher downloads the static feed zip over authenticated GET.
type HTTPFetcher struct {
	url    string
	apiKey string
	client *http.Client
	logger logger.Logger
}

func NewHTTPFetcher(baseURL, apiKey string, log logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		url:    baseURL + "/download/static",
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 2 * time.Minute, // the archive is a few megabytes
		},
		logger: log,
	}
}

// Fetch downloads the archive into memory. The feed is small enough
// (a municipal network, ~2,000 stops) that buffering it whole is fine.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(headerAPIKey, f.apiKey)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	f.logger.Info("Static feed downloaded",
		"url", f.url,
		"size_bytes", len(data),
		"elapsed", time.Since(start))

	return data, nil
}
