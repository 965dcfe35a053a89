// Package sheets fetches the raw curve export from a remote spreadsheet
// CSV export URL. It is a collaborator of the ingestion engine, not part of
// the engine itself.
package sheets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client downloads the published CSV export of the curve spreadsheet
type Client struct {
	exportURL  string
	httpClient *http.Client
}

// NewClient creates a client for the given CSV export URL
func NewClient(exportURL string) *Client {
	return &Client{
		exportURL:  exportURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// FetchCSV retrieves the raw export text for one ingestion run
func (c *Client) FetchCSV(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.exportURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build export request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch curve export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("curve export returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read curve export body: %w", err)
	}

	return string(body), nil
}
