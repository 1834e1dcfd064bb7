package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// requestTimeout bounds every single REST call to a venue.
const requestTimeout = 20 * time.Second

// restClient is the shared HTTP plumbing for venue implementations.
type restClient struct {
	baseURL    string
	httpClient *http.Client
}

func newRESTClient(baseURL string) restClient {
	return restClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// getJSON performs a GET against path (already including any query string) and
// decodes the JSON response body into out.
func (rc restClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("venue: build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("venue: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("venue: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("venue: get %s: status %d: %s", path, resp.StatusCode, truncate(body, 256))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("venue: decode %s: %w", path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// parseFloat converts a venue's string-encoded number, treating empty strings
// as zero rather than an error.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
