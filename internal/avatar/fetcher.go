package avatar

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher downloads a generated avatar image and encodes it as a
// self-contained data URI so the submission payload carries the image
// inline instead of a fragile external reference.
type Fetcher struct {
	HTTP *http.Client
}

// NewFetcher creates a fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// FetchBytes downloads imageURL and returns the raw image plus its
// content type.
func (f *Fetcher) FetchBytes(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("avatar fetch: create request failed: %w", err)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("avatar fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("avatar fetch: service returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("avatar fetch: read body failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/svg+xml"
	}
	return data, contentType, nil
}

// Fetch downloads imageURL and returns a data:image/...;base64 URI.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (string, error) {
	data, contentType, err := f.FetchBytes(ctx, imageURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
