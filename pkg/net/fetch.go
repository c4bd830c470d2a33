package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes caps the size of a downloaded artifact.
const maxBodyBytes = 64 << 20

var ErrorURLNotFound = errors.New("URL not found")

// IsRemote reports whether path should be fetched over HTTP.
func IsRemote(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Fetch downloads the content at url into memory.
func Fetch(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := GetHTTPClient(ctx, token).Do(req) //nolint:gosec // URL is operator supplied configuration
	if err != nil {
		return nil, fmt.Errorf("error executing HTTP Get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrorURLNotFound
	}

	if resp.StatusCode != http.StatusOK {
		PrintHTTPResponse(resp)
		return nil, fmt.Errorf("error downloading (status: %d - %s): %s", resp.StatusCode, resp.Status, url)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if len(b) > maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes: %s", maxBodyBytes, url)
	}

	return b, nil
}
