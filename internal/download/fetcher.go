// Package download retrieves album item payloads (image bytes) over plain HTTP.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/constants"
)

// Fetcher downloads item payloads. Bodies are returned verbatim.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher with the given per-request timeout and payload cap.
// Non-positive values fall back to the package defaults.
func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxPayloadBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the resource at uri. Every failure wraps album.ErrPayloadFetchFailed.
//
// The function respects context cancellation and will return early
// if the context is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", album.ErrPayloadFetchFailed, ctx.Err())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", album.ErrPayloadFetchFailed, err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %w", album.ErrPayloadFetchFailed, uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP error: %d %s", album.ErrPayloadFetchFailed, resp.StatusCode, resp.Status)
	}

	// Read one byte past the cap so oversized bodies are detected rather than truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", album.ErrPayloadFetchFailed, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", album.ErrPayloadFetchFailed, f.maxBytes)
	}
	if body == nil {
		body = []byte{}
	}

	return body, nil
}
