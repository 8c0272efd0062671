package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/constants"
)

// maxErrorBody limits how much of a failed response is copied into the error.
const maxErrorBody = 512

// doGetJSON performs a rate limited GET against the REST endpoint with the given query
// and unmarshals the JSON response into the result type.
// Transport and status failures wrap album.ErrSearchFailed; bodies that are not
// valid JSON for T wrap album.ErrMalformedResponse.
func doGetJSON[T any](ctx context.Context, c *Client, query url.Values) (*T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", album.ErrSearchFailed, err)
	}

	u := *c.baseURL
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create request: %w", album.ErrSearchFailed, err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not send request: %w", album.ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: request failed with status %d: %s",
			album.ErrSearchFailed, resp.StatusCode, readErrorBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response body: %w", album.ErrSearchFailed, err)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal response: %w", album.ErrMalformedResponse, err)
	}

	return &result, nil
}

// readErrorBody reads the start of the response body for error messages.
// Returns a placeholder if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

// flexInt decodes integers that Flickr sometimes sends as JSON strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected integer, got %s", data)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected integer, got %q", s)
	}
	*f = flexInt(n)
	return nil
}
