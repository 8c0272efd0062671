package database

import (
	"fmt"
	"slices"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// NormalizeURIs validates the URIs and returns them sorted with duplicates removed.
func NormalizeURIs(uris []string) ([]string, error) {
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if err := album.ValidateSourceURI(uri); err != nil {
			return nil, err
		}
		out = append(out, uri)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// writeFailed wraps a failed write with album.ErrStoreWriteFailed.
func writeFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", album.ErrStoreWriteFailed, op, err)
}
