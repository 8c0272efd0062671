package album

import "errors"

// Error kinds surfaced by the sync engine and its collaborators. Callers match them
// with errors.Is; the wrapped message carries the details.
var (
	// ErrSearchFailed is a transport or API failure during the metadata search.
	ErrSearchFailed = errors.New("photo search failed")

	// ErrMalformedResponse means the search response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed search response")

	// ErrPayloadFetchFailed is a failure downloading a single item's image.
	ErrPayloadFetchFailed = errors.New("payload fetch failed")

	// ErrStoreWriteFailed is a failed commit against the album store.
	ErrStoreWriteFailed = errors.New("store write failed")

	// ErrConcurrentSync is returned when a sync is requested for an album that
	// already has one running.
	ErrConcurrentSync = errors.New("sync already running for album")

	// ErrNotFound means the location, album or item no longer exists, or the item
	// belongs to a superseded generation.
	ErrNotFound = errors.New("not found")

	// ErrInvalidURI is returned for item source URIs that are empty or not absolute.
	ErrInvalidURI = errors.New("invalid source URI")

	// ErrInvalidLocation is returned for coordinates outside the valid ranges.
	ErrInvalidLocation = errors.New("invalid location")
)
