// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Photo search constants
const (
	// DefaultSearchRadiusKm is the radius around a pin searched for photos
	DefaultSearchRadiusKm = 10.0

	// DefaultMaxAlbumSize is the maximum number of photos kept per album
	DefaultMaxAlbumSize = 50

	// DefaultMaxResultWindow is the deepest result Flickr lets a search page into
	DefaultMaxResultWindow = 4000
)

// Network constants
const (
	// DefaultRequestTimeout bounds every outbound request when no timeout is configured
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxPayloadBytes caps a single downloaded image (20MB)
	DefaultMaxPayloadBytes = 20 << 20

	// UserAgent is sent with every outbound request
	UserAgent = "pinalbum/1.0 (+https://github.com/kozaktomas/pinalbum)"
)

// Processing constants
const (
	// DefaultResumeConcurrency is the number of albums resumed in parallel on startup
	DefaultResumeConcurrency = 4
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
