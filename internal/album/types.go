// Package album defines the data model shared by the store, the sync engine and the
// presentation layer: pinned locations, their photo albums and album items.
package album

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// SyncState represents where an album is in its download lifecycle.
type SyncState string

// SyncState constants define the album synchronization lifecycle.
const (
	StateNotStarted         SyncState = "not_started"
	StateSearching          SyncState = "searching"
	StatePopulatingMetadata SyncState = "populating_metadata"
	StateFetchingPayloads   SyncState = "fetching_payloads"
	StateComplete           SyncState = "complete"
	StateEmpty              SyncState = "empty"
	StateFailed             SyncState = "failed"
)

// Valid reports whether s is one of the known states.
func (s SyncState) Valid() bool {
	switch s {
	case StateNotStarted, StateSearching, StatePopulatingMetadata, StateFetchingPayloads,
		StateComplete, StateEmpty, StateFailed:
		return true
	}
	return false
}

// Terminal returns true for states in which no more work is pending.
func (s SyncState) Terminal() bool {
	return s == StateComplete || s == StateEmpty
}

// NeedsResume returns true if an album in this state was interrupted and should be
// picked up again on startup. Failed albums wait for an explicit reload.
func (s SyncState) NeedsResume() bool {
	return !s.Terminal() && s != StateFailed
}

// Location is a geographic pin placed by the user.
type Location struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Album is the sync unit for one Location.
type Album struct {
	ID           string    `json:"id"`
	LocationID   string    `json:"location_id"`
	SyncState    SyncState `json:"sync_state"`
	NoItemsFound bool      `json:"no_items_found"`
	Generation   int64     `json:"generation"`
	LastError    string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Item is one photo of an album. Payload is nil until the image has been downloaded.
type Item struct {
	ID         string `json:"id"`
	AlbumID    string `json:"album_id"`
	SourceURI  string `json:"source_uri"`
	Payload    []byte `json:"-"`
	Generation int64  `json:"generation"`
}

// HasPayload reports whether the item's image has been downloaded.
func (i *Item) HasPayload() bool {
	return i.Payload != nil
}

// Progress is the download progress of an album.
type Progress struct {
	Filled int `json:"filled"`
	Total  int `json:"total"`
}

// Ratio returns Filled/Total. The second value is false when the album has no items,
// in which case the ratio is undefined.
func (p Progress) Ratio() (float64, bool) {
	if p.Total == 0 {
		return 0, false
	}
	return float64(p.Filled) / float64(p.Total), true
}

// Complete reports whether every item has its payload. An album without items is
// complete only when the search legitimately returned nothing.
func (p Progress) Complete(noItemsFound bool) bool {
	if p.Total == 0 {
		return noItemsFound
	}
	return p.Filled >= p.Total
}

// ValidateSourceURI checks that uri is a non-empty absolute URI.
func ValidateSourceURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty source URI", ErrInvalidURI)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidURI, uri)
	}
	return nil
}

// ValidateCoordinates checks latitude and longitude ranges.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, lon)
	}
	return nil
}
