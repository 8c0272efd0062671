package database

import (
	"context"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// AlbumReader provides read-only access to locations, albums and items.
// Reads always observe the latest committed state.
type AlbumReader interface {
	// GetLocation returns album.ErrNotFound for unknown IDs
	GetLocation(ctx context.Context, locationID string) (*album.Location, error)
	// ListLocations returns all locations, oldest first
	ListLocations(ctx context.Context) ([]album.Location, error)
	GetAlbum(ctx context.Context, albumID string) (*album.Album, error)
	GetAlbumByLocation(ctx context.Context, locationID string) (*album.Album, error)
	ListAlbums(ctx context.Context) ([]album.Album, error)
	// QueryItems returns the album's items in ascending SourceURI order, payloads included
	QueryItems(ctx context.Context, albumID string) ([]album.Item, error)
	// ItemsMissingPayload returns items whose payload is still nil, in ascending SourceURI order
	ItemsMissingPayload(ctx context.Context, albumID string) ([]album.Item, error)
	GetItem(ctx context.Context, itemID string) (*album.Item, error)
	// Progress counts filled and total items of an album
	Progress(ctx context.Context, albumID string) (album.Progress, error)
}

// AlbumWriter provides write access. Every method commits before returning;
// commit failures wrap album.ErrStoreWriteFailed.
type AlbumWriter interface {
	// CreateLocation inserts the location and its album in one transaction.
	// Empty IDs and zero timestamps are filled in.
	CreateLocation(ctx context.Context, loc *album.Location) (*album.Album, error)

	// CreateAlbum returns the location's album, creating it if missing.
	CreateAlbum(ctx context.Context, locationID string) (*album.Album, error)

	// ReplaceItems bumps the album generation, drops every item and inserts one item per
	// distinct URI with a nil payload. The album moves to populating_metadata.
	// Returns the new generation.
	ReplaceItems(ctx context.Context, albumID string, uris []string) (int64, error)

	// ResetAlbum bumps the generation, drops every item and returns the album to
	// not_started with NoItemsFound and LastError cleared.
	ResetAlbum(ctx context.Context, albumID string) (int64, error)

	// SetPayload stores an item's payload. It returns album.ErrNotFound when the item
	// is gone or belongs to a different generation.
	SetPayload(ctx context.Context, itemID string, generation int64, payload []byte) error

	// DeleteItems removes the given items from the album and returns how many remain.
	// Unknown item IDs are ignored.
	DeleteItems(ctx context.Context, albumID string, itemIDs []string) (int, error)

	// DeleteLocation removes the location, its album and all items.
	DeleteLocation(ctx context.Context, locationID string) error

	UpdateSyncState(ctx context.Context, albumID string, update SyncStateUpdate) error
}

// AlbumStore is the full store contract used by the sync engine.
type AlbumStore interface {
	AlbumReader
	AlbumWriter
}

// SyncStateUpdate describes a sync state transition.
type SyncStateUpdate struct {
	State album.SyncState
	// NoItemsFound is left unchanged when nil
	NoItemsFound *bool
	// LastError replaces the stored error; empty clears it
	LastError string
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
