// Package notify delivers album sync events to subscribers (UI layers, SSE streams,
// CLI progress bars) in commit order.
package notify

import "github.com/kozaktomas/pinalbum/internal/album"

// EventType identifies what changed in an album.
type EventType string

// EventType constants cover every store mutation the sync engine publishes.
const (
	EventItemsReplaced    EventType = "items_replaced"
	EventItemPayloadSet   EventType = "item_payload_set"
	EventSyncStateChanged EventType = "sync_state_changed"
	EventItemsDeleted     EventType = "items_deleted"
	EventLocationDeleted  EventType = "location_deleted"
)

// Event is a committed change to one album.
type Event struct {
	Type       EventType       `json:"type"`
	AlbumID    string          `json:"album_id"`
	Generation int64           `json:"generation,omitempty"`
	Count      int             `json:"count,omitempty"`
	Remaining  int             `json:"remaining,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	SourceURI  string          `json:"source_uri,omitempty"`
	State      album.SyncState `json:"state,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ItemsReplaced reports a committed metadata phase.
func ItemsReplaced(albumID string, count int, generation int64) Event {
	return Event{Type: EventItemsReplaced, AlbumID: albumID, Count: count, Generation: generation}
}

// ItemPayloadSet reports one downloaded payload.
func ItemPayloadSet(item album.Item) Event {
	return Event{
		Type:       EventItemPayloadSet,
		AlbumID:    item.AlbumID,
		ItemID:     item.ID,
		SourceURI:  item.SourceURI,
		Generation: item.Generation,
	}
}

// SyncStateChanged reports a state transition. errMsg is empty unless the state is failed.
func SyncStateChanged(albumID string, state album.SyncState, errMsg string) Event {
	return Event{Type: EventSyncStateChanged, AlbumID: albumID, State: state, Error: errMsg}
}

// ItemsDeleted reports a user deletion of count items.
func ItemsDeleted(albumID string, count, remaining int) Event {
	return Event{Type: EventItemsDeleted, AlbumID: albumID, Count: count, Remaining: remaining}
}

// LocationDeleted is the last event an album ever publishes.
func LocationDeleted(albumID string) Event {
	return Event{Type: EventLocationDeleted, AlbumID: albumID}
}
