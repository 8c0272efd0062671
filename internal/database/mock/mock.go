// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/database"
)

// MockAlbumStore is an in-memory implementation of database.AlbumStore.
// It follows the same commit semantics as the SQL stores.
type MockAlbumStore struct {
	mu        sync.RWMutex
	locations map[string]album.Location
	albums    map[string]*album.Album
	items     map[string]*album.Item
	history   map[string][]album.SyncState

	// Error injection
	CreateLocationError  error
	ReplaceItemsError    error
	ResetAlbumError      error
	SetPayloadError      error
	DeleteItemsError     error
	DeleteLocationError  error
	UpdateSyncStateError error
	QueryItemsError      error

	// BeforeSetPayload runs before every SetPayload, outside the store lock.
	BeforeSetPayload func(itemID string)

	setPayloadCalls int
}

// Compile-time check
var _ database.AlbumStore = (*MockAlbumStore)(nil)

// NewMockAlbumStore creates an empty mock store
func NewMockAlbumStore() *MockAlbumStore {
	return &MockAlbumStore{
		locations: make(map[string]album.Location),
		albums:    make(map[string]*album.Album),
		items:     make(map[string]*album.Item),
		history:   make(map[string][]album.SyncState),
	}
}

// StateHistory returns every sync state the album has been put in, in order.
func (m *MockAlbumStore) StateHistory(albumID string) []album.SyncState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history[albumID])
}

// SetPayloadCalls returns how many payload writes were attempted.
func (m *MockAlbumStore) SetPayloadCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setPayloadCalls
}

// setState must be called with the write lock held.
func (m *MockAlbumStore) setState(a *album.Album, state album.SyncState) {
	a.SyncState = state
	a.UpdatedAt = time.Now().UTC()
	m.history[a.ID] = append(m.history[a.ID], state)
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, album.ErrNotFound)
}

// CreateLocation inserts a location and its album
func (m *MockAlbumStore) CreateLocation(ctx context.Context, loc *album.Location) (*album.Album, error) {
	if m.CreateLocationError != nil {
		return nil, m.CreateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}
	m.locations[loc.ID] = *loc

	a := &album.Album{ID: uuid.NewString(), LocationID: loc.ID}
	m.albums[a.ID] = a
	m.setState(a, album.StateNotStarted)
	cp := *a
	return &cp, nil
}

// CreateAlbum returns the location's album, creating it if missing
func (m *MockAlbumStore) CreateAlbum(ctx context.Context, locationID string) (*album.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locations[locationID]; !ok {
		return nil, notFound("location", locationID)
	}
	for _, a := range m.albums {
		if a.LocationID == locationID {
			cp := *a
			return &cp, nil
		}
	}
	a := &album.Album{ID: uuid.NewString(), LocationID: locationID}
	m.albums[a.ID] = a
	m.setState(a, album.StateNotStarted)
	cp := *a
	return &cp, nil
}

// dropItems must be called with the write lock held.
func (m *MockAlbumStore) dropItems(albumID string) {
	for id, it := range m.items {
		if it.AlbumID == albumID {
			delete(m.items, id)
		}
	}
}

// ReplaceItems swaps the album's item set
func (m *MockAlbumStore) ReplaceItems(ctx context.Context, albumID string, uris []string) (int64, error) {
	if m.ReplaceItemsError != nil {
		return 0, m.ReplaceItemsError
	}
	uris, err := database.NormalizeURIs(uris)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.albums[albumID]
	if !ok {
		return 0, notFound("album", albumID)
	}
	a.Generation++
	m.dropItems(albumID)
	for _, uri := range uris {
		id := uuid.NewString()
		m.items[id] = &album.Item{ID: id, AlbumID: albumID, SourceURI: uri, Generation: a.Generation}
	}
	a.NoItemsFound = false
	a.LastError = ""
	m.setState(a, album.StatePopulatingMetadata)
	return a.Generation, nil
}

// ResetAlbum wipes the album for a reload
func (m *MockAlbumStore) ResetAlbum(ctx context.Context, albumID string) (int64, error) {
	if m.ResetAlbumError != nil {
		return 0, m.ResetAlbumError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.albums[albumID]
	if !ok {
		return 0, notFound("album", albumID)
	}
	a.Generation++
	m.dropItems(albumID)
	a.NoItemsFound = false
	a.LastError = ""
	m.setState(a, album.StateNotStarted)
	return a.Generation, nil
}

// SetPayload stores a payload if the item exists in the given generation
func (m *MockAlbumStore) SetPayload(ctx context.Context, itemID string, generation int64, payload []byte) error {
	if m.BeforeSetPayload != nil {
		m.BeforeSetPayload(itemID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPayloadCalls++

	if m.SetPayloadError != nil {
		return m.SetPayloadError
	}
	it, ok := m.items[itemID]
	if !ok || it.Generation != generation {
		return fmt.Errorf("item %s generation %d: %w", itemID, generation, album.ErrNotFound)
	}
	if payload == nil {
		payload = []byte{}
	}
	it.Payload = slices.Clone(payload)
	return nil
}

// DeleteItems removes items and returns the remaining count
func (m *MockAlbumStore) DeleteItems(ctx context.Context, albumID string, itemIDs []string) (int, error) {
	if m.DeleteItemsError != nil {
		return 0, m.DeleteItemsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.albums[albumID]; !ok {
		return 0, notFound("album", albumID)
	}
	for _, id := range itemIDs {
		if it, ok := m.items[id]; ok && it.AlbumID == albumID {
			delete(m.items, id)
		}
	}
	remaining := 0
	for _, it := range m.items {
		if it.AlbumID == albumID {
			remaining++
		}
	}
	return remaining, nil
}

// DeleteLocation removes a location, its album and items
func (m *MockAlbumStore) DeleteLocation(ctx context.Context, locationID string) error {
	if m.DeleteLocationError != nil {
		return m.DeleteLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locations[locationID]; !ok {
		return notFound("location", locationID)
	}
	for id, a := range m.albums {
		if a.LocationID == locationID {
			m.dropItems(id)
			delete(m.albums, id)
		}
	}
	delete(m.locations, locationID)
	return nil
}

// UpdateSyncState records a state transition
func (m *MockAlbumStore) UpdateSyncState(ctx context.Context, albumID string, update database.SyncStateUpdate) error {
	if m.UpdateSyncStateError != nil {
		return m.UpdateSyncStateError
	}
	if !update.State.Valid() {
		return fmt.Errorf("invalid sync state %q", update.State)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.albums[albumID]
	if !ok {
		return notFound("album", albumID)
	}
	a.LastError = update.LastError
	if update.NoItemsFound != nil {
		a.NoItemsFound = *update.NoItemsFound
	}
	m.setState(a, update.State)
	return nil
}

// GetLocation retrieves a location
func (m *MockAlbumStore) GetLocation(ctx context.Context, locationID string) (*album.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[locationID]
	if !ok {
		return nil, notFound("location", locationID)
	}
	return &loc, nil
}

// ListLocations returns every location, oldest first
func (m *MockAlbumStore) ListLocations(ctx context.Context) ([]album.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]album.Location, 0, len(m.locations))
	for _, loc := range m.locations {
		out = append(out, loc)
	}
	slices.SortFunc(out, func(a, b album.Location) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetAlbum retrieves an album
func (m *MockAlbumStore) GetAlbum(ctx context.Context, albumID string) (*album.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.albums[albumID]
	if !ok {
		return nil, notFound("album", albumID)
	}
	cp := *a
	return &cp, nil
}

// GetAlbumByLocation retrieves the album of a location
func (m *MockAlbumStore) GetAlbumByLocation(ctx context.Context, locationID string) (*album.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.albums {
		if a.LocationID == locationID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, notFound("album for location", locationID)
}

// ListAlbums returns every album
func (m *MockAlbumStore) ListAlbums(ctx context.Context) ([]album.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]album.Album, 0, len(m.albums))
	for _, a := range m.albums {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b album.Album) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MockAlbumStore) collectItems(albumID string, missingOnly bool) []album.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []album.Item
	for _, it := range m.items {
		if it.AlbumID != albumID || (missingOnly && it.HasPayload()) {
			continue
		}
		out = append(out, *it)
	}
	slices.SortFunc(out, func(a, b album.Item) int {
		return strings.Compare(a.SourceURI, b.SourceURI)
	})
	return out
}

// QueryItems lists items ordered by source URI
func (m *MockAlbumStore) QueryItems(ctx context.Context, albumID string) ([]album.Item, error) {
	if m.QueryItemsError != nil {
		return nil, m.QueryItemsError
	}
	return m.collectItems(albumID, false), nil
}

// ItemsMissingPayload lists items without payload ordered by source URI
func (m *MockAlbumStore) ItemsMissingPayload(ctx context.Context, albumID string) ([]album.Item, error) {
	if m.QueryItemsError != nil {
		return nil, m.QueryItemsError
	}
	return m.collectItems(albumID, true), nil
}

// GetItem retrieves an item
func (m *MockAlbumStore) GetItem(ctx context.Context, itemID string) (*album.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[itemID]
	if !ok {
		return nil, notFound("item", itemID)
	}
	cp := *it
	return &cp, nil
}

// Progress counts filled and total items
func (m *MockAlbumStore) Progress(ctx context.Context, albumID string) (album.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.albums[albumID]; !ok {
		return album.Progress{}, notFound("album", albumID)
	}
	var p album.Progress
	for _, it := range m.items {
		if it.AlbumID != albumID {
			continue
		}
		p.Total++
		if it.HasPayload() {
			p.Filled++
		}
	}
	return p, nil
}
