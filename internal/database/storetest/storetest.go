// Package storetest holds the behavioural test suite every database.AlbumStore
// implementation must pass.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/database"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) database.AlbumStore

// Run executes the store contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s database.AlbumStore)
	}{
		{"CreateLocation", testCreateLocation},
		{"CreateAlbumIsIdempotent", testCreateAlbum},
		{"ReplaceItems", testReplaceItems},
		{"ReplaceItemsRejectsInvalidURI", testReplaceItemsInvalidURI},
		{"SetPayloadChecksGeneration", testSetPayloadGeneration},
		{"ResetAlbum", testResetAlbum},
		{"DeleteItems", testDeleteItems},
		{"DeleteLocationCascades", testDeleteLocation},
		{"UpdateSyncState", testUpdateSyncState},
		{"NotFound", testNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func createLocation(t *testing.T, s database.AlbumStore) (*album.Location, *album.Album) {
	t.Helper()
	loc := &album.Location{Latitude: 37.77, Longitude: -122.42, Title: "San Francisco"}
	a, err := s.CreateLocation(context.Background(), loc)
	if err != nil {
		t.Fatalf("CreateLocation failed: %v", err)
	}
	return loc, a
}

func testCreateLocation(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	loc, a := createLocation(t, s)

	if loc.ID == "" {
		t.Fatal("expected location ID to be assigned")
	}
	if a.LocationID != loc.ID {
		t.Errorf("expected album for location %s, got %s", loc.ID, a.LocationID)
	}
	if a.SyncState != album.StateNotStarted {
		t.Errorf("expected state not_started, got %s", a.SyncState)
	}

	got, err := s.GetLocation(ctx, loc.ID)
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if got.Title != "San Francisco" || got.Latitude != 37.77 || got.Longitude != -122.42 {
		t.Errorf("unexpected location: %+v", got)
	}

	byLoc, err := s.GetAlbumByLocation(ctx, loc.ID)
	if err != nil {
		t.Fatalf("GetAlbumByLocation failed: %v", err)
	}
	if byLoc.ID != a.ID {
		t.Errorf("expected album %s, got %s", a.ID, byLoc.ID)
	}

	locs, err := s.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("expected 1 location, got %d", len(locs))
	}
	albums, err := s.ListAlbums(ctx)
	if err != nil {
		t.Fatalf("ListAlbums failed: %v", err)
	}
	if len(albums) != 1 {
		t.Errorf("expected 1 album, got %d", len(albums))
	}

	p, err := s.Progress(ctx, a.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if p.Total != 0 || p.Filled != 0 {
		t.Errorf("expected empty progress, got %+v", p)
	}
}

func testCreateAlbum(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	loc, a := createLocation(t, s)

	again, err := s.CreateAlbum(ctx, loc.ID)
	if err != nil {
		t.Fatalf("CreateAlbum failed: %v", err)
	}
	if again.ID != a.ID {
		t.Errorf("expected existing album %s, got %s", a.ID, again.ID)
	}

	if _, err := s.CreateAlbum(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown location, got %v", err)
	}
}

func testReplaceItems(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	gen, err := s.ReplaceItems(ctx, a.ID, []string{
		"https://x/b.jpg", "https://x/a.jpg", "https://x/B.jpg", "https://x/a.jpg",
	})
	if err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}
	if gen != a.Generation+1 {
		t.Errorf("expected generation %d, got %d", a.Generation+1, gen)
	}

	items, err := s.QueryItems(ctx, a.ID)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	want := []string{"https://x/B.jpg", "https://x/a.jpg", "https://x/b.jpg"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, it := range items {
		if it.SourceURI != want[i] {
			t.Errorf("expected item %d to be %s, got %s", i, want[i], it.SourceURI)
		}
		if it.HasPayload() {
			t.Errorf("expected item %s without payload", it.SourceURI)
		}
		if it.Generation != gen {
			t.Errorf("expected item generation %d, got %d", gen, it.Generation)
		}
	}

	got, err := s.GetAlbum(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	if got.SyncState != album.StatePopulatingMetadata {
		t.Errorf("expected state populating_metadata, got %s", got.SyncState)
	}
	if got.Generation != gen {
		t.Errorf("expected album generation %d, got %d", gen, got.Generation)
	}

	// A second replace discards the first set entirely.
	gen2, err := s.ReplaceItems(ctx, a.ID, []string{"https://x/z.jpg"})
	if err != nil {
		t.Fatalf("second ReplaceItems failed: %v", err)
	}
	if gen2 <= gen {
		t.Errorf("expected generation to grow past %d, got %d", gen, gen2)
	}
	items, _ = s.QueryItems(ctx, a.ID)
	if len(items) != 1 || items[0].SourceURI != "https://x/z.jpg" {
		t.Errorf("expected only z.jpg, got %+v", items)
	}
}

func testReplaceItemsInvalidURI(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	if _, err := s.ReplaceItems(ctx, a.ID, []string{"https://x/a.jpg"}); err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}

	_, err := s.ReplaceItems(ctx, a.ID, []string{"https://x/b.jpg", "not a uri"})
	if !errors.Is(err, album.ErrInvalidURI) {
		t.Errorf("expected ErrInvalidURI, got %v", err)
	}

	items, _ := s.QueryItems(ctx, a.ID)
	if len(items) != 1 || items[0].SourceURI != "https://x/a.jpg" {
		t.Errorf("expected previous items to survive a rejected replace, got %+v", items)
	}
}

func testSetPayloadGeneration(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	gen, err := s.ReplaceItems(ctx, a.ID, []string{"https://x/1.jpg", "https://x/2.jpg"})
	if err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}
	items, _ := s.ItemsMissingPayload(ctx, a.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 missing payloads, got %d", len(items))
	}

	if err := s.SetPayload(ctx, items[0].ID, gen-1, []byte("stale")); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for stale generation, got %v", err)
	}

	payload := []byte{0xff, 0xd8, 0x01}
	if err := s.SetPayload(ctx, items[0].ID, gen, payload); err != nil {
		t.Fatalf("SetPayload failed: %v", err)
	}

	got, err := s.GetItem(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("expected payload %v, got %v", payload, got.Payload)
	}

	missing, _ := s.ItemsMissingPayload(ctx, a.ID)
	if len(missing) != 1 || missing[0].SourceURI != "https://x/2.jpg" {
		t.Errorf("expected only 2.jpg missing, got %+v", missing)
	}

	p, err := s.Progress(ctx, a.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if p.Filled != 1 || p.Total != 2 {
		t.Errorf("expected progress 1/2, got %d/%d", p.Filled, p.Total)
	}

	if err := s.SetPayload(ctx, "missing", gen, payload); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown item, got %v", err)
	}
}

func testResetAlbum(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	gen, _ := s.ReplaceItems(ctx, a.ID, []string{"https://x/1.jpg"})
	items, _ := s.QueryItems(ctx, a.ID)
	if err := s.UpdateSyncState(ctx, a.ID, database.SyncStateUpdate{
		State: album.StateFailed, NoItemsFound: database.BoolPtr(true), LastError: "boom",
	}); err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}

	resetGen, err := s.ResetAlbum(ctx, a.ID)
	if err != nil {
		t.Fatalf("ResetAlbum failed: %v", err)
	}
	if resetGen <= gen {
		t.Errorf("expected generation past %d, got %d", gen, resetGen)
	}

	got, _ := s.GetAlbum(ctx, a.ID)
	if got.SyncState != album.StateNotStarted {
		t.Errorf("expected state not_started, got %s", got.SyncState)
	}
	if got.NoItemsFound || got.LastError != "" {
		t.Errorf("expected flags cleared, got noItemsFound=%v lastError=%q", got.NoItemsFound, got.LastError)
	}

	remaining, _ := s.QueryItems(ctx, a.ID)
	if len(remaining) != 0 {
		t.Errorf("expected no items after reset, got %d", len(remaining))
	}

	// A payload write from before the reset must not resurrect anything.
	if err := s.SetPayload(ctx, items[0].ID, gen, []byte("late")); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for write after reset, got %v", err)
	}
}

func testDeleteItems(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	gen, _ := s.ReplaceItems(ctx, a.ID, []string{"https://x/1.jpg", "https://x/2.jpg", "https://x/3.jpg"})
	items, _ := s.QueryItems(ctx, a.ID)

	remaining, err := s.DeleteItems(ctx, a.ID, []string{items[0].ID, items[2].ID, "unknown"})
	if err != nil {
		t.Fatalf("DeleteItems failed: %v", err)
	}
	if remaining != 1 {
		t.Errorf("expected 1 remaining item, got %d", remaining)
	}

	if err := s.SetPayload(ctx, items[0].ID, gen, []byte("x")); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted item, got %v", err)
	}

	left, _ := s.QueryItems(ctx, a.ID)
	if len(left) != 1 || left[0].ID != items[1].ID {
		t.Errorf("expected only item 2 left, got %+v", left)
	}

	if _, err := s.DeleteItems(ctx, "missing", nil); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown album, got %v", err)
	}
}

func testDeleteLocation(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	loc, a := createLocation(t, s)
	other, otherAlbum := createLocation(t, s)

	s.ReplaceItems(ctx, a.ID, []string{"https://x/1.jpg"})
	s.ReplaceItems(ctx, otherAlbum.ID, []string{"https://x/1.jpg"})
	items, _ := s.QueryItems(ctx, a.ID)

	if err := s.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("DeleteLocation failed: %v", err)
	}

	if _, err := s.GetLocation(ctx, loc.ID); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected location to be gone, got %v", err)
	}
	if _, err := s.GetAlbum(ctx, a.ID); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected album to be gone, got %v", err)
	}
	if _, err := s.GetItem(ctx, items[0].ID); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected item to be gone, got %v", err)
	}
	if err := s.DeleteLocation(ctx, loc.ID); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	if _, err := s.GetLocation(ctx, other.ID); err != nil {
		t.Errorf("expected other location to survive, got %v", err)
	}
	otherItems, _ := s.QueryItems(ctx, otherAlbum.ID)
	if len(otherItems) != 1 {
		t.Errorf("expected other album items to survive, got %d", len(otherItems))
	}
}

func testUpdateSyncState(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()
	_, a := createLocation(t, s)

	err := s.UpdateSyncState(ctx, a.ID, database.SyncStateUpdate{
		State: album.StateEmpty, NoItemsFound: database.BoolPtr(true),
	})
	if err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}
	got, _ := s.GetAlbum(ctx, a.ID)
	if got.SyncState != album.StateEmpty || !got.NoItemsFound {
		t.Errorf("expected empty with noItemsFound, got %s/%v", got.SyncState, got.NoItemsFound)
	}

	// A nil NoItemsFound leaves the flag as it is.
	if err := s.UpdateSyncState(ctx, a.ID, database.SyncStateUpdate{State: album.StateComplete}); err != nil {
		t.Fatalf("UpdateSyncState failed: %v", err)
	}
	got, _ = s.GetAlbum(ctx, a.ID)
	if got.SyncState != album.StateComplete || !got.NoItemsFound {
		t.Errorf("expected complete with noItemsFound kept, got %s/%v", got.SyncState, got.NoItemsFound)
	}

	if err := s.UpdateSyncState(ctx, a.ID, database.SyncStateUpdate{State: "bogus"}); err == nil {
		t.Error("expected error for invalid state")
	}
	if err := s.UpdateSyncState(ctx, "missing", database.SyncStateUpdate{State: album.StateComplete}); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testNotFound(t *testing.T, s database.AlbumStore) {
	ctx := context.Background()

	if _, err := s.GetLocation(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("GetLocation: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetAlbum(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("GetAlbum: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetAlbumByLocation(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("GetAlbumByLocation: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetItem(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("GetItem: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Progress(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("Progress: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ReplaceItems(ctx, "missing", []string{"https://x/a.jpg"}); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("ReplaceItems: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ResetAlbum(ctx, "missing"); !errors.Is(err, album.ErrNotFound) {
		t.Errorf("ResetAlbum: expected ErrNotFound, got %v", err)
	}
}
