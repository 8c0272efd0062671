package syncer

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// CreateLocation persists a pin with its album and starts the album's first sync in
// the background. The returned run finishes when the sync does.
func (e *Engine) CreateLocation(ctx context.Context, lat, lon float64, title string) (*album.Location, *album.Album, *coord.Run, error) {
	if err := album.ValidateCoordinates(lat, lon); err != nil {
		return nil, nil, nil, err
	}

	loc := &album.Location{
		Latitude:  lat,
		Longitude: lon,
		Title:     album.NormalizeTitle(title),
	}
	a, err := e.store.CreateLocation(ctx, loc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create location: %w", err)
	}
	klog.InfoS("Created location", "location", loc.ID, "album", a.ID, "title", loc.Title)

	run, err := e.StartSync(a.ID)
	if err != nil {
		return loc, a, nil, err
	}
	return loc, a, run, nil
}

// Reload stops any active run of the album, wipes its items and starts a fresh sync.
// Payload writes from the stopped run can no longer land once Reload returns.
func (e *Engine) Reload(albumID string) (*coord.Run, error) {
	run, err := e.coord.Supersede(e.ctx, albumID)
	if err != nil {
		return nil, err
	}

	err = e.commit(run, func(ctx context.Context) error {
		generation, err := e.store.ResetAlbum(ctx, albumID)
		if err != nil {
			return err
		}
		klog.V(1).InfoS("Reset album", "album", albumID, "generation", generation)
		e.hub.Publish(notify.SyncStateChanged(albumID, album.StateNotStarted, ""))
		return nil
	})
	if err != nil {
		if errors.Is(err, errAborted) {
			err = context.Cause(run.Context())
		}
		run.Release(err)
		return nil, err
	}

	e.launch(run, true)
	return run, nil
}

// DeleteItems removes the given items. It is legal in any state; an active run skips
// the deleted items. An album left without items becomes empty.
func (e *Engine) DeleteItems(ctx context.Context, albumID string, itemIDs []string) error {
	unlock := e.coord.Lock(albumID)
	defer unlock()

	before, err := e.store.Progress(ctx, albumID)
	if err != nil {
		return err
	}
	remaining, err := e.store.DeleteItems(ctx, albumID, itemIDs)
	if err != nil {
		return err
	}
	e.hub.Publish(notify.ItemsDeleted(albumID, before.Total-remaining, remaining))

	if remaining == 0 {
		a, err := e.store.GetAlbum(ctx, albumID)
		if err != nil {
			return err
		}
		if a.SyncState == album.StateEmpty {
			return nil
		}
		if err := e.store.UpdateSyncState(ctx, albumID, database.SyncStateUpdate{State: album.StateEmpty}); err != nil {
			return err
		}
		e.hub.Publish(notify.SyncStateChanged(albumID, album.StateEmpty, ""))
		return nil
	}

	// Deleting the last undownloaded items of an idle album completes it.
	if !e.coord.Active(albumID) {
		a, err := e.store.GetAlbum(ctx, albumID)
		if err != nil {
			return err
		}
		if a.SyncState == album.StateFetchingPayloads || a.SyncState == album.StatePopulatingMetadata {
			return e.settle(ctx, albumID)
		}
	}
	return nil
}

// DeleteLocation stops the album's run and removes the location with everything in it.
func (e *Engine) DeleteLocation(ctx context.Context, locationID string) error {
	a, err := e.store.GetAlbumByLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, album.ErrNotFound) {
			return e.store.DeleteLocation(ctx, locationID)
		}
		return err
	}

	if err := e.coord.Cancel(ctx, a.ID); err != nil {
		return fmt.Errorf("could not stop sync for album %s: %w", a.ID, err)
	}

	unlock := e.coord.Lock(a.ID)
	err = e.store.DeleteLocation(ctx, locationID)
	if err == nil {
		e.hub.Publish(notify.LocationDeleted(a.ID))
	}
	unlock()
	if err != nil {
		return err
	}

	klog.InfoS("Deleted location", "location", locationID, "album", a.ID)
	return nil
}
