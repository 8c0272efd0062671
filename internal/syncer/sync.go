package syncer

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// errAborted means the run lost ownership of its album before a write.
var errAborted = errors.New("sync run aborted")

// StartSync begins a full sync in the background. It returns album.ErrConcurrentSync
// when the album already has an active run.
func (e *Engine) StartSync(albumID string) (*coord.Run, error) {
	run, err := e.coord.Acquire(e.ctx, albumID)
	if err != nil {
		return nil, err
	}
	e.launch(run, true)
	return run, nil
}

// Sync runs a full sync and returns once it has finished. Search failures and store
// write failures are returned; per-item download failures are not.
func (e *Engine) Sync(ctx context.Context, albumID string) error {
	ctx, cancel := e.withEngineContext(ctx)
	defer cancel()

	run, err := e.coord.Acquire(ctx, albumID)
	if err != nil {
		return err
	}
	err = e.execute(run, true)
	run.Release(err)
	return err
}

func (e *Engine) launch(run *coord.Run, full bool) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.execute(run, full)
		if err != nil {
			klog.ErrorS(err, "Album sync failed", "album", run.AlbumID())
		}
		run.Release(err)
	}()
}

// execute runs the metadata phase when full is set, then the payload phase.
func (e *Engine) execute(run *coord.Run, full bool) error {
	if full {
		proceed, err := e.metadataPhase(run)
		if err != nil || !proceed {
			return e.outcome(run, err)
		}
	}
	return e.outcome(run, e.payloadPhase(run))
}

// outcome maps run errors to what the caller sees. Runs stopped by a reload, a
// location delete or a vanished album end quietly.
func (e *Engine) outcome(run *coord.Run, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, album.ErrNotFound) {
		klog.V(2).InfoS("Album disappeared during sync", "album", run.AlbumID())
		return nil
	}
	if errors.Is(err, errAborted) || run.Context().Err() != nil {
		cause := context.Cause(run.Context())
		if errors.Is(cause, coord.ErrSuperseded) || errors.Is(cause, coord.ErrCancelled) {
			klog.V(2).InfoS("Album sync stopped", "album", run.AlbumID(), "reason", cause)
			return nil
		}
		if cause != nil {
			return cause
		}
	}
	return err
}

// commit runs fn under the album lock, but only while the run still owns the album.
func (e *Engine) commit(run *coord.Run, fn func(ctx context.Context) error) error {
	unlock := e.coord.Lock(run.AlbumID())
	defer unlock()

	ctx := run.Context()
	if ctx.Err() != nil {
		return errAborted
	}
	return fn(ctx)
}

// transition records a new sync state and publishes it.
func (e *Engine) transition(run *coord.Run, state album.SyncState, noItemsFound *bool, errMsg string) error {
	return e.commit(run, func(ctx context.Context) error {
		if err := e.store.UpdateSyncState(ctx, run.AlbumID(), database.SyncStateUpdate{
			State:        state,
			NoItemsFound: noItemsFound,
			LastError:    errMsg,
		}); err != nil {
			return err
		}
		e.hub.Publish(notify.SyncStateChanged(run.AlbumID(), state, errMsg))
		return nil
	})
}

// metadataPhase searches and commits the item set. proceed is false when there is
// nothing to download.
func (e *Engine) metadataPhase(run *coord.Run) (proceed bool, err error) {
	ctx := run.Context()
	albumID := run.AlbumID()

	a, err := e.store.GetAlbum(ctx, albumID)
	if err != nil {
		return false, err
	}
	loc, err := e.store.GetLocation(ctx, a.LocationID)
	if err != nil {
		return false, err
	}

	if err := e.transition(run, album.StateSearching, nil, ""); err != nil {
		return false, err
	}

	result, err := e.source.Search(ctx, flickr.SearchRequest{Latitude: loc.Latitude, Longitude: loc.Longitude})
	if err != nil {
		if ctx.Err() != nil {
			return false, errAborted
		}
		if terr := e.transition(run, album.StateFailed, nil, err.Error()); terr != nil {
			klog.ErrorS(terr, "Could not record failed search", "album", albumID)
		}
		return false, fmt.Errorf("search around %v,%v: %w", loc.Latitude, loc.Longitude, err)
	}

	uris := validURIs(albumID, result.URLs)
	if len(uris) == 0 {
		klog.V(1).InfoS("No photos found", "album", albumID, "lat", loc.Latitude, "lon", loc.Longitude)
		return false, e.commit(run, func(ctx context.Context) error {
			// A re-sync may find nothing where an earlier run found photos.
			generation, err := e.store.ReplaceItems(ctx, albumID, nil)
			if err != nil {
				return err
			}
			e.hub.Publish(notify.ItemsReplaced(albumID, 0, generation))
			if err := e.store.UpdateSyncState(ctx, albumID, database.SyncStateUpdate{
				State:        album.StateEmpty,
				NoItemsFound: database.BoolPtr(true),
			}); err != nil {
				return err
			}
			e.hub.Publish(notify.SyncStateChanged(albumID, album.StateEmpty, ""))
			return nil
		})
	}

	err = e.commit(run, func(ctx context.Context) error {
		generation, err := e.store.ReplaceItems(ctx, albumID, uris)
		if err != nil {
			return err
		}
		e.hub.Publish(notify.ItemsReplaced(albumID, len(uris), generation))
		e.hub.Publish(notify.SyncStateChanged(albumID, album.StatePopulatingMetadata, ""))
		return nil
	})
	if err != nil {
		return false, err
	}
	klog.V(1).InfoS("Committed album items", "album", albumID, "count", len(uris))
	return true, nil
}

// validURIs drops URLs the store would reject and removes duplicates.
func validURIs(albumID string, urls []string) []string {
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if err := album.ValidateSourceURI(u); err != nil {
			klog.V(1).InfoS("Skipping invalid photo URL", "album", albumID, "url", u, "err", err)
			continue
		}
		valid = append(valid, u)
	}
	// Cannot fail: every URI was validated above.
	uris, _ := database.NormalizeURIs(valid)
	return uris
}

// payloadPhase downloads every missing payload in ascending SourceURI order, one at a time.
func (e *Engine) payloadPhase(run *coord.Run) error {
	ctx := run.Context()
	albumID := run.AlbumID()

	items, err := e.store.ItemsMissingPayload(ctx, albumID)
	if err != nil {
		if ctx.Err() != nil {
			return errAborted
		}
		return fmt.Errorf("could not list missing payloads: %w", err)
	}

	if len(items) > 0 {
		if err := e.transition(run, album.StateFetchingPayloads, nil, ""); err != nil {
			return err
		}
	}

	failed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return errAborted
		}

		// Skip items deleted since the list was read.
		if _, err := e.store.GetItem(ctx, item.ID); errors.Is(err, album.ErrNotFound) {
			continue
		}

		payload, err := e.fetcher.Fetch(ctx, item.SourceURI)
		if err != nil {
			if ctx.Err() != nil {
				return errAborted
			}
			failed++
			klog.ErrorS(err, "Could not download payload", "album", albumID, "item", item.ID, "uri", item.SourceURI)
			continue
		}

		err = e.commit(run, func(ctx context.Context) error {
			if err := e.store.SetPayload(ctx, item.ID, item.Generation, payload); err != nil {
				return err
			}
			item.Payload = payload
			e.hub.Publish(notify.ItemPayloadSet(item))
			return nil
		})
		switch {
		case errors.Is(err, album.ErrNotFound):
			// Deleted by the user while downloading.
			klog.V(2).InfoS("Item gone before payload write", "album", albumID, "item", item.ID)
		case err != nil:
			return err
		}
	}

	if failed > 0 {
		klog.InfoS("Album payloads incomplete", "album", albumID, "failed", failed)
	}
	return e.finalize(run)
}

// finalize moves the album to complete or empty when nothing is left to download.
func (e *Engine) finalize(run *coord.Run) error {
	return e.commit(run, func(ctx context.Context) error {
		return e.settle(ctx, run.AlbumID())
	})
}

// settle derives the terminal state from the current progress. Callers hold the album lock.
func (e *Engine) settle(ctx context.Context, albumID string) error {
	p, err := e.store.Progress(ctx, albumID)
	if err != nil {
		return err
	}

	var state album.SyncState
	switch {
	case p.Total == 0:
		state = album.StateEmpty
	case p.Filled == p.Total:
		state = album.StateComplete
	default:
		return nil
	}

	a, err := e.store.GetAlbum(ctx, albumID)
	if err != nil {
		return err
	}
	if a.SyncState == state {
		return nil
	}
	if err := e.store.UpdateSyncState(ctx, albumID, database.SyncStateUpdate{State: state}); err != nil {
		return err
	}
	e.hub.Publish(notify.SyncStateChanged(albumID, state, ""))
	return nil
}
