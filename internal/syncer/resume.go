package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// ResumeCandidates lists albums that were interrupted and will be picked up by Resume.
func (e *Engine) ResumeCandidates(ctx context.Context) ([]album.Album, error) {
	albums, err := e.store.ListAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list albums: %w", err)
	}
	var out []album.Album
	for _, a := range albums {
		if a.SyncState.NeedsResume() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Resume continues every interrupted album. Albums that already committed their item
// set only download the missing payloads; albums interrupted before that restart from
// the search. Failed albums wait for a reload. Albums are processed concurrently, each
// one sequentially, and Resume returns once all of them are done.
func (e *Engine) Resume(ctx context.Context) error {
	ctx, cancel := e.withEngineContext(ctx)
	defer cancel()

	albums, err := e.ResumeCandidates(ctx)
	if err != nil {
		return err
	}
	if len(albums) == 0 {
		return nil
	}
	klog.InfoS("Resuming albums", "count", len(albums))

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(e.resumeConcurrency)

	for _, a := range albums {
		g.Go(func() error {
			if err := e.resumeAlbum(ctx, a); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("album %s: %w", a.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Join(errs...)
}

func (e *Engine) resumeAlbum(ctx context.Context, a album.Album) error {
	run, err := e.coord.Acquire(ctx, a.ID)
	if err != nil {
		if errors.Is(err, album.ErrConcurrentSync) {
			return nil
		}
		return err
	}

	p, err := e.store.Progress(run.Context(), a.ID)
	if err != nil {
		err = e.outcome(run, err)
		run.Release(err)
		return err
	}

	full := p.Total == 0 && (a.SyncState == album.StateNotStarted || a.SyncState == album.StateSearching)
	klog.V(1).InfoS("Resuming album", "album", a.ID, "state", a.SyncState, "filled", p.Filled, "total", p.Total, "fullSync", full)

	err = e.execute(run, full)
	run.Release(err)
	return err
}
