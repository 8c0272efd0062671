// Package syncer implements the album synchronization engine: a per-album state
// machine that searches for photos around a location, commits the item set in one
// step and then downloads payloads one by one, resumably.
package syncer

import (
	"context"
	"sync"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/constants"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// Searcher finds photo URLs around a coordinate. *flickr.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, req flickr.SearchRequest) (*flickr.SearchResult, error)
}

// Fetcher downloads one payload. *download.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// ResumeConcurrency bounds how many albums Resume processes at once.
	ResumeConcurrency int
	// Hub receives album events. A new hub is created when nil.
	Hub *notify.Hub
	// Coordinator tracks active runs. A new one is created when nil.
	Coordinator *coord.Coordinator
}

// Engine runs album syncs against a shared store.
type Engine struct {
	store   database.AlbumStore
	source  Searcher
	fetcher Fetcher
	hub     *notify.Hub
	coord   *coord.Coordinator

	resumeConcurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine. Background runs live until Close.
func New(store database.AlbumStore, source Searcher, fetcher Fetcher, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:             store,
		source:            source,
		fetcher:           fetcher,
		hub:               opts.Hub,
		coord:             opts.Coordinator,
		resumeConcurrency: opts.ResumeConcurrency,
		ctx:               ctx,
		cancel:            cancel,
	}
	if e.hub == nil {
		e.hub = notify.NewHub()
	}
	if e.coord == nil {
		e.coord = coord.New()
	}
	if e.resumeConcurrency <= 0 {
		e.resumeConcurrency = constants.DefaultResumeConcurrency
	}
	return e
}

// Close cancels every background run and waits for them to stop.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Store returns the engine's store for read access.
func (e *Engine) Store() database.AlbumReader {
	return e.store
}

// Progress returns the album's download progress.
func (e *Engine) Progress(ctx context.Context, albumID string) (album.Progress, error) {
	return e.store.Progress(ctx, albumID)
}

// Subscribe registers handler for the album's events.
func (e *Engine) Subscribe(albumID string, handler func(notify.Event)) *notify.Subscription {
	return e.hub.Subscribe(albumID, handler)
}

// Listen returns a channel of the album's events and a cancel function.
func (e *Engine) Listen(albumID string) (<-chan notify.Event, func()) {
	return e.hub.Listen(albumID)
}

// Syncing reports whether the album has an active run.
func (e *Engine) Syncing(albumID string) bool {
	return e.coord.Active(albumID)
}

// withEngineContext derives a context that is also cancelled by Close.
func (e *Engine) withEngineContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
