package syncer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/database/mock"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// fakeSource returns a configurable URL list. When block is set, Search waits for it
// to be closed or for the context to end.
type fakeSource struct {
	mu    sync.Mutex
	urls  []string
	err   error
	block chan struct{}
	calls int
}

func (f *fakeSource) set(urls []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls, f.err = urls, err
}

func (f *fakeSource) Search(ctx context.Context, req flickr.SearchRequest) (*flickr.SearchResult, error) {
	f.mu.Lock()
	f.calls++
	urls, err, block := slices.Clone(f.urls), f.err, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &flickr.SearchResult{URLs: urls, Page: 1, Pages: 1, PerPage: len(urls)}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFetcher serves "payload:<uri>". A gated URI blocks until its gate is closed,
// ignoring cancellation, to model a slow request already in flight.
type fakeFetcher struct {
	mu      sync.Mutex
	fail    map[string]bool
	gates   map[string]chan struct{}
	calls   []string
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fail:    make(map[string]bool),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 100),
	}
}

func (f *fakeFetcher) gate(uri string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[uri] = ch
	return ch
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uri)
	gate, fail := f.gates[uri], f.fail[uri]
	f.mu.Unlock()

	f.started <- uri
	if gate != nil {
		<-gate
	}
	if fail {
		return nil, fmt.Errorf("%w: HTTP error: 404", album.ErrPayloadFetchFailed)
	}
	return payloadFor(uri), nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func payloadFor(uri string) []byte {
	return []byte("payload:" + uri)
}

type testEnv struct {
	store   *mock.MockAlbumStore
	source  *fakeSource
	fetcher *fakeFetcher
	engine  *Engine
}

func newTestEnv(t *testing.T, urls ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   mock.NewMockAlbumStore(),
		source:  &fakeSource{urls: urls},
		fetcher: newFakeFetcher(),
	}
	env.engine = New(env.store, env.source, env.fetcher, Options{ResumeConcurrency: 2})
	t.Cleanup(env.engine.Close)
	return env
}

// newAlbum persists a location without starting a sync.
func (env *testEnv) newAlbum(t *testing.T) *album.Album {
	t.Helper()
	a, err := env.store.CreateLocation(context.Background(), &album.Location{Latitude: 37.0, Longitude: -122.0, Title: "Pin"})
	if err != nil {
		t.Fatalf("CreateLocation failed: %v", err)
	}
	return a
}

func (env *testEnv) uris(t *testing.T, albumID string) []string {
	t.Helper()
	items, err := env.store.QueryItems(context.Background(), albumID)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.SourceURI)
	}
	return out
}

func (env *testEnv) album(t *testing.T, albumID string) *album.Album {
	t.Helper()
	a, err := env.store.GetAlbum(context.Background(), albumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	return a
}

func waitRun(t *testing.T, run *coord.Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync run")
	}
}

func waitStarted(t *testing.T, f *fakeFetcher, uri string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-f.started:
			if got == uri {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for fetch of %s", uri)
		}
	}
}

// eventLog collects events from a subscription.
type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) handle(e notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []notify.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// waitFor polls until the log contains an event matching pred.
func (l *eventLog) waitFor(t *testing.T, pred func(notify.Event) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if slices.ContainsFunc(l.snapshot(), pred) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for event")
}

func isState(state album.SyncState) func(notify.Event) bool {
	return func(e notify.Event) bool {
		return e.Type == notify.EventSyncStateChanged && e.State == state
	}
}
