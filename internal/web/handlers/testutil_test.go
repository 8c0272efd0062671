package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/database/mock"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/syncer"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Flickr: config.FlickrConfig{
			URL:            "http://localhost:9999/rest",
			SearchRadiusKm: 10,
			MaxAlbumSize:   50,
		},
	}
}

// stubSource returns a fixed URL list. Search blocks while block is open.
type stubSource struct {
	mu    sync.Mutex
	urls  []string
	err   error
	block chan struct{}
}

func (s *stubSource) Search(ctx context.Context, req flickr.SearchRequest) (*flickr.SearchResult, error) {
	s.mu.Lock()
	urls, err, block := slices.Clone(s.urls), s.err, s.block
	s.mu.Unlock()

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

// stubFetcher serves a JPEG-looking payload for every URI except the failing ones.
// URIs in images get real image bytes instead.
type stubFetcher struct {
	fail   map[string]bool
	images map[string][]byte
}

func (f *stubFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if f.fail[uri] {
		return nil, fmt.Errorf("%w: HTTP error: 404", album.ErrPayloadFetchFailed)
	}
	if data, ok := f.images[uri]; ok {
		return data, nil
	}
	return jpegFor(uri), nil
}

func jpegFor(uri string) []byte {
	return append([]byte{0xff, 0xd8, 0xff, 0xe0}, uri...)
}

type testService struct {
	store   *mock.MockAlbumStore
	source  *stubSource
	fetcher *stubFetcher
	engine  *syncer.Engine
}

func newTestService(t *testing.T, urls ...string) *testService {
	t.Helper()
	ts := &testService{
		store:   mock.NewMockAlbumStore(),
		source:  &stubSource{urls: urls},
		fetcher: &stubFetcher{fail: make(map[string]bool), images: make(map[string][]byte)},
	}
	ts.engine = syncer.New(ts.store, ts.source, ts.fetcher, syncer.Options{})
	t.Cleanup(ts.engine.Close)
	return ts
}

// syncedLocation creates a location and waits for its first sync to finish.
func (ts *testService) syncedLocation(t *testing.T) (*album.Location, *album.Album) {
	t.Helper()
	loc, a, run, err := ts.engine.CreateLocation(context.Background(), 50.08, 14.42, "Prague")
	if err != nil {
		t.Fatalf("CreateLocation failed: %v", err)
	}
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync")
	}
	return loc, ts.album(t, a.ID)
}

func (ts *testService) album(t *testing.T, albumID string) *album.Album {
	t.Helper()
	a, err := ts.store.GetAlbum(context.Background(), albumID)
	if err != nil {
		t.Fatalf("GetAlbum failed: %v", err)
	}
	return a
}

// waitForState polls until the album reaches state.
func (ts *testService) waitForState(t *testing.T, albumID string, state album.SyncState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		a, err := ts.store.GetAlbum(context.Background(), albumID)
		if err == nil && a.SyncState == state && !ts.engine.Syncing(albumID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for album %s to reach %s", albumID, state)
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonBody encodes v as a request body
func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return bytes.NewReader(data)
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
