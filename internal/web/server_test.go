package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/database/mock"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/syncer"
)

type emptySource struct{}

func (emptySource) Search(ctx context.Context, req flickr.SearchRequest) (*flickr.SearchResult, error) {
	return &flickr.SearchResult{Page: 1, Pages: 1}, nil
}

type noFetch struct{}

func (noFetch) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = 0
	cfg.Web.AllowedOrigins = []string{"https://maps.example.com"}

	engine := syncer.New(mock.NewMockAlbumStore(), emptySource{}, noFetch{}, syncer.Options{})
	t.Cleanup(engine.Close)
	return NewServer(cfg, engine)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/api/v1/health", "", http.StatusOK},
		{"GET", "/api/v1/config", "", http.StatusOK},
		{"GET", "/api/v1/locations", "", http.StatusOK},
		{"POST", "/api/v1/locations", `{"latitude": 0, "longitude": 0}`, http.StatusCreated},
		{"GET", "/api/v1/locations/missing", "", http.StatusNotFound},
		{"DELETE", "/api/v1/locations/missing", "", http.StatusNotFound},
		{"GET", "/api/v1/albums/missing", "", http.StatusNotFound},
		{"POST", "/api/v1/albums/missing/sync", "", http.StatusNotFound},
		{"POST", "/api/v1/albums/missing/reload", "", http.StatusNotFound},
		{"GET", "/api/v1/albums/missing/events", "", http.StatusNotFound},
		{"GET", "/api/v1/items/missing/payload", "", http.StatusNotFound},
		{"PUT", "/api/v1/locations", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			s.Router().ServeHTTP(recorder, req)

			if recorder.Code != tc.status {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	recorder := httptest.NewRecorder()

	s.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://maps.example.com" {
		t.Errorf("expected configured origin to be allowed, got '%s'", got)
	}
	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got '%s'", got)
	}
}

func TestServer_CloseOnShutdown(t *testing.T) {
	s := newTestServer(t)

	ended := make(chan struct{})
	handler := s.closeOnShutdown(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(ended)
	}))

	go handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/albums/a/events", nil))
	s.stopStreams()

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("expected stream to end on shutdown")
	}
}
