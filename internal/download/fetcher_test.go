package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/pinalbum/internal/album"
)

func TestFetch_ReturnsBodyVerbatim(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent header")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	defer server.Close()

	f := NewFetcher(time.Second, 0)
	got, err := f.Fetch(context.Background(), server.URL+"/a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("expected %v, got %v", image, got)
	}
}

func TestFetch_EmptyBodyIsNonNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	got, err := NewFetcher(time.Second, 0).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Error("expected non-nil payload for an empty body")
	}
}

func TestFetch_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	large := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer large.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tests := []struct {
		name    string
		fetcher *Fetcher
		uri     string
	}{
		{"status 404", NewFetcher(time.Second, 0), notFound.URL},
		{"oversized", NewFetcher(time.Second, 16), large.URL},
		{"timeout", NewFetcher(50*time.Millisecond, 0), slow.URL},
		{"bad uri", NewFetcher(time.Second, 0), "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fetcher.Fetch(context.Background(), tt.uri)
			if !errors.Is(err, album.ErrPayloadFetchFailed) {
				t.Errorf("expected ErrPayloadFetchFailed, got %v", err)
			}
		})
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(time.Second, 0).Fetch(ctx, "http://127.0.0.1:1/a.jpg")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, album.ErrPayloadFetchFailed) {
		t.Errorf("expected ErrPayloadFetchFailed, got %v", err)
	}
}
