package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// readSSEEvent reads one "event:/data:" frame.
func readSSEEvent(t *testing.T, r *bufio.Reader) (string, []byte, error) {
	t.Helper()
	var eventType string
	var data []byte
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return eventType, data, nil
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}

func openEventStream(t *testing.T, ts *testService, albumID string) (*bufio.Reader, func()) {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/albums/{id}/events", NewAlbumsHandler(ts.engine).Events)
	server := httptest.NewServer(router)

	resp, err := http.Get(server.URL + "/albums/" + albumID + "/events")
	if err != nil {
		server.Close()
		t.Fatalf("failed to open stream: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type 'text/event-stream', got '%s'", ct)
	}
	return bufio.NewReader(resp.Body), func() {
		resp.Body.Close()
		server.Close()
	}
}

func TestAlbumsHandler_Events_StatusThenDelete(t *testing.T) {
	ts := newTestService(t, testURLs...)
	loc, a := ts.syncedLocation(t)

	stream, closeStream := openEventStream(t, ts, a.ID)
	defer closeStream()

	eventType, data, err := readSSEEvent(t, stream)
	if err != nil {
		t.Fatalf("failed to read status event: %v", err)
	}
	if eventType != "status" {
		t.Fatalf("expected first event 'status', got '%s'", eventType)
	}
	var status AlbumResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("failed to parse status: %v", err)
	}
	if status.SyncState != album.StateComplete || status.Progress.Filled != 2 {
		t.Errorf("expected complete album with 2 payloads, got %s with %d", status.SyncState, status.Progress.Filled)
	}

	if err := ts.engine.DeleteLocation(context.Background(), loc.ID); err != nil {
		t.Fatalf("DeleteLocation failed: %v", err)
	}

	eventType, _, err = readSSEEvent(t, stream)
	if err != nil {
		t.Fatalf("failed to read delete event: %v", err)
	}
	if eventType != string(notify.EventLocationDeleted) {
		t.Errorf("expected '%s', got '%s'", notify.EventLocationDeleted, eventType)
	}

	// The stream ends after the location is gone
	if _, _, err := readSSEEvent(t, stream); !errors.Is(err, io.EOF) {
		t.Errorf("expected end of stream, got %v", err)
	}
}

func TestAlbumsHandler_Events_Reload(t *testing.T) {
	ts := newTestService(t, testURLs...)
	_, a := ts.syncedLocation(t)

	stream, closeStream := openEventStream(t, ts, a.ID)
	defer closeStream()

	if eventType, _, err := readSSEEvent(t, stream); err != nil || eventType != "status" {
		t.Fatalf("expected status event, got '%s' (%v)", eventType, err)
	}

	if _, err := ts.engine.Reload(a.ID); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	var states []album.SyncState
	payloads := 0
	for {
		eventType, data, err := readSSEEvent(t, stream)
		if err != nil {
			t.Fatalf("stream ended early: %v", err)
		}
		var ev notify.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("failed to parse event: %v", err)
		}
		if eventType == string(notify.EventItemPayloadSet) {
			payloads++
		}
		if ev.Type == notify.EventSyncStateChanged {
			states = append(states, ev.State)
			if ev.State == album.StateComplete {
				break
			}
		}
	}

	expected := []album.SyncState{
		album.StateNotStarted,
		album.StateSearching,
		album.StatePopulatingMetadata,
		album.StateFetchingPayloads,
		album.StateComplete,
	}
	if len(states) != len(expected) {
		t.Fatalf("expected states %v, got %v", expected, states)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Errorf("expected state %s at %d, got %s", expected[i], i, states[i])
		}
	}
	if payloads != 2 {
		t.Errorf("expected 2 payload events, got %d", payloads)
	}
}

func TestAlbumsHandler_Events_UnknownAlbum(t *testing.T) {
	ts := newTestService(t)
	handler := NewAlbumsHandler(ts.engine)

	recorder := httptest.NewRecorder()
	handler.Events(recorder, albumRequest("GET", "/api/v1/albums/missing/events", "missing", nil))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertContentType(t, recorder, "application/json")
}
