package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// setupSSEConnection validates the request, finds the album, and sets up SSE headers.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter, r *http.Request, svc AlbumService) (*album.Album, http.Flusher, bool) {
	albumID := chi.URLParam(r, "id")
	if albumID == "" {
		respondError(w, http.StatusBadRequest, "missing album ID")
		return nil, nil, false
	}

	a, err := svc.Store().GetAlbum(r.Context(), albumID)
	if err != nil {
		respondServiceError(w, r, "album events", err)
		return nil, nil, false
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return a, flusher, true
}

// sendSSEEvent writes one event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// Events streams album events. The first frame is a "status" snapshot; the stream
// ends when the client disconnects or the location is deleted.
func (h *AlbumsHandler) Events(w http.ResponseWriter, r *http.Request) {
	a, flusher, ok := setupSSEConnection(w, r, h.svc)
	if !ok {
		return
	}

	// Subscribe before taking the snapshot so no commit falls in between.
	events, cancel := h.svc.Listen(a.ID)
	defer cancel()

	a, err := h.svc.Store().GetAlbum(r.Context(), a.ID)
	if err != nil {
		sendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}
	snapshot, err := buildAlbumResponse(r.Context(), h.svc, a, nil, false)
	if err != nil {
		sendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}
	sendSSEEvent(w, flusher, "status", snapshot)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
			if event.Type == notify.EventLocationDeleted {
				return
			}
		}
	}
}
