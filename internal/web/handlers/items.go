package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/thumbnail"
)

// ItemsHandler serves downloaded item payloads
type ItemsHandler struct {
	svc AlbumService
}

// NewItemsHandler creates a new items handler
func NewItemsHandler(svc AlbumService) *ItemsHandler {
	return &ItemsHandler{svc: svc}
}

// Payload writes the item's image bytes verbatim.
func (h *ItemsHandler) Payload(w http.ResponseWriter, r *http.Request) {
	item, ok := h.downloadedItem(w, r, "get payload")
	if !ok {
		return
	}
	writeImage(w, item.Payload)
}

// Thumbnail writes a scaled copy of the item's image. The longer side is limited by
// the "size" query parameter.
func (h *ItemsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = n
	}

	item, ok := h.downloadedItem(w, r, "get thumbnail")
	if !ok {
		return
	}

	thumb, err := thumbnail.Make(item.Payload, thumbnail.ClampSize(size))
	if errors.Is(err, thumbnail.ErrUndecodable) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		respondServiceError(w, r, "get thumbnail", err)
		return
	}
	writeImage(w, thumb)
}

// downloadedItem loads the item named in the URL. Items still waiting for their
// download answer 404.
func (h *ItemsHandler) downloadedItem(w http.ResponseWriter, r *http.Request, op string) (*album.Item, bool) {
	item, err := h.svc.Store().GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, op, err)
		return nil, false
	}
	if !item.HasPayload() {
		respondError(w, http.StatusNotFound, "payload not downloaded yet")
		return nil, false
	}
	return item, true
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
