package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// ItemResponse describes one album item. Payload bytes are served separately.
type ItemResponse struct {
	ID           string `json:"id"`
	SourceURI    string `json:"source_uri"`
	Generation   int64  `json:"generation"`
	HasPayload   bool   `json:"has_payload"`
	PayloadURL   string `json:"payload_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// AlbumResponse is an album with its download progress.
type AlbumResponse struct {
	album.Album
	Location *album.Location `json:"location,omitempty"`
	Progress album.Progress  `json:"progress"`
	Ratio    *float64        `json:"ratio"` // null while the album has no items
	Complete bool            `json:"complete"`
	Syncing  bool            `json:"syncing"`
	Items    []ItemResponse  `json:"items,omitempty"`
}

// AlbumsHandler handles album endpoints
type AlbumsHandler struct {
	svc AlbumService
}

// NewAlbumsHandler creates a new albums handler
func NewAlbumsHandler(svc AlbumService) *AlbumsHandler {
	return &AlbumsHandler{svc: svc}
}

// buildAlbumResponse assembles the album view. Items are included when withItems is set.
func buildAlbumResponse(ctx context.Context, svc AlbumService, a *album.Album, loc *album.Location, withItems bool) (*AlbumResponse, error) {
	progress, err := svc.Progress(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("could not read progress: %w", err)
	}

	resp := &AlbumResponse{
		Album:    *a,
		Location: loc,
		Progress: progress,
		Complete: progress.Complete(a.NoItemsFound),
		Syncing:  svc.Syncing(a.ID),
	}
	if ratio, ok := progress.Ratio(); ok {
		resp.Ratio = &ratio
	}

	if !withItems {
		return resp, nil
	}
	items, err := svc.Store().QueryItems(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("could not query items: %w", err)
	}
	resp.Items = make([]ItemResponse, 0, len(items))
	for i := range items {
		item := ItemResponse{
			ID:         items[i].ID,
			SourceURI:  items[i].SourceURI,
			Generation: items[i].Generation,
			HasPayload: items[i].HasPayload(),
		}
		if item.HasPayload {
			item.PayloadURL = "/api/v1/items/" + items[i].ID + "/payload"
			item.ThumbnailURL = "/api/v1/items/" + items[i].ID + "/thumbnail"
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

// Get returns an album with its location, progress and items.
func (h *AlbumsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	albumID := chi.URLParam(r, "id")

	a, err := h.svc.Store().GetAlbum(ctx, albumID)
	if err != nil {
		respondServiceError(w, r, "get album", err)
		return
	}
	loc, err := h.svc.Store().GetLocation(ctx, a.LocationID)
	if err != nil {
		respondServiceError(w, r, "get album", err)
		return
	}

	resp, err := buildAlbumResponse(ctx, h.svc, a, loc, true)
	if err != nil {
		respondServiceError(w, r, "get album", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Sync starts a background sync of the album.
func (h *AlbumsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")
	if _, err := h.svc.Store().GetAlbum(r.Context(), albumID); err != nil {
		respondServiceError(w, r, "sync album", err)
		return
	}
	if _, err := h.svc.StartSync(albumID); err != nil {
		respondServiceError(w, r, "sync album", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"album_id": albumID,
		"status":   "started",
	})
}

// Reload discards the album's items and starts a fresh sync, superseding any running one.
func (h *AlbumsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")
	if _, err := h.svc.Reload(albumID); err != nil {
		respondServiceError(w, r, "reload album", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"album_id": albumID,
		"status":   "reloading",
	})
}

// DeleteItemsRequest represents a request to remove items from an album
type DeleteItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// DeleteItems removes items from an album.
func (h *AlbumsHandler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	albumID := chi.URLParam(r, "id")

	var req DeleteItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.ItemIDs) == 0 {
		respondError(w, http.StatusBadRequest, "item_ids is required")
		return
	}

	if err := h.svc.DeleteItems(ctx, albumID, req.ItemIDs); err != nil {
		respondServiceError(w, r, "delete items", err)
		return
	}

	progress, err := h.svc.Progress(ctx, albumID)
	if err != nil && !errors.Is(err, album.ErrNotFound) {
		respondServiceError(w, r, "delete items", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"requested": len(req.ItemIDs),
		"remaining": progress.Total,
	})
}
