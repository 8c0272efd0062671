package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// LocationsHandler handles pin endpoints
type LocationsHandler struct {
	svc AlbumService
}

// NewLocationsHandler creates a new locations handler
func NewLocationsHandler(svc AlbumService) *LocationsHandler {
	return &LocationsHandler{svc: svc}
}

// CreateLocationRequest represents a request to drop a pin
type CreateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Title     string   `json:"title"`
}

// Create stores a pin and starts downloading its album.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	loc, a, _, err := h.svc.CreateLocation(ctx, *req.Latitude, *req.Longitude, req.Title)
	if err != nil {
		if loc == nil {
			respondServiceError(w, r, "create location", err)
			return
		}
		// The pin is stored; the album stays not_started until a sync is requested.
		klog.ErrorS(err, "Could not start sync for new location", "location", loc.ID)
	}

	resp, err := buildAlbumResponse(ctx, h.svc, a, loc, false)
	if err != nil {
		respondServiceError(w, r, "create location", err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List returns every pin with its album summary, oldest first.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	locations, err := h.svc.Store().ListLocations(ctx)
	if err != nil {
		respondServiceError(w, r, "list locations", err)
		return
	}

	result := make([]*AlbumResponse, 0, len(locations))
	for i := range locations {
		loc := &locations[i]
		a, err := h.svc.Store().GetAlbumByLocation(ctx, loc.ID)
		if errors.Is(err, album.ErrNotFound) {
			// deleted between the two reads
			continue
		}
		if err != nil {
			respondServiceError(w, r, "list locations", err)
			return
		}
		resp, err := buildAlbumResponse(ctx, h.svc, a, loc, false)
		if err != nil {
			respondServiceError(w, r, "list locations", err)
			return
		}
		result = append(result, resp)
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns a pin's album including its items.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locationID := chi.URLParam(r, "id")

	loc, err := h.svc.Store().GetLocation(ctx, locationID)
	if err != nil {
		respondServiceError(w, r, "get location", err)
		return
	}
	a, err := h.svc.Store().GetAlbumByLocation(ctx, locationID)
	if err != nil {
		respondServiceError(w, r, "get location", err)
		return
	}
	resp, err := buildAlbumResponse(ctx, h.svc, a, loc, true)
	if err != nil {
		respondServiceError(w, r, "get location", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete removes a pin, its album and every item, stopping any running sync.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "id")
	if err := h.svc.DeleteLocation(r.Context(), locationID); err != nil {
		respondServiceError(w, r, "delete location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
