package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// AlbumService is the part of the sync engine the HTTP handlers drive.
// *syncer.Engine satisfies it.
type AlbumService interface {
	Store() database.AlbumReader
	Progress(ctx context.Context, albumID string) (album.Progress, error)
	Syncing(albumID string) bool
	Listen(albumID string) (<-chan notify.Event, func())

	CreateLocation(ctx context.Context, lat, lon float64, title string) (*album.Location, *album.Album, *coord.Run, error)
	StartSync(albumID string) (*coord.Run, error)
	Reload(albumID string) (*coord.Run, error)
	DeleteItems(ctx context.Context, albumID string, itemIDs []string) error
	DeleteLocation(ctx context.Context, locationID string) error
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps engine and store errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, album.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, album.ErrConcurrentSync):
		return http.StatusConflict
	case errors.Is(err, album.ErrInvalidLocation), errors.Is(err, album.ErrInvalidURI):
		return http.StatusBadRequest
	case errors.Is(err, album.ErrSearchFailed), errors.Is(err, album.ErrMalformedResponse),
		errors.Is(err, album.ErrPayloadFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, coord.ErrSuperseded), errors.Is(err, coord.ErrCancelled):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondServiceError logs server-side failures and writes the mapped status.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		klog.ErrorS(err, "Request failed", "op", op, "path", sanitizeForLog(r.URL.Path))
	}
	respondError(w, status, err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
