package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
)

func TestRespondJSON_SetsContentTypeAndStatus(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]string{"status": "ok"})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	// Body should be empty for nil data
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", fmt.Errorf("album x: %w", album.ErrNotFound), http.StatusNotFound},
		{"concurrent sync", album.ErrConcurrentSync, http.StatusConflict},
		{"invalid location", fmt.Errorf("%w: latitude 91 out of range", album.ErrInvalidLocation), http.StatusBadRequest},
		{"invalid uri", album.ErrInvalidURI, http.StatusBadRequest},
		{"search failed", fmt.Errorf("%w: HTTP error: 503", album.ErrSearchFailed), http.StatusBadGateway},
		{"malformed", album.ErrMalformedResponse, http.StatusBadGateway},
		{"superseded", coord.ErrSuperseded, http.StatusConflict},
		{"store write", fmt.Errorf("%w: disk full", album.ErrStoreWriteFailed), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.expected {
				t.Errorf("expected status %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("/api/v1/albums/a\r\nInjected: yes"); got != "/api/v1/albums/aInjected: yes" {
		t.Errorf("expected line breaks removed, got '%s'", got)
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
