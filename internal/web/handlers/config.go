package handlers

import (
	"net/http"

	"github.com/kozaktomas/pinalbum/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse lists the settings a client needs to render albums.
type ConfigResponse struct {
	SearchRadiusKm   float64 `json:"search_radius_km"`
	MaxAlbumSize     int     `json:"max_album_size"`
	FlickrConfigured bool    `json:"flickr_configured"`
	Database         string  `json:"database"`
}

// Get returns the public part of the configuration.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	db := "sqlite"
	if h.config.Database.UsePostgres() {
		db = "postgres"
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		SearchRadiusKm:   h.config.Flickr.SearchRadiusKm,
		MaxAlbumSize:     h.config.Flickr.MaxAlbumSize,
		FlickrConfigured: h.config.Flickr.APIKey != "",
		Database:         db,
	})
}
