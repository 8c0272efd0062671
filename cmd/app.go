package cmd

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/database/postgres"
	"github.com/kozaktomas/pinalbum/internal/database/sqlite"
	"github.com/kozaktomas/pinalbum/internal/download"
	"github.com/kozaktomas/pinalbum/internal/flickr"
	"github.com/kozaktomas/pinalbum/internal/syncer"
)

// openStore connects to PostgreSQL when DATABASE_URL is set and to the local SQLite
// file otherwise. Migrations run before the store is returned.
func openStore(ctx context.Context, cfg *config.Config) (database.AlbumStore, func() error, error) {
	if cfg.Database.UsePostgres() {
		store, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		klog.V(1).InfoS("Using PostgreSQL backend")
		return store, store.Close, nil
	}

	store, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}
	klog.V(1).InfoS("Using SQLite backend", "path", cfg.Database.SQLitePath)
	return store, store.Close, nil
}

// openEngine wires the store, the Flickr client and the downloader into a sync engine.
// The returned cleanup stops running syncs before closing the store.
func openEngine(ctx context.Context, cfg *config.Config) (*syncer.Engine, func(), error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := flickr.NewClient(flickr.Options{
		BaseURL:           cfg.Flickr.URL,
		APIKey:            cfg.Flickr.APIKey,
		SearchRadiusKm:    cfg.Flickr.SearchRadiusKm,
		MaxAlbumSize:      cfg.Flickr.MaxAlbumSize,
		MaxResultWindow:   cfg.Flickr.MaxResultWindow,
		Timeout:           cfg.Flickr.Timeout,
		RequestsPerSecond: cfg.Flickr.RequestsPerSecond,
	})
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create Flickr client: %w", err)
	}

	fetcher := download.NewFetcher(cfg.Download.Timeout, cfg.Download.MaxPayloadBytes)
	engine := syncer.New(store, client, fetcher, syncer.Options{
		ResumeConcurrency: cfg.Sync.ResumeConcurrency,
	})

	cleanup := func() {
		engine.Close()
		if err := closeStore(); err != nil {
			klog.ErrorS(err, "Could not close store")
		}
	}
	return engine, cleanup, nil
}

// requireFlickrKey fails commands that search when no API key is configured.
func requireFlickrKey(cfg *config.Config) error {
	if cfg.Flickr.APIKey == "" {
		return errors.New("FLICKR_API_KEY environment variable is required")
	}
	return nil
}
