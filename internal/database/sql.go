package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/pinalbum/internal/album"
)

// Dialect selects placeholder and collation syntax for SQLRepository.
type Dialect int

// Supported SQL dialects.
const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLRepository implements AlbumStore over database/sql. Both the PostgreSQL and the
// SQLite backends share it; queries are written with '?' placeholders and rebound.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLRepository creates a repository over an already migrated database.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Compile-time check
var _ AlbumStore = (*SQLRepository)(nil)

// rebind converts '?' placeholders to '$n' for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// uriOrder sorts source URIs bytewise in both dialects.
func (r *SQLRepository) uriOrder() string {
	if r.dialect == DialectPostgres {
		return `source_uri COLLATE "C"`
	}
	return "source_uri COLLATE BINARY"
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLRepository) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, r.rebind(query), args...)
}

// inTx runs fn in a transaction and commits it. Errors from fn are returned as is.
func (r *SQLRepository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailed(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return writeFailed(op, err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

const (
	locationColumns = "id, latitude, longitude, title, created_at"
	albumColumns    = "id, location_id, sync_state, no_items_found, generation, last_error, updated_at"
	itemColumns     = "id, album_id, source_uri, payload, generation"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(s scanner) (*album.Location, error) {
	var loc album.Location
	if err := s.Scan(&loc.ID, &loc.Latitude, &loc.Longitude, &loc.Title, &loc.CreatedAt); err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanAlbum(s scanner) (*album.Album, error) {
	var a album.Album
	var state string
	if err := s.Scan(&a.ID, &a.LocationID, &state, &a.NoItemsFound, &a.Generation, &a.LastError, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.SyncState = album.SyncState(state)
	return &a, nil
}

func scanItem(s scanner) (*album.Item, error) {
	var it album.Item
	if err := s.Scan(&it.ID, &it.AlbumID, &it.SourceURI, &it.Payload, &it.Generation); err != nil {
		return nil, err
	}
	return &it, nil
}

// notFound maps sql.ErrNoRows to album.ErrNotFound.
func notFound(what, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, album.ErrNotFound)
	}
	return fmt.Errorf("could not load %s %s: %w", what, id, err)
}

// CreateLocation inserts a location and its album atomically.
func (r *SQLRepository) CreateLocation(ctx context.Context, loc *album.Location) (*album.Album, error) {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = now()
	}
	a := &album.Album{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		SyncState:  album.StateNotStarted,
		UpdatedAt:  loc.CreatedAt,
	}

	err := r.inTx(ctx, "create location", func(tx *sql.Tx) error {
		if _, err := r.exec(ctx, tx,
			"INSERT INTO locations ("+locationColumns+") VALUES (?, ?, ?, ?, ?)",
			loc.ID, loc.Latitude, loc.Longitude, loc.Title, loc.CreatedAt); err != nil {
			return writeFailed("insert location", err)
		}
		return r.insertAlbum(ctx, tx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLRepository) insertAlbum(ctx context.Context, tx *sql.Tx, a *album.Album) error {
	if _, err := r.exec(ctx, tx,
		"INSERT INTO albums ("+albumColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.LocationID, string(a.SyncState), a.NoItemsFound, a.Generation, a.LastError, a.UpdatedAt); err != nil {
		return writeFailed("insert album", err)
	}
	return nil
}

// CreateAlbum returns the existing album of a location or creates one.
func (r *SQLRepository) CreateAlbum(ctx context.Context, locationID string) (*album.Album, error) {
	var result *album.Album
	err := r.inTx(ctx, "create album", func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, r.rebind("SELECT id FROM locations WHERE id = ?"), locationID).Scan(&id); err != nil {
			return notFound("location", locationID, err)
		}

		existing, err := scanAlbum(tx.QueryRowContext(ctx,
			r.rebind("SELECT "+albumColumns+" FROM albums WHERE location_id = ?"), locationID))
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("could not load album: %w", err)
		}

		result = &album.Album{
			ID:         uuid.NewString(),
			LocationID: locationID,
			SyncState:  album.StateNotStarted,
			UpdatedAt:  now(),
		}
		return r.insertAlbum(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// bumpGeneration increments the album generation inside tx and returns the new value.
func (r *SQLRepository) bumpGeneration(ctx context.Context, tx *sql.Tx, albumID string) (int64, error) {
	res, err := r.exec(ctx, tx, "UPDATE albums SET generation = generation + 1 WHERE id = ?", albumID)
	if err != nil {
		return 0, writeFailed("bump generation", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, writeFailed("bump generation", err)
	} else if n == 0 {
		return 0, fmt.Errorf("album %s: %w", albumID, album.ErrNotFound)
	}

	var generation int64
	if err := tx.QueryRowContext(ctx, r.rebind("SELECT generation FROM albums WHERE id = ?"), albumID).Scan(&generation); err != nil {
		return 0, writeFailed("read generation", err)
	}
	return generation, nil
}

// ReplaceItems swaps the album's item set for the given URIs.
func (r *SQLRepository) ReplaceItems(ctx context.Context, albumID string, uris []string) (int64, error) {
	uris, err := NormalizeURIs(uris)
	if err != nil {
		return 0, err
	}

	var generation int64
	err = r.inTx(ctx, "replace items", func(tx *sql.Tx) error {
		var err error
		generation, err = r.bumpGeneration(ctx, tx, albumID)
		if err != nil {
			return err
		}
		if _, err := r.exec(ctx, tx, "DELETE FROM items WHERE album_id = ?", albumID); err != nil {
			return writeFailed("delete items", err)
		}
		for _, uri := range uris {
			if _, err := r.exec(ctx, tx,
				"INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, NULL, ?)",
				uuid.NewString(), albumID, uri, generation); err != nil {
				return writeFailed("insert item", err)
			}
		}
		if _, err := r.exec(ctx, tx,
			"UPDATE albums SET sync_state = ?, no_items_found = ?, last_error = '', updated_at = ? WHERE id = ?",
			string(album.StatePopulatingMetadata), false, now(), albumID); err != nil {
			return writeFailed("update album", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return generation, nil
}

// ResetAlbum wipes the album for a reload.
func (r *SQLRepository) ResetAlbum(ctx context.Context, albumID string) (int64, error) {
	var generation int64
	err := r.inTx(ctx, "reset album", func(tx *sql.Tx) error {
		var err error
		generation, err = r.bumpGeneration(ctx, tx, albumID)
		if err != nil {
			return err
		}
		if _, err := r.exec(ctx, tx, "DELETE FROM items WHERE album_id = ?", albumID); err != nil {
			return writeFailed("delete items", err)
		}
		if _, err := r.exec(ctx, tx,
			"UPDATE albums SET sync_state = ?, no_items_found = ?, last_error = '', updated_at = ? WHERE id = ?",
			string(album.StateNotStarted), false, now(), albumID); err != nil {
			return writeFailed("update album", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return generation, nil
}

// SetPayload stores one payload if the item still exists in the given generation.
func (r *SQLRepository) SetPayload(ctx context.Context, itemID string, generation int64, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	res, err := r.exec(ctx, r.db, "UPDATE items SET payload = ? WHERE id = ? AND generation = ?", payload, itemID, generation)
	if err != nil {
		return writeFailed("set payload", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeFailed("set payload", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s generation %d: %w", itemID, generation, album.ErrNotFound)
	}
	return nil
}

// DeleteItems removes items from an album and returns the remaining count.
func (r *SQLRepository) DeleteItems(ctx context.Context, albumID string, itemIDs []string) (int, error) {
	var remaining int
	err := r.inTx(ctx, "delete items", func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, r.rebind("SELECT id FROM albums WHERE id = ?"), albumID).Scan(&id); err != nil {
			return notFound("album", albumID, err)
		}
		for _, itemID := range itemIDs {
			if _, err := r.exec(ctx, tx, "DELETE FROM items WHERE id = ? AND album_id = ?", itemID, albumID); err != nil {
				return writeFailed("delete item", err)
			}
		}
		if err := tx.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM items WHERE album_id = ?"), albumID).Scan(&remaining); err != nil {
			return writeFailed("count items", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// DeleteLocation removes a location with its album and items.
func (r *SQLRepository) DeleteLocation(ctx context.Context, locationID string) error {
	return r.inTx(ctx, "delete location", func(tx *sql.Tx) error {
		if _, err := r.exec(ctx, tx,
			"DELETE FROM items WHERE album_id IN (SELECT id FROM albums WHERE location_id = ?)", locationID); err != nil {
			return writeFailed("delete items", err)
		}
		if _, err := r.exec(ctx, tx, "DELETE FROM albums WHERE location_id = ?", locationID); err != nil {
			return writeFailed("delete album", err)
		}
		res, err := r.exec(ctx, tx, "DELETE FROM locations WHERE id = ?", locationID)
		if err != nil {
			return writeFailed("delete location", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return writeFailed("delete location", err)
		} else if n == 0 {
			return fmt.Errorf("location %s: %w", locationID, album.ErrNotFound)
		}
		return nil
	})
}

// UpdateSyncState records a state transition.
func (r *SQLRepository) UpdateSyncState(ctx context.Context, albumID string, update SyncStateUpdate) error {
	if !update.State.Valid() {
		return fmt.Errorf("invalid sync state %q", update.State)
	}

	query := "UPDATE albums SET sync_state = ?, last_error = ?, updated_at = ?"
	args := []any{string(update.State), update.LastError, now()}
	if update.NoItemsFound != nil {
		query += ", no_items_found = ?"
		args = append(args, *update.NoItemsFound)
	}
	query += " WHERE id = ?"
	args = append(args, albumID)

	res, err := r.exec(ctx, r.db, query, args...)
	if err != nil {
		return writeFailed("update sync state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeFailed("update sync state", err)
	}
	if n == 0 {
		return fmt.Errorf("album %s: %w", albumID, album.ErrNotFound)
	}
	return nil
}

// GetLocation loads one location.
func (r *SQLRepository) GetLocation(ctx context.Context, locationID string) (*album.Location, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+locationColumns+" FROM locations WHERE id = ?"), locationID))
	if err != nil {
		return nil, notFound("location", locationID, err)
	}
	return loc, nil
}

// ListLocations returns every location, oldest first.
func (r *SQLRepository) ListLocations(ctx context.Context) ([]album.Location, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+locationColumns+" FROM locations ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("could not query locations: %w", err)
	}
	defer rows.Close()

	var out []album.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan location: %w", err)
		}
		out = append(out, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate locations: %w", err)
	}
	return out, nil
}

// GetAlbum loads one album.
func (r *SQLRepository) GetAlbum(ctx context.Context, albumID string) (*album.Album, error) {
	a, err := scanAlbum(r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+albumColumns+" FROM albums WHERE id = ?"), albumID))
	if err != nil {
		return nil, notFound("album", albumID, err)
	}
	return a, nil
}

// GetAlbumByLocation loads the album of a location.
func (r *SQLRepository) GetAlbumByLocation(ctx context.Context, locationID string) (*album.Album, error) {
	a, err := scanAlbum(r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+albumColumns+" FROM albums WHERE location_id = ?"), locationID))
	if err != nil {
		return nil, notFound("album for location", locationID, err)
	}
	return a, nil
}

// ListAlbums returns every album.
func (r *SQLRepository) ListAlbums(ctx context.Context) ([]album.Album, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+albumColumns+" FROM albums ORDER BY updated_at, id")
	if err != nil {
		return nil, fmt.Errorf("could not query albums: %w", err)
	}
	defer rows.Close()

	var out []album.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan album: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate albums: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) queryItems(ctx context.Context, query string, args ...any) ([]album.Item, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("could not query items: %w", err)
	}
	defer rows.Close()

	var out []album.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan item: %w", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate items: %w", err)
	}
	return out, nil
}

// QueryItems lists the album's items ordered by source URI.
func (r *SQLRepository) QueryItems(ctx context.Context, albumID string) ([]album.Item, error) {
	return r.queryItems(ctx,
		"SELECT "+itemColumns+" FROM items WHERE album_id = ? ORDER BY "+r.uriOrder(), albumID)
}

// ItemsMissingPayload lists items without a payload ordered by source URI.
func (r *SQLRepository) ItemsMissingPayload(ctx context.Context, albumID string) ([]album.Item, error) {
	return r.queryItems(ctx,
		"SELECT "+itemColumns+" FROM items WHERE album_id = ? AND payload IS NULL ORDER BY "+r.uriOrder(), albumID)
}

// GetItem loads one item with its payload.
func (r *SQLRepository) GetItem(ctx context.Context, itemID string) (*album.Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		r.rebind("SELECT "+itemColumns+" FROM items WHERE id = ?"), itemID))
	if err != nil {
		return nil, notFound("item", itemID, err)
	}
	return it, nil
}

// Progress counts items with and without payload.
func (r *SQLRepository) Progress(ctx context.Context, albumID string) (album.Progress, error) {
	var id string
	if err := r.db.QueryRowContext(ctx, r.rebind("SELECT id FROM albums WHERE id = ?"), albumID).Scan(&id); err != nil {
		return album.Progress{}, notFound("album", albumID, err)
	}

	var p album.Progress
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT COUNT(*), COUNT(payload) FROM items WHERE album_id = ?"), albumID).Scan(&p.Total, &p.Filled)
	if err != nil {
		return album.Progress{}, fmt.Errorf("could not count items: %w", err)
	}
	return p, nil
}
