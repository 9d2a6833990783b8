// Package store provides SQLite persistence for display devices and
// playlists.
//
// Store is safe for concurrent use. The underlying sql.DB handles
// connection pooling and serialization. Individual operations are
// atomic; read-modify-write sequences require external synchronization.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"glowworm/types"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Store handles persistence of displays and playlists
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path. The database
// is created if it doesn't exist and the schema is applied
// automatically.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS displays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		resolution TEXT NOT NULL,
		orientation TEXT NOT NULL DEFAULT 'landscape',
		location TEXT,
		playlist_id TEXT,
		registered_at DATETIME NOT NULL,
		last_seen_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlist_items (
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		image_path TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_displays_resolution ON displays(resolution);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDisplay persists a new display registration
func (s *Store) CreateDisplay(d *types.Display) error {
	_, err := s.db.Exec(
		`INSERT INTO displays (id, name, resolution, orientation, location, playlist_id, registered_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		d.ID, d.Name, d.Resolution, d.Orientation, d.Location, d.PlaylistID, d.RegisteredAt, d.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create display: %w", err)
	}
	return nil
}

// GetDisplay fetches a display by id
func (s *Store) GetDisplay(id string) (*types.Display, error) {
	row := s.db.QueryRow(
		`SELECT id, name, resolution, orientation, COALESCE(location, ''), COALESCE(playlist_id, ''), registered_at, last_seen_at
		 FROM displays WHERE id = ?`, id)
	return scanDisplay(row)
}

// ListDisplays returns all registered displays ordered by name
func (s *Store) ListDisplays() ([]types.Display, error) {
	rows, err := s.db.Query(
		`SELECT id, name, resolution, orientation, COALESCE(location, ''), COALESCE(playlist_id, ''), registered_at, last_seen_at
		 FROM displays ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list displays: %w", err)
	}
	defer rows.Close()
	return collectDisplays(rows)
}

// SearchDisplays returns displays whose name or location matches the query
func (s *Store) SearchDisplays(query string) ([]types.Display, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT id, name, resolution, orientation, COALESCE(location, ''), COALESCE(playlist_id, ''), registered_at, last_seen_at
		 FROM displays WHERE name LIKE ? OR location LIKE ? ORDER BY name`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search displays: %w", err)
	}
	defer rows.Close()
	return collectDisplays(rows)
}

// UpdateDisplay updates a display's mutable fields
func (s *Store) UpdateDisplay(d *types.Display) error {
	res, err := s.db.Exec(
		`UPDATE displays SET name = ?, resolution = ?, orientation = ?, location = ? WHERE id = ?`,
		d.Name, d.Resolution, d.Orientation, d.Location, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update display: %w", err)
	}
	return requireRow(res)
}

// DeleteDisplay removes a display registration
func (s *Store) DeleteDisplay(id string) error {
	res, err := s.db.Exec(`DELETE FROM displays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete display: %w", err)
	}
	return requireRow(res)
}

// AssignPlaylist links a playlist to a display. An empty playlistID
// clears the assignment.
func (s *Store) AssignPlaylist(displayID, playlistID string) error {
	if playlistID != "" {
		if _, err := s.GetPlaylist(playlistID); err != nil {
			return err
		}
	}
	res, err := s.db.Exec(
		`UPDATE displays SET playlist_id = NULLIF(?, '') WHERE id = ?`, playlistID, displayID)
	if err != nil {
		return fmt.Errorf("failed to assign playlist: %w", err)
	}
	return requireRow(res)
}

// TouchDisplay records a heartbeat from a display device
func (s *Store) TouchDisplay(id string, seenAt time.Time) error {
	res, err := s.db.Exec(`UPDATE displays SET last_seen_at = ? WHERE id = ?`, seenAt, id)
	if err != nil {
		return fmt.Errorf("failed to record display heartbeat: %w", err)
	}
	return requireRow(res)
}

// DistinctResolutions returns the distinct resolutions of all
// registered displays, the default size set for regeneration tasks
func (s *Store) DistinctResolutions() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT resolution FROM displays ORDER BY resolution`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, rows.Err()
}

// CreatePlaylist persists a playlist and its items atomically
func (s *Store) CreatePlaylist(p *types.Playlist) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO playlists (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	if err := insertItems(tx, p.ID, p.Items); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPlaylist fetches a playlist with its items in order
func (s *Store) GetPlaylist(id string) (*types.Playlist, error) {
	row := s.db.QueryRow(`SELECT id, name, created_at FROM playlists WHERE id = ?`, id)

	var p types.Playlist
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	items, err := s.playlistItems(id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

// ListPlaylists returns all playlists with their items
func (s *Store) ListPlaylists() ([]types.Playlist, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM playlists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []types.Playlist
	for rows.Next() {
		var p types.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range playlists {
		items, err := s.playlistItems(playlists[i].ID)
		if err != nil {
			return nil, err
		}
		playlists[i].Items = items
	}
	return playlists, nil
}

// SearchPlaylists returns playlists whose name matches the query
func (s *Store) SearchPlaylists(query string) ([]types.Playlist, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`SELECT id, name, created_at FROM playlists WHERE name LIKE ? ORDER BY name`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search playlists: %w", err)
	}
	defer rows.Close()

	var playlists []types.Playlist
	for rows.Next() {
		var p types.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// UpdatePlaylist replaces a playlist's name and items atomically
func (s *Store) UpdatePlaylist(p *types.Playlist) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE playlists SET name = ? WHERE id = ?`, p.Name, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear playlist items: %w", err)
	}
	if err := insertItems(tx, p.ID, p.Items); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePlaylist removes a playlist, its items, and any display
// assignments pointing at it
func (s *Store) DeletePlaylist(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE displays SET playlist_id = NULL WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear display assignments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist items: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) playlistItems(playlistID string) ([]types.PlaylistItem, error) {
	rows, err := s.db.Query(
		`SELECT image_path, position FROM playlist_items WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist items: %w", err)
	}
	defer rows.Close()

	var items []types.PlaylistItem
	for rows.Next() {
		var item types.PlaylistItem
		if err := rows.Scan(&item.ImagePath, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan playlist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(tx *sql.Tx, playlistID string, items []types.PlaylistItem) error {
	for _, item := range items {
		if _, err := tx.Exec(
			`INSERT INTO playlist_items (playlist_id, image_path, position) VALUES (?, ?, ?)`,
			playlistID, item.ImagePath, item.Position,
		); err != nil {
			return fmt.Errorf("failed to insert playlist item: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDisplay(row rowScanner) (*types.Display, error) {
	var d types.Display
	var lastSeen sql.NullTime
	err := row.Scan(&d.ID, &d.Name, &d.Resolution, &d.Orientation, &d.Location, &d.PlaylistID, &d.RegisteredAt, &lastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan display: %w", err)
	}
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Time
	}
	return &d, nil
}

func collectDisplays(rows *sql.Rows) ([]types.Display, error) {
	var displays []types.Display
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		displays = append(displays, *d)
	}
	return displays, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
