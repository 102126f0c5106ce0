package store

import (
	"database/sql"
	"time"

	"github.com/tilevault/tilevault-go/internal/models"
)

// CreateRecoveryEntry writes the crash-recovery bookkeeping row for a new
// bulk download job.
func (s *Store) CreateRecoveryEntry(id, storeName string, region models.Region, maxTiles uint64) error {
	now := time.Now()
	_, err := s.db.Exec(`
        INSERT INTO recovery
        (id, store, min_lat, min_lon, max_lat, max_lon, min_zoom, max_zoom, attempted, max_tiles, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
    `, id, storeName, region.MinLat, region.MinLon, region.MaxLat, region.MaxLon,
		region.MinZoom, region.MaxZoom, maxTiles, now, now)
	return err
}

// UpdateRecoveryProgress records how far an unfinished job has got.
func (s *Store) UpdateRecoveryProgress(id string, attempted uint64) error {
	_, err := s.db.Exec(
		"UPDATE recovery SET attempted = ?, updated_at = ? WHERE id = ?",
		attempted, time.Now(), id,
	)
	return err
}

// DeleteRecoveryEntry removes the bookkeeping row once a job reaches a
// terminal state. Deleting a missing row is a no-op.
func (s *Store) DeleteRecoveryEntry(id string) error {
	_, err := s.db.Exec("DELETE FROM recovery WHERE id = ?", id)
	return err
}

// FindRecoveryEntry looks for an unfinished job covering the exact same
// store and region. Used on start to resume instead of re-downloading.
func (s *Store) FindRecoveryEntry(storeName string, region models.Region) (*models.RecoveryEntry, error) {
	var e models.RecoveryEntry
	err := s.db.QueryRow(`
        SELECT id, store, min_lat, min_lon, max_lat, max_lon, min_zoom, max_zoom,
               attempted, max_tiles, created_at, updated_at
        FROM recovery
        WHERE store = ? AND min_lat = ? AND min_lon = ? AND max_lat = ? AND max_lon = ?
          AND min_zoom = ? AND max_zoom = ?
        ORDER BY created_at DESC LIMIT 1
    `, storeName, region.MinLat, region.MinLon, region.MaxLat, region.MaxLon,
		region.MinZoom, region.MaxZoom).Scan(
		&e.ID, &e.Store, &e.Region.MinLat, &e.Region.MinLon, &e.Region.MaxLat, &e.Region.MaxLon,
		&e.Region.MinZoom, &e.Region.MaxZoom, &e.Attempted, &e.MaxTiles, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListRecoveryEntries returns every unfinished job row, newest first.
func (s *Store) ListRecoveryEntries() ([]*models.RecoveryEntry, error) {
	rows, err := s.db.Query(`
        SELECT id, store, min_lat, min_lon, max_lat, max_lon, min_zoom, max_zoom,
               attempted, max_tiles, created_at, updated_at
        FROM recovery ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.RecoveryEntry
	for rows.Next() {
		var e models.RecoveryEntry
		if err := rows.Scan(
			&e.ID, &e.Store, &e.Region.MinLat, &e.Region.MinLon, &e.Region.MaxLat, &e.Region.MaxLon,
			&e.Region.MinZoom, &e.Region.MaxZoom, &e.Attempted, &e.MaxTiles, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// SweepStaleRecoveryEntries deletes bookkeeping rows that have not been
// touched since the cutoff. Returns the number of rows removed.
func (s *Store) SweepStaleRecoveryEntries(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM recovery WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
