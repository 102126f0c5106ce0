package store

import (
	"database/sql"
	"time"

	"github.com/tilevault/tilevault-go/internal/models"
)

// PutTile inserts or replaces a tile blob for a store.
func (s *Store) PutTile(storeName string, tile models.Tile, data []byte) error {
	_, err := s.db.Exec(`
        INSERT INTO tiles (store, z, x, y, data, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (store, z, x, y) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
    `, storeName, tile.Z, tile.X, tile.Y, data, time.Now())
	return err
}

// GetTile fetches a single tile blob. Returns nil data when absent.
func (s *Store) GetTile(storeName string, tile models.Tile) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM tiles WHERE store = ? AND z = ? AND x = ? AND y = ?",
		storeName, tile.Z, tile.X, tile.Y,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// HasTile reports whether a tile is already cached.
func (s *Store) HasTile(storeName string, tile models.Tile) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM tiles WHERE store = ? AND z = ? AND x = ? AND y = ?",
		storeName, tile.Z, tile.X, tile.Y,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteTilesOlderThan removes tiles not refreshed since the cutoff and
// returns how many were deleted. Used by the scheduled cache trim.
func (s *Store) DeleteTilesOlderThan(storeName string, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM tiles WHERE store = ? AND updated_at < ?",
		storeName, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
