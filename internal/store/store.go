// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tilevault/tilevault-go/internal/models"
)

// ErrStoreNotFound is returned when a named cache store does not exist.
var ErrStoreNotFound = errors.New("store not found")

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateStore registers a new named cache store. Creating a store that
// already exists is a no-op.
func (s *Store) CreateStore(name string) (*models.CacheStore, error) {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)",
		name, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	return s.GetStore(name)
}

// GetStore fetches a single cache store by name.
func (s *Store) GetStore(name string) (*models.CacheStore, error) {
	var cs models.CacheStore
	err := s.db.QueryRow(
		"SELECT name, created_at FROM stores WHERE name = ?", name,
	).Scan(&cs.Name, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// ListStores returns all cache stores ordered by name.
func (s *Store) ListStores() ([]*models.CacheStore, error) {
	rows, err := s.db.Query("SELECT name, created_at FROM stores ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []*models.CacheStore
	for rows.Next() {
		var cs models.CacheStore
		if err := rows.Scan(&cs.Name, &cs.CreatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, &cs)
	}
	return stores, rows.Err()
}

// DeleteStore removes a cache store and, via foreign keys, all of its tiles
// and recovery rows.
func (s *Store) DeleteStore(name string) error {
	res, err := s.db.Exec("DELETE FROM stores WHERE name = ?", name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStoreNotFound
	}
	return nil
}

// GetStoreStats computes the tile count and byte size of a store.
func (s *Store) GetStoreStats(name string) (*models.StoreStats, error) {
	if _, err := s.GetStore(name); err != nil {
		return nil, err
	}

	stats := &models.StoreStats{Store: name}
	err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM tiles WHERE store = ?",
		name,
	).Scan(&stats.TileCount, &stats.SizeBytes)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
