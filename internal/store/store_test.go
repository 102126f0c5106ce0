package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/internal/testutil"
)

func TestCreateAndGetStore(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))

	created, err := s.CreateStore("osm")
	require.NoError(t, err)
	assert.Equal(t, "osm", created.Name)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, 5*time.Second)

	// Creating the same store again is a no-op.
	again, err := s.CreateStore("osm")
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt.Unix(), again.CreatedAt.Unix())

	_, err = s.GetStore("missing")
	assert.ErrorIs(t, err, store.ErrStoreNotFound)
}

func TestListStores(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))

	_, err := s.CreateStore("beta")
	require.NoError(t, err)
	_, err = s.CreateStore("alpha")
	require.NoError(t, err)

	stores, err := s.ListStores()
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "alpha", stores[0].Name)
	assert.Equal(t, "beta", stores[1].Name)
}

func TestDeleteStore_CascadesTiles(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))

	_, err := s.CreateStore("osm")
	require.NoError(t, err)
	tile := models.Tile{Z: 3, X: 4, Y: 2}
	require.NoError(t, s.PutTile("osm", tile, []byte("png-bytes")))

	require.NoError(t, s.DeleteStore("osm"))

	has, err := s.HasTile("osm", tile)
	require.NoError(t, err)
	assert.False(t, has, "tiles should be removed with their store")

	assert.ErrorIs(t, s.DeleteStore("osm"), store.ErrStoreNotFound)
}

func TestTileRoundTrip(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	_, err := s.CreateStore("osm")
	require.NoError(t, err)

	tile := models.Tile{Z: 10, X: 550, Y: 335}

	data, err := s.GetTile("osm", tile)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.PutTile("osm", tile, []byte("v1")))
	require.NoError(t, s.PutTile("osm", tile, []byte("v2"))) // upsert

	data, err = s.GetTile("osm", tile)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	has, err := s.HasTile("osm", tile)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetStoreStats(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	_, err := s.CreateStore("osm")
	require.NoError(t, err)

	require.NoError(t, s.PutTile("osm", models.Tile{Z: 1, X: 0, Y: 0}, []byte("abcd")))
	require.NoError(t, s.PutTile("osm", models.Tile{Z: 1, X: 1, Y: 0}, []byte("ab")))

	stats, err := s.GetStoreStats("osm")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TileCount)
	assert.Equal(t, int64(6), stats.SizeBytes)

	_, err = s.GetStoreStats("missing")
	assert.ErrorIs(t, err, store.ErrStoreNotFound)
}

func TestRecoveryEntryLifecycle(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	_, err := s.CreateStore("osm")
	require.NoError(t, err)

	region := models.Region{MinLat: 52.3, MinLon: 13.0, MaxLat: 52.7, MaxLon: 13.8, MinZoom: 10, MaxZoom: 12}

	require.NoError(t, s.CreateRecoveryEntry("job-1", "osm", region, 100))
	require.NoError(t, s.UpdateRecoveryProgress("job-1", 42))

	entry, err := s.FindRecoveryEntry("osm", region)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "job-1", entry.ID)
	assert.Equal(t, uint64(42), entry.Attempted)
	assert.Equal(t, uint64(100), entry.MaxTiles)
	assert.Equal(t, region, entry.Region)

	// A different region does not match.
	other := region
	other.MaxZoom = 13
	entry, err = s.FindRecoveryEntry("osm", other)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, s.DeleteRecoveryEntry("job-1"))
	require.NoError(t, s.DeleteRecoveryEntry("job-1")) // idempotent

	entry, err = s.FindRecoveryEntry("osm", region)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSweepStaleRecoveryEntries(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	_, err := s.CreateStore("osm")
	require.NoError(t, err)

	region := models.Region{MinZoom: 1, MaxZoom: 2}
	require.NoError(t, s.CreateRecoveryEntry("fresh", "osm", region, 10))

	// The fresh row was touched just now; a cutoff in the past removes nothing.
	removed, err := s.SweepStaleRecoveryEntries(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	// A future cutoff removes it.
	removed, err = s.SweepStaleRecoveryEntries(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
