package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tilevault/tilevault-go/internal/geo"
	"github.com/tilevault/tilevault-go/internal/models"
)

func TestTileAt(t *testing.T) {
	// At zoom 0 the whole world is one tile.
	tile := geo.TileAt(52.52, 13.405, 0)
	assert.Equal(t, models.Tile{Z: 0, X: 0, Y: 0}, tile)

	// Berlin at zoom 10 is a well-known reference point.
	tile = geo.TileAt(52.52, 13.405, 10)
	assert.Equal(t, models.Tile{Z: 10, X: 550, Y: 335}, tile)

	// Null island sits at the grid centre.
	tile = geo.TileAt(0, 0, 4)
	assert.Equal(t, models.Tile{Z: 4, X: 8, Y: 8}, tile)
}

func TestTileAt_ClampsPoles(t *testing.T) {
	tile := geo.TileAt(89.9, 0, 3)
	assert.Equal(t, 0, tile.Y)
	tile = geo.TileAt(-89.9, 0, 3)
	assert.Equal(t, 7, tile.Y)
}

func TestRangeAt_Orientation(t *testing.T) {
	r := models.Region{MinLat: 52.3, MinLon: 13.0, MaxLat: 52.7, MaxLon: 13.8, MinZoom: 10, MaxZoom: 10}
	tr := geo.RangeAt(r, 10)
	assert.LessOrEqual(t, tr.MinX, tr.MaxX)
	assert.LessOrEqual(t, tr.MinY, tr.MaxY)
	assert.Positive(t, tr.Count())
}

func TestCountTiles_MatchesEnumeration(t *testing.T) {
	r := models.Region{MinLat: 52.3, MinLon: 13.0, MaxLat: 52.7, MaxLon: 13.8, MinZoom: 8, MaxZoom: 11}

	var seen uint64
	geo.ForEachTile(r, func(models.Tile) bool {
		seen++
		return true
	})
	assert.Equal(t, geo.CountTiles(r), seen)
}

func TestForEachTile_StopsEarly(t *testing.T) {
	r := models.Region{MinLat: 40, MinLon: -80, MaxLat: 45, MaxLon: -70, MinZoom: 6, MaxZoom: 8}

	var seen int
	geo.ForEachTile(r, func(models.Tile) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestForEachTile_ZoomOrder(t *testing.T) {
	r := models.Region{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1, MinZoom: 1, MaxZoom: 3}

	lastZoom := 0
	geo.ForEachTile(r, func(tile models.Tile) bool {
		assert.GreaterOrEqual(t, tile.Z, lastZoom)
		lastZoom = tile.Z
		return true
	})
	assert.Equal(t, 3, lastZoom)
}
