// Slippy-map tile arithmetic for download regions. Formulas follow the
// standard OSM tile scheme: https://wiki.openstreetmap.org/wiki/Slippy_map_tilenames

package geo

import (
	"math"

	"github.com/tilevault/tilevault-go/internal/models"
)

// Web-mercator latitude limit. Latitudes beyond this project outside the
// square tile grid and are clamped.
const MaxLatitude = 85.0511287798

// TileAt returns the tile containing the given coordinate at zoom z.
func TileAt(lat, lon float64, z int) models.Tile {
	lat = clampLat(lat)
	n := float64(int(1) << uint(z))

	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	max := int(n) - 1
	return models.Tile{Z: z, X: clampInt(x, 0, max), Y: clampInt(y, 0, max)}
}

// TileRange is the inclusive tile rectangle covering a region at one zoom.
type TileRange struct {
	Z                      int
	MinX, MinY, MaxX, MaxY int
}

// Count returns the number of tiles in the range.
func (tr TileRange) Count() uint64 {
	return uint64(tr.MaxX-tr.MinX+1) * uint64(tr.MaxY-tr.MinY+1)
}

// RangeAt computes the tile rectangle for a region at a single zoom level.
func RangeAt(r models.Region, z int) TileRange {
	// Note: tile Y grows southward, so the region's max latitude maps to
	// the range's min Y.
	nw := TileAt(r.MaxLat, r.MinLon, z)
	se := TileAt(r.MinLat, r.MaxLon, z)
	return TileRange{Z: z, MinX: nw.X, MinY: nw.Y, MaxX: se.X, MaxY: se.Y}
}

// CountTiles returns the total tile count for a region across its zoom range.
func CountTiles(r models.Region) uint64 {
	var total uint64
	for z := r.MinZoom; z <= r.MaxZoom; z++ {
		total += RangeAt(r, z).Count()
	}
	return total
}

// ForEachTile enumerates every tile of the region in zoom order, then
// row-major within each zoom. Enumeration stops early if fn returns false.
func ForEachTile(r models.Region, fn func(models.Tile) bool) {
	for z := r.MinZoom; z <= r.MaxZoom; z++ {
		tr := RangeAt(r, z)
		for y := tr.MinY; y <= tr.MaxY; y++ {
			for x := tr.MinX; x <= tr.MaxX; x++ {
				if !fn(models.Tile{Z: z, X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// CenterTile returns the tile at the centre of the region at its minimum
// zoom. Used for store thumbnails.
func CenterTile(r models.Region) models.Tile {
	lat := (r.MinLat + r.MaxLat) / 2
	lon := (r.MinLon + r.MaxLon) / 2
	return TileAt(lat, lon, r.MinZoom)
}

func clampLat(lat float64) float64 {
	if lat > MaxLatitude {
		return MaxLatitude
	}
	if lat < -MaxLatitude {
		return -MaxLatitude
	}
	return lat
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
