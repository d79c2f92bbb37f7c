package geo

import (
	"math"

	"github.com/uber/h3-go/v4"
)

const earthRadiusMeters = 6371000.0

// H3 resolution levels for different use cases.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionQueryCache groups nearby incident queries into shared
	// cache entries (~460m edge, ~0.74 km²). Taps landing in the same cell
	// reuse the same upstream result within the cache TTL.
	H3ResolutionQueryCache = 8

	// H3ResolutionViewport is used for coarse viewport-level aggregation
	// (~1.2 km edge, ~5.16 km²).
	H3ResolutionViewport = 7
)

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(latitude1, longitude1, latitude2, longitude2 float64) float64 {
	latitude1Rad := latitude1 * math.Pi / 180.0
	latitude2Rad := latitude2 * math.Pi / 180.0
	deltaLatitude := (latitude2 - latitude1) * math.Pi / 180.0
	deltaLongitude := (longitude2 - longitude1) * math.Pi / 180.0

	a := math.Sin(deltaLatitude/2)*math.Sin(deltaLatitude/2) +
		math.Cos(latitude1Rad)*math.Cos(latitude2Rad)*
			math.Sin(deltaLongitude/2)*math.Sin(deltaLongitude/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// LatLngToCell converts latitude/longitude to an H3 cell index at the given resolution.
// Out-of-range input should be validated upstream; on error the zero cell is returned.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	latLng := h3.NewLatLng(lat, lng)
	cell, err := h3.LatLngToCell(latLng, resolution)
	if err != nil {
		return 0
	}
	return cell
}

// CellToLatLng returns the center coordinates of an H3 cell.
func CellToLatLng(cell h3.Cell) (lat, lng float64) {
	latLng, err := cell.LatLng()
	if err != nil {
		return 0, 0
	}
	return latLng.Lat, latLng.Lng
}

// CellToString converts an H3 cell to its hex string representation.
func CellToString(cell h3.Cell) string {
	return cell.String()
}

// QueryCacheCell returns the H3 cell string used to key cached incident
// queries at the given location.
func QueryCacheCell(lat, lng float64) string {
	return LatLngToCell(lat, lng, H3ResolutionQueryCache).String()
}

// GetNeighborCells returns the immediate neighbors of a cell (k=1 ring excluding center).
func GetNeighborCells(cell h3.Cell) []h3.Cell {
	ring, err := cell.GridDisk(1)
	if err != nil {
		return nil
	}
	neighbors := make([]h3.Cell, 0, len(ring)-1)
	for _, c := range ring {
		if c != cell {
			neighbors = append(neighbors, c)
		}
	}
	return neighbors
}
