package scenes

import (
	"math"

	"github.com/gurbanow/traffic-map/internal/traffic"
)

// Web Mercator constants. Latitudes beyond the mercator limit cannot be
// projected and taps resolving there are treated as out of bounds.
const (
	tileSizePx       = 256.0
	mercatorLatLimit = 85.05112878
	defaultViewportW = 1080
	defaultViewportH = 1920
	defaultZoom      = 13.0
)

// ViewToGeo converts view pixel coordinates (relative to the viewport's top
// left corner) to geo coordinates. ok is false when the tap lies outside the
// viewport or resolves outside the projectable world; callers treat that as
// a no-op.
func ViewToGeo(v Viewport, x, y float64) (traffic.Coordinate, bool) {
	if v.WidthPx <= 0 || v.HeightPx <= 0 {
		return traffic.Coordinate{}, false
	}
	if x < 0 || y < 0 || x > float64(v.WidthPx) || y > float64(v.HeightPx) {
		return traffic.Coordinate{}, false
	}

	worldSize := tileSizePx * math.Pow(2, v.Zoom)

	centerX, centerY := project(v.CenterLatitude, v.CenterLongitude, worldSize)

	worldX := centerX - float64(v.WidthPx)/2 + x
	worldY := centerY - float64(v.HeightPx)/2 + y

	if worldX < 0 || worldX > worldSize || worldY < 0 || worldY > worldSize {
		return traffic.Coordinate{}, false
	}

	lat, lng := unproject(worldX, worldY, worldSize)
	if lat < -mercatorLatLimit || lat > mercatorLatLimit {
		return traffic.Coordinate{}, false
	}

	return traffic.Coordinate{Latitude: lat, Longitude: lng}, true
}

// project maps geo coordinates to world pixel coordinates
func project(lat, lng float64, worldSize float64) (x, y float64) {
	x = (lng + 180.0) / 360.0 * worldSize

	sinLat := math.Sin(lat * math.Pi / 180.0)
	y = (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * worldSize
	return x, y
}

// unproject maps world pixel coordinates back to geo coordinates
func unproject(x, y float64, worldSize float64) (lat, lng float64) {
	lng = x/worldSize*360.0 - 180.0

	n := math.Pi - 2.0*math.Pi*y/worldSize
	lat = 180.0 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
	return lat, lng
}

// DefaultViewport returns the viewport used when a scene is created without
// explicit dimensions.
func DefaultViewport(centerLat, centerLng, zoom float64) Viewport {
	if zoom <= 0 {
		zoom = defaultZoom
	}
	return Viewport{
		CenterLatitude:  centerLat,
		CenterLongitude: centerLng,
		Zoom:            zoom,
		WidthPx:         defaultViewportW,
		HeightPx:        defaultViewportH,
	}
}
