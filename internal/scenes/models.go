package scenes

import (
	"time"

	"github.com/gurbanow/traffic-map/internal/traffic"
)

// Incident overlays always render with the same stroke; the style is not
// configurable per overlay.
const (
	OverlayStrokeWidthPx = 8
	OverlayStrokeColor   = "#E60000B4"
)

// Viewport describes the visible map area of a scene
type Viewport struct {
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
	Zoom            float64 `json:"zoom"`
	WidthPx         int     `json:"width_px"`
	HeightPx        int     `json:"height_px"`
}

// Layers holds the visibility of the traffic layers
type Layers struct {
	Flow      bool `json:"flow"`
	Incidents bool `json:"incidents"`
}

// Overlay is a rendered incident polyline. All overlays share the fixed stroke.
type Overlay struct {
	IncidentID  string               `json:"incident_id"`
	Description string               `json:"description"`
	Severity    string               `json:"severity"`
	Polyline    []traffic.Coordinate `json:"polyline"`
	StrokeColor string               `json:"stroke_color"`
	StrokeWidth int                  `json:"stroke_width"`
	AddedAt     time.Time            `json:"added_at"`
}

// Scene is one viewer's map state
type Scene struct {
	ID        string             `json:"id"`
	Viewport  Viewport           `json:"viewport"`
	Layers    Layers             `json:"layers"`
	Overlays  map[string]Overlay `json:"overlays"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewOverlay builds an overlay for an incident with the fixed stroke style
func NewOverlay(incident traffic.Incident) Overlay {
	return Overlay{
		IncidentID:  incident.ID,
		Description: incident.Description,
		Severity:    incident.Severity,
		Polyline:    incident.Polyline,
		StrokeColor: OverlayStrokeColor,
		StrokeWidth: OverlayStrokeWidthPx,
		AddedAt:     time.Now(),
	}
}

// QuerySummary is the outcome of a tap-triggered incident query.
// NearestDescription is the literal "nil" when no incident was found.
type QuerySummary struct {
	IncidentCount         int     `json:"incident_count"`
	NearestDescription    string  `json:"nearest_description"`
	NearestDistanceMeters float64 `json:"nearest_distance_meters,omitempty"`
	Provider              string  `json:"provider,omitempty"`
	CacheHit              bool    `json:"cache_hit,omitempty"`
}

// TapResult reports what a tap did. Taps outside the viewport convert to
// nothing and leave the scene untouched.
type TapResult struct {
	Queried  bool                `json:"queried"`
	Center   *traffic.Coordinate `json:"center,omitempty"`
	Summary  *QuerySummary       `json:"summary,omitempty"`
	Overlays int                 `json:"overlays"`
}
