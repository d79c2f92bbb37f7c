package validation

// Request structs shared by the HTTP handlers, with validation rules

// CreateSceneRequest describes the initial viewport of a new scene
type CreateSceneRequest struct {
	CenterLatitude  float64 `json:"center_latitude" validate:"latitude"`
	CenterLongitude float64 `json:"center_longitude" validate:"longitude"`
	Zoom            float64 `json:"zoom" validate:"omitempty,zoom"`
	WidthPx         int     `json:"width_px" validate:"omitempty,gte=1,lte=8192"`
	HeightPx        int     `json:"height_px" validate:"omitempty,gte=1,lte=8192"`
}

// SetLayersRequest toggles the traffic layers of a scene
type SetLayersRequest struct {
	Flow      *bool `json:"flow" validate:"omitempty"`
	Incidents *bool `json:"incidents" validate:"omitempty"`
}

// TapRequest is a tap in view coordinates, relative to the scene viewport.
// Out-of-viewport taps are not a validation error; the viewport conversion
// treats them as a no-op.
type TapRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IncidentQueryRequest is a direct geo-coordinate incident lookup
type IncidentQueryRequest struct {
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
	RadiusMeters int     `json:"radius_meters" validate:"omitempty,radius_meters"`
}

// LaunchRequest starts a viewer session from the launcher screen
type LaunchRequest struct {
	CenterLatitude  float64 `json:"center_latitude" validate:"omitempty,latitude"`
	CenterLongitude float64 `json:"center_longitude" validate:"omitempty,longitude"`
	Zoom            float64 `json:"zoom" validate:"omitempty,zoom"`
}
