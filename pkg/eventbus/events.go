package eventbus

import "time"

// SceneCreatedData is emitted when a new scene is created.
type SceneCreatedData struct {
	SceneID         string    `json:"scene_id"`
	CenterLatitude  float64   `json:"center_latitude"`
	CenterLongitude float64   `json:"center_longitude"`
	Zoom            float64   `json:"zoom"`
	CreatedAt       time.Time `json:"created_at"`
}

// SceneDestroyedData is emitted when a scene expires or is destroyed.
type SceneDestroyedData struct {
	SceneID     string    `json:"scene_id"`
	DestroyedAt time.Time `json:"destroyed_at"`
}

// LayersChangedData is emitted when a scene's traffic layers are toggled.
type LayersChangedData struct {
	SceneID   string    `json:"scene_id"`
	Flow      bool      `json:"flow"`
	Incidents bool      `json:"incidents"`
	ChangedAt time.Time `json:"changed_at"`
}

// OverlaysClearedData is emitted when a scene's incident overlays are cleared.
type OverlaysClearedData struct {
	SceneID      string    `json:"scene_id"`
	ClearedCount int       `json:"cleared_count"`
	ClearedAt    time.Time `json:"cleared_at"`
}

// IncidentsQueriedData is emitted after an incident query completes.
type IncidentsQueriedData struct {
	SceneID         string    `json:"scene_id"`
	CenterLatitude  float64   `json:"center_latitude"`
	CenterLongitude float64   `json:"center_longitude"`
	RadiusMeters    int       `json:"radius_meters"`
	IncidentCount   int       `json:"incident_count"`
	Provider        string    `json:"provider"`
	CacheHit        bool      `json:"cache_hit"`
	QueriedAt       time.Time `json:"queried_at"`
}

// ProviderDegradedData is emitted when a traffic provider's circuit opens.
type ProviderDegradedData struct {
	Provider   string    `json:"provider"`
	State      string    `json:"state"`
	DetectedAt time.Time `json:"detected_at"`
}
