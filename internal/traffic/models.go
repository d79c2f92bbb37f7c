package traffic

import "time"

// Provider identifies a traffic data provider
type Provider string

const (
	ProviderHERE   Provider = "here"
	ProviderTomTom Provider = "tomtom"
)

// Severity levels for incidents
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeverityMajor    = "major"
	SeverityCritical = "critical"
)

// FlowLevel represents congestion severity on a road segment
type FlowLevel string

const (
	FlowFree     FlowLevel = "free_flow"
	FlowLight    FlowLevel = "light"
	FlowModerate FlowLevel = "moderate"
	FlowHeavy    FlowLevel = "heavy"
	FlowSevere   FlowLevel = "severe"
	FlowBlocked  FlowLevel = "blocked"
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Incident is a single traffic incident with its affected road geometry
type Incident struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Severity    string       `json:"severity"`
	Location    Coordinate   `json:"location"`
	Polyline    []Coordinate `json:"polyline,omitempty"`
	RoadClosed  bool         `json:"road_closed"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IncidentQuery asks for incidents around a center point
type IncidentQuery struct {
	Center       Coordinate `json:"center"`
	RadiusMeters int        `json:"radius_meters"`
}

// IncidentResult is the outcome of an incident query
type IncidentResult struct {
	Incidents []Incident `json:"incidents"`
	UpdatedAt time.Time  `json:"updated_at"`
	Provider  Provider   `json:"provider"`
	CacheHit  bool       `json:"cache_hit,omitempty"`
}

// FlowQuery asks for traffic flow around a center point
type FlowQuery struct {
	Center       Coordinate `json:"center"`
	RadiusMeters int        `json:"radius_meters"`
}

// FlowSegment describes current conditions on one road segment
type FlowSegment struct {
	RoadName         string    `json:"road_name"`
	CurrentSpeedKmh  float64   `json:"current_speed_kmh"`
	FreeFlowSpeedKmh float64   `json:"free_flow_speed_kmh"`
	JamFactor        float64   `json:"jam_factor"`
	Level            FlowLevel `json:"level"`
}

// FlowResult is the outcome of a flow query
type FlowResult struct {
	Segments     []FlowSegment `json:"segments"`
	OverallLevel FlowLevel     `json:"overall_level"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Provider     Provider      `json:"provider"`
	CacheHit     bool          `json:"cache_hit,omitempty"`
}

// flowLevelFromJamFactor maps a HERE-style 0-10 jam factor to a level
func flowLevelFromJamFactor(jf float64) FlowLevel {
	switch {
	case jf <= 2:
		return FlowFree
	case jf <= 4:
		return FlowLight
	case jf <= 6:
		return FlowModerate
	case jf <= 8:
		return FlowHeavy
	case jf <= 10:
		return FlowSevere
	default:
		return FlowBlocked
	}
}
