package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gurbanow/traffic-map/pkg/httpclient"
)

const tomtomBaseURL = "https://api.tomtom.com"

// tomtomIncidentFields selects the GeoJSON fields we consume
const tomtomIncidentFields = "{incidents{type,geometry{type,coordinates},properties{id,iconCategory,magnitudeOfDelay,events{description,code},startTime,endTime,roadNumbers}}}"

// TomTomEngine implements Engine for the TomTom traffic API
type TomTomEngine struct {
	apiKey string
	client *httpclient.Client
}

// NewTomTomEngine creates a new TomTom traffic engine
func NewTomTomEngine(config EngineConfig) *TomTomEngine {
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = tomtomBaseURL
	}

	return &TomTomEngine{
		apiKey: config.APIKey,
		client: httpclient.NewClient(baseURL, time.Duration(timeout)*time.Second, httpclient.WithDefaultRetry()),
	}
}

// Name returns the provider name
func (t *TomTomEngine) Name() Provider {
	return ProviderTomTom
}

// HealthCheck issues a minimal flow request to verify the API key
func (t *TomTomEngine) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("key", t.apiKey)
	params.Set("point", "52.520798,13.409408")

	_, err := t.client.Get(ctx, "/traffic/services/4/flowSegmentData/absolute/10/json?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("TomTom health check failed: %w", err)
	}
	return nil
}

// QueryIncidents returns incidents within the query radius
func (t *TomTomEngine) QueryIncidents(ctx context.Context, query *IncidentQuery) (*IncidentResult, error) {
	radius := query.RadiusMeters
	if radius <= 0 {
		radius = 1000
	}

	params := url.Values{}
	params.Set("key", t.apiKey)
	params.Set("bbox", boundingBox(query.Center, radius))
	params.Set("fields", tomtomIncidentFields)
	params.Set("language", "en-GB")

	resp, err := t.client.Get(ctx, "/traffic/services/5/incidentDetails?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("TomTom incidents request failed: %w", err)
	}

	var ttResp tomtomIncidentsResponse
	if err := json.Unmarshal(resp, &ttResp); err != nil {
		return nil, fmt.Errorf("failed to parse incidents response: %w", err)
	}

	return t.convertIncidentsResponse(&ttResp), nil
}

// QueryFlow returns flow conditions for the road segment nearest the center
func (t *TomTomEngine) QueryFlow(ctx context.Context, query *FlowQuery) (*FlowResult, error) {
	params := url.Values{}
	params.Set("key", t.apiKey)
	params.Set("point", fmt.Sprintf("%f,%f", query.Center.Latitude, query.Center.Longitude))

	resp, err := t.client.Get(ctx, "/traffic/services/4/flowSegmentData/absolute/10/json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("TomTom flow request failed: %w", err)
	}

	var ttResp tomtomFlowResponse
	if err := json.Unmarshal(resp, &ttResp); err != nil {
		return nil, fmt.Errorf("failed to parse flow response: %w", err)
	}

	return t.convertFlowResponse(&ttResp), nil
}

func (t *TomTomEngine) convertIncidentsResponse(resp *tomtomIncidentsResponse) *IncidentResult {
	incidents := make([]Incident, 0, len(resp.Incidents))

	for _, item := range resp.Incidents {
		incident := Incident{
			ID:        item.Properties.ID,
			Type:      tomtomIncidentType(item.Properties.IconCategory),
			UpdatedAt: time.Now(),
		}

		descriptions := make([]string, 0, len(item.Properties.Events))
		for _, ev := range item.Properties.Events {
			if ev.Description != "" {
				descriptions = append(descriptions, ev.Description)
			}
		}
		incident.Description = strings.Join(descriptions, "; ")

		switch item.Properties.MagnitudeOfDelay {
		case 1:
			incident.Severity = SeverityMinor
		case 2:
			incident.Severity = SeverityModerate
		case 3:
			incident.Severity = SeverityMajor
		case 4:
			incident.Severity = SeverityCritical
		default:
			incident.Severity = SeverityMinor
		}

		incident.RoadClosed = item.Properties.IconCategory == 8
		if incident.RoadClosed {
			incident.Severity = SeverityCritical
		}

		// GeoJSON coordinates are [longitude, latitude] pairs
		switch item.Geometry.Type {
		case "Point":
			var point []float64
			if err := json.Unmarshal(item.Geometry.Coordinates, &point); err == nil && len(point) == 2 {
				incident.Location = Coordinate{Latitude: point[1], Longitude: point[0]}
				incident.Polyline = []Coordinate{incident.Location}
			}
		case "LineString":
			var line [][]float64
			if err := json.Unmarshal(item.Geometry.Coordinates, &line); err == nil {
				for _, point := range line {
					if len(point) == 2 {
						incident.Polyline = append(incident.Polyline, Coordinate{
							Latitude:  point[1],
							Longitude: point[0],
						})
					}
				}
				if len(incident.Polyline) > 0 {
					incident.Location = incident.Polyline[0]
				}
			}
		}

		if item.Properties.StartTime != "" {
			if ts, err := time.Parse(time.RFC3339, item.Properties.StartTime); err == nil {
				incident.StartTime = &ts
			}
		}
		if item.Properties.EndTime != "" {
			if ts, err := time.Parse(time.RFC3339, item.Properties.EndTime); err == nil {
				incident.EndTime = &ts
			}
		}

		incidents = append(incidents, incident)
	}

	return &IncidentResult{
		Incidents: incidents,
		UpdatedAt: time.Now(),
		Provider:  ProviderTomTom,
	}
}

func (t *TomTomEngine) convertFlowResponse(resp *tomtomFlowResponse) *FlowResult {
	data := resp.FlowSegmentData

	jamFactor := 0.0
	if data.FreeFlowSpeed > 0 && data.CurrentSpeed >= 0 {
		// Scale the speed drop into the 0-10 jam factor range
		jamFactor = (1 - data.CurrentSpeed/data.FreeFlowSpeed) * 10
		if jamFactor < 0 {
			jamFactor = 0
		}
	}
	if data.RoadClosure {
		jamFactor = 11
	}

	segment := FlowSegment{
		RoadName:         data.FRC,
		CurrentSpeedKmh:  data.CurrentSpeed,
		FreeFlowSpeedKmh: data.FreeFlowSpeed,
		JamFactor:        jamFactor,
		Level:            flowLevelFromJamFactor(jamFactor),
	}

	return &FlowResult{
		Segments:     []FlowSegment{segment},
		OverallLevel: segment.Level,
		UpdatedAt:    time.Now(),
		Provider:     ProviderTomTom,
	}
}

// boundingBox builds a minLon,minLat,maxLon,maxLat box around a center point
func boundingBox(center Coordinate, radiusMeters int) string {
	latDelta := float64(radiusMeters) / 111320.0
	lonDelta := latDelta
	if cosLat := math.Cos(center.Latitude * math.Pi / 180.0); cosLat > 0.01 {
		lonDelta = latDelta / cosLat
	}

	return fmt.Sprintf("%f,%f,%f,%f",
		center.Longitude-lonDelta, center.Latitude-latDelta,
		center.Longitude+lonDelta, center.Latitude+latDelta)
}

func tomtomIncidentType(iconCategory int) string {
	switch iconCategory {
	case 1:
		return "ACCIDENT"
	case 2:
		return "FOG"
	case 3:
		return "DANGEROUS_CONDITIONS"
	case 4:
		return "RAIN"
	case 5:
		return "ICE"
	case 6:
		return "JAM"
	case 7:
		return "LANE_CLOSED"
	case 8:
		return "ROAD_CLOSURE"
	case 9:
		return "ROAD_WORKS"
	case 10:
		return "WIND"
	case 11:
		return "FLOODING"
	case 14:
		return "BROKEN_DOWN_VEHICLE"
	default:
		return "UNKNOWN"
	}
}

// TomTom API response structures

type tomtomIncidentsResponse struct {
	Incidents []tomtomIncident `json:"incidents"`
}

type tomtomIncident struct {
	Type       string                   `json:"type"`
	Geometry   tomtomGeometry           `json:"geometry"`
	Properties tomtomIncidentProperties `json:"properties"`
}

type tomtomGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type tomtomIncidentProperties struct {
	ID               string        `json:"id"`
	IconCategory     int           `json:"iconCategory"`
	MagnitudeOfDelay int           `json:"magnitudeOfDelay"`
	Events           []tomtomEvent `json:"events"`
	StartTime        string        `json:"startTime"`
	EndTime          string        `json:"endTime"`
	RoadNumbers      []string      `json:"roadNumbers"`
}

type tomtomEvent struct {
	Description string `json:"description"`
	Code        int    `json:"code"`
}

type tomtomFlowResponse struct {
	FlowSegmentData tomtomFlowSegmentData `json:"flowSegmentData"`
}

type tomtomFlowSegmentData struct {
	FRC                 string  `json:"frc"`
	CurrentSpeed        float64 `json:"currentSpeed"`
	FreeFlowSpeed       float64 `json:"freeFlowSpeed"`
	CurrentTravelTime   float64 `json:"currentTravelTime"`
	FreeFlowTravelTime  float64 `json:"freeFlowTravelTime"`
	Confidence          float64 `json:"confidence"`
	RoadClosure         bool    `json:"roadClosure"`
}
