package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/pkg/httpclient"
	"github.com/gurbanow/traffic-map/pkg/logger"
)

const (
	hereTrafficBaseURL   = "https://traffic.ls.hereapi.com/traffic/6.3"
	hereGeocodingBaseURL = "https://geocode.search.hereapi.com/v1"
)

// HEREEngine implements Engine for the HERE traffic API
type HEREEngine struct {
	apiKey        string
	trafficClient *httpclient.Client
	geocodeClient *httpclient.Client
}

// NewHEREEngine creates a new HERE traffic engine
func NewHEREEngine(config EngineConfig) *HEREEngine {
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	trafficURL := config.BaseURL
	if trafficURL == "" {
		trafficURL = hereTrafficBaseURL
	}

	return &HEREEngine{
		apiKey:        config.APIKey,
		trafficClient: httpclient.NewClient(trafficURL, time.Duration(timeout)*time.Second, httpclient.WithDefaultRetry()),
		geocodeClient: httpclient.NewClient(hereGeocodingBaseURL, time.Duration(timeout)*time.Second),
	}
}

// Name returns the provider name
func (h *HEREEngine) Name() Provider {
	return ProviderHERE
}

// HealthCheck verifies the API key is valid
func (h *HEREEngine) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("apiKey", h.apiKey)
	params.Set("q", "Berlin")
	params.Set("limit", "1")

	resp, err := h.geocodeClient.Get(ctx, "/geocode?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("HERE health check failed: %w", err)
	}

	var result struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp, &result); err == nil && result.Error != "" {
		return fmt.Errorf("HERE API error: %s", result.Error)
	}

	return nil
}

// QueryIncidents returns incidents within the query radius
func (h *HEREEngine) QueryIncidents(ctx context.Context, query *IncidentQuery) (*IncidentResult, error) {
	radius := query.RadiusMeters
	if radius <= 0 {
		radius = 1000
	}

	params := url.Values{}
	params.Set("apiKey", h.apiKey)
	params.Set("prox", fmt.Sprintf("%f,%f,%d", query.Center.Latitude, query.Center.Longitude, radius))
	params.Set("criticality", "minor,major,critical")

	logger.Debug("HERE incidents request", zap.String("params", params.Encode()))

	resp, err := h.trafficClient.Get(ctx, "/incidents.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("HERE incidents request failed: %w", err)
	}

	var hereResp hereIncidentsResponse
	if err := json.Unmarshal(resp, &hereResp); err != nil {
		return nil, fmt.Errorf("failed to parse incidents response: %w", err)
	}

	return h.convertIncidentsResponse(&hereResp), nil
}

// QueryFlow returns traffic flow conditions within the query radius
func (h *HEREEngine) QueryFlow(ctx context.Context, query *FlowQuery) (*FlowResult, error) {
	radius := query.RadiusMeters
	if radius <= 0 {
		radius = 5000
	}

	params := url.Values{}
	params.Set("apiKey", h.apiKey)
	params.Set("responseattributes", "shape")
	params.Set("prox", fmt.Sprintf("%f,%f,%d", query.Center.Latitude, query.Center.Longitude, radius))

	resp, err := h.trafficClient.Get(ctx, "/flow.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("HERE flow request failed: %w", err)
	}

	var hereResp hereFlowResponse
	if err := json.Unmarshal(resp, &hereResp); err != nil {
		return nil, fmt.Errorf("failed to parse flow response: %w", err)
	}

	return h.convertFlowResponse(&hereResp), nil
}

func (h *HEREEngine) convertIncidentsResponse(resp *hereIncidentsResponse) *IncidentResult {
	incidents := make([]Incident, 0)

	if resp.TrafficItems != nil {
		for _, ti := range resp.TrafficItems.TrafficItem {
			incident := Incident{
				ID:          strconv.Itoa(ti.TrafficItemID),
				Type:        ti.TrafficItemTypeDesc,
				Description: ti.TrafficItemDescription.Value,
				UpdatedAt:   time.Now(),
			}

			switch ti.Criticality.ID {
			case "0", "1":
				incident.Severity = SeverityMinor
			case "2":
				incident.Severity = SeverityModerate
			case "3":
				incident.Severity = SeverityMajor
			default:
				incident.Severity = SeverityCritical
			}

			// Build the affected geometry from origin plus downstream points
			if ti.Location.Geoloc.Origin != nil {
				incident.Location = Coordinate{
					Latitude:  ti.Location.Geoloc.Origin.Latitude,
					Longitude: ti.Location.Geoloc.Origin.Longitude,
				}
				incident.Polyline = append(incident.Polyline, incident.Location)
			}
			for _, to := range ti.Location.Geoloc.To {
				incident.Polyline = append(incident.Polyline, Coordinate{
					Latitude:  to.Latitude,
					Longitude: to.Longitude,
				})
			}

			if ti.StartTime != "" {
				if t, err := time.Parse(time.RFC3339, ti.StartTime); err == nil {
					incident.StartTime = &t
				}
			}
			if ti.EndTime != "" {
				if t, err := time.Parse(time.RFC3339, ti.EndTime); err == nil {
					incident.EndTime = &t
				}
			}

			incident.RoadClosed = ti.TrafficItemTypeDesc == "ROAD_CLOSURE"

			incidents = append(incidents, incident)
		}
	}

	return &IncidentResult{
		Incidents: incidents,
		UpdatedAt: time.Now(),
		Provider:  ProviderHERE,
	}
}

func (h *HEREEngine) convertFlowResponse(resp *hereFlowResponse) *FlowResult {
	segments := make([]FlowSegment, 0)

	for _, rws := range resp.RWS {
		for _, road := range rws.RW {
			for _, fis := range road.FIS {
				for _, flow := range fis.FI {
					if len(flow.CF) == 0 {
						continue
					}
					cf := flow.CF[0]
					segments = append(segments, FlowSegment{
						RoadName:         road.DE,
						CurrentSpeedKmh:  cf.SU,
						FreeFlowSpeedKmh: cf.FF,
						JamFactor:        cf.JF,
						Level:            flowLevelFromJamFactor(cf.JF),
					})
				}
			}
		}
	}

	overallLevel := FlowFree
	if len(segments) > 0 {
		var totalJam float64
		for _, s := range segments {
			totalJam += s.JamFactor
		}
		overallLevel = flowLevelFromJamFactor(totalJam / float64(len(segments)))
	}

	return &FlowResult{
		Segments:     segments,
		OverallLevel: overallLevel,
		UpdatedAt:    time.Now(),
		Provider:     ProviderHERE,
	}
}

// HERE API response structures

type hereIncidentsResponse struct {
	TrafficItems *hereTrafficItems `json:"TRAFFIC_ITEMS"`
}

type hereTrafficItems struct {
	TrafficItem []hereTrafficItem `json:"TRAFFIC_ITEM"`
}

type hereTrafficItem struct {
	TrafficItemID          int                    `json:"TRAFFIC_ITEM_ID"`
	TrafficItemTypeDesc    string                 `json:"TRAFFIC_ITEM_TYPE_DESC"`
	TrafficItemDescription hereTrafficDescription `json:"TRAFFIC_ITEM_DESCRIPTION"`
	Location               hereTrafficLocation    `json:"LOCATION"`
	Criticality            hereCriticality        `json:"CRITICALITY"`
	StartTime              string                 `json:"START_TIME"`
	EndTime                string                 `json:"END_TIME"`
}

type hereTrafficDescription struct {
	Value string `json:"value"`
}

type hereTrafficLocation struct {
	Geoloc hereGeoloc `json:"GEOLOC"`
}

type hereGeoloc struct {
	Origin *hereGeoPoint  `json:"ORIGIN"`
	To     []hereGeoPoint `json:"TO"`
}

type hereGeoPoint struct {
	Latitude  float64 `json:"LATITUDE"`
	Longitude float64 `json:"LONGITUDE"`
}

type hereCriticality struct {
	ID          string `json:"ID"`
	Description string `json:"DESCRIPTION"`
}

type hereFlowResponse struct {
	RWS []hereRWS `json:"RWS"`
}

type hereRWS struct {
	RW []hereRW `json:"RW"`
}

type hereRW struct {
	DE  string    `json:"DE"` // Description
	FIS []hereFIS `json:"FIS"`
}

type hereFIS struct {
	FI []hereFI `json:"FI"`
}

type hereFI struct {
	CF []hereCF `json:"CF"` // Current flow
}

type hereCF struct {
	SP float64 `json:"SP"` // Speed (capped)
	SU float64 `json:"SU"` // Speed (uncapped)
	FF float64 `json:"FF"` // Free flow speed
	JF float64 `json:"JF"` // Jam factor (0-10)
	CN float64 `json:"CN"` // Confidence
}
