package scenes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/internal/traffic"
	"github.com/gurbanow/traffic-map/pkg/eventbus"
	"github.com/gurbanow/traffic-map/pkg/logger"
	"github.com/gurbanow/traffic-map/pkg/validation"
)

const serviceName = "scenes-service"

// nearestNone is reported when a query returns no incidents
const nearestNone = "nil"

// Service implements the scene operations
type Service struct {
	repo         Repository
	traffic      TrafficProvider
	broadcaster  Broadcaster
	publisher    EventPublisher
	radiusMeters int
}

// NewService creates a scene service. broadcaster and publisher may be nil.
func NewService(repo Repository, trafficProvider TrafficProvider, broadcaster Broadcaster, publisher EventPublisher, radiusMeters int) *Service {
	if radiusMeters <= 0 {
		radiusMeters = 1000
	}
	return &Service{
		repo:         repo,
		traffic:      trafficProvider,
		broadcaster:  broadcaster,
		publisher:    publisher,
		radiusMeters: radiusMeters,
	}
}

// CreateScene builds a new scene with both traffic layers enabled
func (s *Service) CreateScene(ctx context.Context, req *validation.CreateSceneRequest) (*Scene, error) {
	viewport := DefaultViewport(req.CenterLatitude, req.CenterLongitude, req.Zoom)
	if req.WidthPx > 0 {
		viewport.WidthPx = req.WidthPx
	}
	if req.HeightPx > 0 {
		viewport.HeightPx = req.HeightPx
	}

	now := time.Now()
	scene := &Scene{
		ID:       uuid.New().String(),
		Viewport: viewport,
		Layers:   Layers{Flow: true, Incidents: true},
		Overlays: make(map[string]Overlay),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, scene); err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, scene.ID, "scene created")
	s.publishEvent(ctx, eventbus.SubjectSceneCreated, eventbus.SceneCreatedData{
		SceneID:         scene.ID,
		CenterLatitude:  viewport.CenterLatitude,
		CenterLongitude: viewport.CenterLongitude,
		Zoom:            viewport.Zoom,
		CreatedAt:       now,
	})

	logger.InfoContext(ctx, "scene created",
		zap.String("scene_id", scene.ID),
		zap.Float64("center_lat", viewport.CenterLatitude),
		zap.Float64("center_lng", viewport.CenterLongitude),
	)

	return scene, nil
}

// GetScene loads a scene by ID
func (s *Service) GetScene(ctx context.Context, id string) (*Scene, error) {
	return s.repo.Get(ctx, id)
}

// SetLayers toggles the traffic layers. Disabling the incidents layer clears
// the incident overlays; repeating the toggle is a no-op.
func (s *Service) SetLayers(ctx context.Context, id string, req *validation.SetLayersRequest) (*Scene, error) {
	scene, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Flow != nil {
		scene.Layers.Flow = *req.Flow
	}
	if req.Incidents != nil {
		scene.Layers.Incidents = *req.Incidents
		if !*req.Incidents {
			scene.Overlays = make(map[string]Overlay)
		}
	}

	if err := s.repo.Update(ctx, scene); err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, scene.ID, fmt.Sprintf("layers set flow=%t incidents=%t", scene.Layers.Flow, scene.Layers.Incidents))
	s.publishEvent(ctx, eventbus.SubjectLayersChanged, eventbus.LayersChangedData{
		SceneID:   scene.ID,
		Flow:      scene.Layers.Flow,
		Incidents: scene.Layers.Incidents,
		ChangedAt: time.Now(),
	})
	s.broadcast(scene.ID, "layers_changed", map[string]interface{}{
		"flow":      scene.Layers.Flow,
		"incidents": scene.Layers.Incidents,
	})

	return scene, nil
}

// Tap converts a view tap to geo coordinates and runs an incident query
// around it. The query center is scoped to this call; concurrent taps on the
// same scene each query their own location. Out-of-viewport taps do nothing,
// and a failed query leaves the overlay set untouched.
func (s *Service) Tap(ctx context.Context, id string, x, y float64) (*TapResult, error) {
	scene, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	center, ok := ViewToGeo(scene.Viewport, x, y)
	if !ok {
		logger.Debug("tap outside viewport ignored",
			zap.String("scene_id", id),
			zap.Float64("x", x),
			zap.Float64("y", y),
		)
		return &TapResult{Queried: false, Overlays: len(scene.Overlays)}, nil
	}

	query := &traffic.IncidentQuery{Center: center, RadiusMeters: s.radiusMeters}
	result, err := s.traffic.QueryIncidents(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, incident := range result.Incidents {
		scene.Overlays[incident.ID] = NewOverlay(incident)
	}

	summary := &QuerySummary{
		IncidentCount:      len(result.Incidents),
		NearestDescription: nearestNone,
		Provider:           string(result.Provider),
		CacheHit:           result.CacheHit,
	}
	if nearest, distance, found := NearestIncident(result.Incidents, center); found {
		summary.NearestDescription = nearest.Description
		summary.NearestDistanceMeters = distance
	}

	if err := s.repo.Update(ctx, scene); err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, scene.ID, fmt.Sprintf("tap query at %.5f,%.5f found %d incidents", center.Latitude, center.Longitude, summary.IncidentCount))
	s.publishEvent(ctx, eventbus.SubjectIncidentsQueried, eventbus.IncidentsQueriedData{
		SceneID:         scene.ID,
		CenterLatitude:  center.Latitude,
		CenterLongitude: center.Longitude,
		RadiusMeters:    s.radiusMeters,
		IncidentCount:   summary.IncidentCount,
		Provider:        string(result.Provider),
		CacheHit:        result.CacheHit,
		QueriedAt:       time.Now(),
	})
	s.broadcast(scene.ID, "incidents_updated", map[string]interface{}{
		"incident_count":      summary.IncidentCount,
		"nearest_description": summary.NearestDescription,
		"overlays":            len(scene.Overlays),
	})

	logger.InfoContext(ctx, "tap query completed",
		zap.String("scene_id", scene.ID),
		zap.Int("incidents", summary.IncidentCount),
		zap.String("nearest", summary.NearestDescription),
	)

	return &TapResult{
		Queried:  true,
		Center:   &center,
		Summary:  summary,
		Overlays: len(scene.Overlays),
	}, nil
}

// ClearOverlays removes all incident overlays. Clearing an empty scene is a
// no-op that still succeeds.
func (s *Service) ClearOverlays(ctx context.Context, id string) (*Scene, error) {
	scene, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cleared := len(scene.Overlays)
	scene.Overlays = make(map[string]Overlay)

	if err := s.repo.Update(ctx, scene); err != nil {
		return nil, err
	}

	_ = s.repo.AppendEvent(ctx, scene.ID, fmt.Sprintf("overlays cleared (%d)", cleared))
	s.publishEvent(ctx, eventbus.SubjectOverlaysCleared, eventbus.OverlaysClearedData{
		SceneID:      scene.ID,
		ClearedCount: cleared,
		ClearedAt:    time.Now(),
	})
	s.broadcast(scene.ID, "overlays_cleared", map[string]interface{}{
		"cleared_count": cleared,
	})

	return scene, nil
}

// DeleteScene removes a scene entirely
func (s *Service) DeleteScene(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publishEvent(ctx, eventbus.SubjectSceneDestroyed, eventbus.SceneDestroyedData{
		SceneID:     id,
		DestroyedAt: time.Now(),
	})
	return nil
}

// Flow returns current flow conditions around the scene center when the flow
// layer is enabled.
func (s *Service) Flow(ctx context.Context, id string) (*traffic.FlowResult, error) {
	scene, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !scene.Layers.Flow {
		return &traffic.FlowResult{Segments: []traffic.FlowSegment{}, OverallLevel: traffic.FlowFree, UpdatedAt: time.Now()}, nil
	}

	return s.traffic.QueryFlow(ctx, &traffic.FlowQuery{
		Center: traffic.Coordinate{
			Latitude:  scene.Viewport.CenterLatitude,
			Longitude: scene.Viewport.CenterLongitude,
		},
		RadiusMeters: s.radiusMeters,
	})
}

// History returns the scene's recorded mutation events
func (s *Service) History(ctx context.Context, id string) ([]string, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, id)
}

func (s *Service) publishEvent(ctx context.Context, subject string, data interface{}) {
	if s.publisher == nil {
		return
	}

	event, err := eventbus.NewEvent(subject, serviceName, data)
	if err != nil {
		logger.Warn("failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *Service) broadcast(sceneID, msgType string, data map[string]interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToScene(sceneID, msgType, data)
}
