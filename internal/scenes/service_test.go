package scenes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gurbanow/traffic-map/internal/traffic"
	"github.com/gurbanow/traffic-map/pkg/eventbus"
	"github.com/gurbanow/traffic-map/pkg/validation"
)

// mockRepository is a testify mock of the scene repository
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, scene *Scene) error {
	args := m.Called(ctx, scene)
	return args.Error(0)
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Scene, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Scene), args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, scene *Scene) error {
	args := m.Called(ctx, scene)
	return args.Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) AppendEvent(ctx context.Context, sceneID, event string) error {
	args := m.Called(ctx, sceneID, event)
	return args.Error(0)
}

func (m *mockRepository) Events(ctx context.Context, sceneID string) ([]string, error) {
	args := m.Called(ctx, sceneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// mockTraffic is a testify mock of the traffic provider
type mockTraffic struct {
	mock.Mock
}

func (m *mockTraffic) QueryIncidents(ctx context.Context, query *traffic.IncidentQuery) (*traffic.IncidentResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traffic.IncidentResult), args.Error(1)
}

func (m *mockTraffic) QueryFlow(ctx context.Context, query *traffic.FlowQuery) (*traffic.FlowResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*traffic.FlowResult), args.Error(1)
}

// mockBroadcaster records scene broadcasts
type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) BroadcastToScene(sceneID, msgType string, data map[string]interface{}) {
	m.Called(sceneID, msgType, data)
}

// mockPublisher records bus publishes
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

func testScene() *Scene {
	now := time.Now()
	return &Scene{
		ID:        "scene-1",
		Viewport:  testViewport(),
		Layers:    Layers{Flow: true, Incidents: true},
		Overlays:  make(map[string]Overlay),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateScene(t *testing.T) {
	// Arrange
	repo := new(mockRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*scenes.Scene")).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	// Act
	scene, err := svc.CreateScene(context.Background(), &validation.CreateSceneRequest{
		CenterLatitude:  37.7749,
		CenterLongitude: -122.4194,
		Zoom:            14,
	})

	// Assert - both layers start enabled and the overlay set starts empty
	require.NoError(t, err)
	assert.NotEmpty(t, scene.ID)
	assert.True(t, scene.Layers.Flow)
	assert.True(t, scene.Layers.Incidents)
	assert.Empty(t, scene.Overlays)
	assert.Equal(t, 14.0, scene.Viewport.Zoom)
	repo.AssertExpectations(t)
}

func TestCreateScene_ExplicitDimensions(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	scene, err := svc.CreateScene(context.Background(), &validation.CreateSceneRequest{
		CenterLatitude:  37.7749,
		CenterLongitude: -122.4194,
		WidthPx:         800,
		HeightPx:        600,
	})

	require.NoError(t, err)
	assert.Equal(t, 800, scene.Viewport.WidthPx)
	assert.Equal(t, 600, scene.Viewport.HeightPx)
}

func TestSetLayers_DisablingIncidentsClearsOverlays(t *testing.T) {
	// Arrange - a scene with two overlays already rendered
	scene := testScene()
	scene.Overlays["inc-1"] = Overlay{IncidentID: "inc-1"}
	scene.Overlays["inc-2"] = Overlay{IncidentID: "inc-2"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	broadcaster := new(mockBroadcaster)
	broadcaster.On("BroadcastToScene", "scene-1", "layers_changed", mock.Anything).Return()

	svc := NewService(repo, new(mockTraffic), broadcaster, nil, 0)

	// Act
	off := false
	updated, err := svc.SetLayers(context.Background(), "scene-1", &validation.SetLayersRequest{Incidents: &off})

	// Assert
	require.NoError(t, err)
	assert.False(t, updated.Layers.Incidents)
	assert.Empty(t, updated.Overlays)
	broadcaster.AssertExpectations(t)
}

func TestSetLayers_DisablingIncidentsTwiceIsIdempotent(t *testing.T) {
	// Arrange - the incidents layer is already off and no overlays remain
	scene := testScene()
	scene.Layers.Incidents = false

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	// Act
	off := false
	updated, err := svc.SetLayers(context.Background(), "scene-1", &validation.SetLayersRequest{Incidents: &off})

	// Assert - same outcome as the first toggle
	require.NoError(t, err)
	assert.False(t, updated.Layers.Incidents)
	assert.Empty(t, updated.Overlays)
}

func TestSetLayers_FlowToggleLeavesOverlaysAlone(t *testing.T) {
	scene := testScene()
	scene.Overlays["inc-1"] = Overlay{IncidentID: "inc-1"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	off := false
	updated, err := svc.SetLayers(context.Background(), "scene-1", &validation.SetLayersRequest{Flow: &off})

	require.NoError(t, err)
	assert.False(t, updated.Layers.Flow)
	assert.Len(t, updated.Overlays, 1)
}

func TestTap_QueriesAroundTapLocation(t *testing.T) {
	// Arrange
	scene := testScene()

	incident := traffic.Incident{
		ID:          "inc-1",
		Description: "Accident on Mission St",
		Severity:    traffic.SeverityMajor,
		Polyline: []traffic.Coordinate{
			{Latitude: 37.775, Longitude: -122.419},
		},
	}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryIncidents", mock.Anything, mock.MatchedBy(func(q *traffic.IncidentQuery) bool {
		return q.RadiusMeters == 1000
	})).Return(&traffic.IncidentResult{
		Incidents: []traffic.Incident{incident},
		Provider:  traffic.ProviderHERE,
	}, nil)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act - tap the viewport center
	result, err := svc.Tap(context.Background(), "scene-1", 540, 960)

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Queried)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 1, result.Summary.IncidentCount)
	assert.Equal(t, "Accident on Mission St", result.Summary.NearestDescription)
	assert.Equal(t, 1, result.Overlays)

	// The overlay carries the fixed stroke style
	overlay := scene.Overlays["inc-1"]
	assert.Equal(t, OverlayStrokeColor, overlay.StrokeColor)
	assert.Equal(t, OverlayStrokeWidthPx, overlay.StrokeWidth)
	trafficSvc.AssertExpectations(t)
}

func TestTap_OutsideViewportIsNoOp(t *testing.T) {
	// Arrange
	scene := testScene()
	scene.Overlays["inc-1"] = Overlay{IncidentID: "inc-1"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)

	trafficSvc := new(mockTraffic)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act - tap beyond the right edge
	result, err := svc.Tap(context.Background(), "scene-1", 5000, 100)

	// Assert - no query, no mutation, no error
	require.NoError(t, err)
	assert.False(t, result.Queried)
	assert.Nil(t, result.Summary)
	assert.Equal(t, 1, result.Overlays)
	trafficSvc.AssertNotCalled(t, "QueryIncidents", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTap_QueryFailureLeavesOverlaysUntouched(t *testing.T) {
	// Arrange
	scene := testScene()
	scene.Overlays["existing"] = Overlay{IncidentID: "existing"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryIncidents", mock.Anything, mock.Anything).Return(nil, errors.New("all traffic engines failed"))

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act
	result, err := svc.Tap(context.Background(), "scene-1", 540, 960)

	// Assert - the error propagates and nothing was persisted
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Len(t, scene.Overlays, 1)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTap_NoIncidentsReportsNilNearest(t *testing.T) {
	// Arrange
	scene := testScene()

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryIncidents", mock.Anything, mock.Anything).Return(&traffic.IncidentResult{
		Incidents: []traffic.Incident{},
		Provider:  traffic.ProviderHERE,
	}, nil)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act
	result, err := svc.Tap(context.Background(), "scene-1", 540, 960)

	// Assert - the summary reports the literal "nil" description
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.IncidentCount)
	assert.Equal(t, "nil", result.Summary.NearestDescription)
	assert.Zero(t, result.Summary.NearestDistanceMeters)
}

func TestTap_RepeatedIncidentsDoNotDuplicateOverlays(t *testing.T) {
	// Arrange - the scene already shows the incident a second tap returns
	scene := testScene()

	incident := traffic.Incident{ID: "inc-1", Description: "Stalled vehicle"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryIncidents", mock.Anything, mock.Anything).Return(&traffic.IncidentResult{
		Incidents: []traffic.Incident{incident},
	}, nil)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act - tap twice
	_, err := svc.Tap(context.Background(), "scene-1", 540, 960)
	require.NoError(t, err)
	result, err := svc.Tap(context.Background(), "scene-1", 540, 960)

	// Assert - the overlay set is keyed by incident ID
	require.NoError(t, err)
	assert.Equal(t, 1, result.Overlays)
}

func TestTap_PublishesQueryEvent(t *testing.T) {
	scene := testScene()

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryIncidents", mock.Anything, mock.Anything).Return(&traffic.IncidentResult{}, nil)

	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, eventbus.SubjectIncidentsQueried, mock.Anything).Return(nil)

	svc := NewService(repo, trafficSvc, nil, publisher, 0)

	_, err := svc.Tap(context.Background(), "scene-1", 540, 960)

	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestClearOverlays(t *testing.T) {
	// Arrange
	scene := testScene()
	scene.Overlays["inc-1"] = Overlay{IncidentID: "inc-1"}
	scene.Overlays["inc-2"] = Overlay{IncidentID: "inc-2"}

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	// Act
	updated, err := svc.ClearOverlays(context.Background(), "scene-1")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, updated.Overlays)
}

func TestClearOverlays_EmptySceneStillSucceeds(t *testing.T) {
	scene := testScene()

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	repo.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	updated, err := svc.ClearOverlays(context.Background(), "scene-1")

	require.NoError(t, err)
	assert.Empty(t, updated.Overlays)
}

func TestFlow_DisabledLayerReturnsEmptyResult(t *testing.T) {
	// Arrange
	scene := testScene()
	scene.Layers.Flow = false

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)

	trafficSvc := new(mockTraffic)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	// Act
	result, err := svc.Flow(context.Background(), "scene-1")

	// Assert - no upstream call when the layer is off
	require.NoError(t, err)
	assert.Empty(t, result.Segments)
	trafficSvc.AssertNotCalled(t, "QueryFlow", mock.Anything, mock.Anything)
}

func TestFlow_QueriesViewportCenter(t *testing.T) {
	scene := testScene()

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)

	trafficSvc := new(mockTraffic)
	trafficSvc.On("QueryFlow", mock.Anything, mock.MatchedBy(func(q *traffic.FlowQuery) bool {
		return q.Center.Latitude == scene.Viewport.CenterLatitude &&
			q.Center.Longitude == scene.Viewport.CenterLongitude
	})).Return(&traffic.FlowResult{OverallLevel: traffic.FlowModerate}, nil)

	svc := NewService(repo, trafficSvc, nil, nil, 0)

	result, err := svc.Flow(context.Background(), "scene-1")

	require.NoError(t, err)
	assert.Equal(t, traffic.FlowModerate, result.OverallLevel)
	trafficSvc.AssertExpectations(t)
}

func TestDeleteScene(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Delete", mock.Anything, "scene-1").Return(nil)

	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, eventbus.SubjectSceneDestroyed, mock.Anything).Return(nil)

	svc := NewService(repo, new(mockTraffic), nil, publisher, 0)

	err := svc.DeleteScene(context.Background(), "scene-1")

	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHistory(t *testing.T) {
	scene := testScene()

	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "scene-1").Return(scene, nil)
	repo.On("Events", mock.Anything, "scene-1").Return([]string{"scene created"}, nil)

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	events, err := svc.History(context.Background(), "scene-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"scene created"}, events)
}

func TestHistory_UnknownScene(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Get", mock.Anything, "missing").Return(nil, errors.New("scene not found"))

	svc := NewService(repo, new(mockTraffic), nil, nil, 0)

	_, err := svc.History(context.Background(), "missing")

	require.Error(t, err)
	repo.AssertNotCalled(t, "Events", mock.Anything, mock.Anything)
}
