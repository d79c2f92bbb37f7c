package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/pkg/httpclient"
	"github.com/gurbanow/traffic-map/pkg/logger"
	"github.com/gurbanow/traffic-map/pkg/middleware"
	"github.com/gurbanow/traffic-map/pkg/validation"
)

// Default viewport for sessions launched without explicit coordinates
const (
	defaultCenterLatitude  = 52.530932
	defaultCenterLongitude = 13.384915
	defaultZoom            = 14.0
)

// SceneClient creates scenes on the scenes service
type SceneClient interface {
	CreateScene(ctx context.Context, req *validation.CreateSceneRequest) (*RemoteScene, error)
}

// RemoteScene is the slice of the scenes service response the launcher needs
type RemoteScene struct {
	ID       string `json:"id"`
	Viewport struct {
		CenterLatitude  float64 `json:"center_latitude"`
		CenterLongitude float64 `json:"center_longitude"`
		Zoom            float64 `json:"zoom"`
	} `json:"viewport"`
}

// LaunchResult is everything a viewer needs to start displaying traffic
type LaunchResult struct {
	SceneID      string  `json:"scene_id"`
	SessionToken string  `json:"session_token"`
	CenterLat    float64 `json:"center_latitude"`
	CenterLng    float64 `json:"center_longitude"`
	Zoom         float64 `json:"zoom"`
}

// Service starts viewer sessions. Launching always succeeds into a scene; the
// start screen has no conditional paths.
type Service struct {
	scenes        SceneClient
	sessionSecret string
	sessionTTL    time.Duration
}

// NewService creates the launcher service
func NewService(scenes SceneClient, sessionSecret string, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &Service{
		scenes:        scenes,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
	}
}

// Launch creates a scene for the viewer and mints its session token. Missing
// coordinates fall back to the default viewport.
func (s *Service) Launch(ctx context.Context, req *validation.LaunchRequest) (*LaunchResult, error) {
	createReq := &validation.CreateSceneRequest{
		CenterLatitude:  req.CenterLatitude,
		CenterLongitude: req.CenterLongitude,
		Zoom:            req.Zoom,
	}
	if createReq.CenterLatitude == 0 && createReq.CenterLongitude == 0 {
		createReq.CenterLatitude = defaultCenterLatitude
		createReq.CenterLongitude = defaultCenterLongitude
	}
	if createReq.Zoom == 0 {
		createReq.Zoom = defaultZoom
	}

	scene, err := s.scenes.CreateScene(ctx, createReq)
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}

	token, err := middleware.NewSessionToken(s.sessionSecret, scene.ID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}

	logger.InfoContext(ctx, "viewer session launched",
		zap.String("scene_id", scene.ID),
		zap.Float64("center_lat", scene.Viewport.CenterLatitude),
		zap.Float64("center_lng", scene.Viewport.CenterLongitude),
	)

	return &LaunchResult{
		SceneID:      scene.ID,
		SessionToken: token,
		CenterLat:    scene.Viewport.CenterLatitude,
		CenterLng:    scene.Viewport.CenterLongitude,
		Zoom:         scene.Viewport.Zoom,
	}, nil
}

// HTTPSceneClient calls the scenes service over HTTP. Requests carry a
// short-lived service token signed with the shared session secret, since the
// scenes API only accepts authenticated callers.
type HTTPSceneClient struct {
	client        *httpclient.Client
	sessionSecret string
}

// NewHTTPSceneClient creates a scene client for the given base URL
func NewHTTPSceneClient(baseURL string, timeout time.Duration, sessionSecret string) *HTTPSceneClient {
	return &HTTPSceneClient{
		client:        httpclient.NewClient(baseURL, timeout, httpclient.WithDefaultRetry()),
		sessionSecret: sessionSecret,
	}
}

// CreateScene creates a scene via the scenes service API
func (c *HTTPSceneClient) CreateScene(ctx context.Context, req *validation.CreateSceneRequest) (*RemoteScene, error) {
	serviceToken, err := middleware.NewSessionToken(c.sessionSecret, "", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("mint service token: %w", err)
	}

	body, err := c.client.Post(ctx, "/api/v1/scenes", req, map[string]string{
		"Authorization": "Bearer " + serviceToken,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Success bool        `json:"success"`
		Data    RemoteScene `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode scenes response: %w", err)
	}
	if !envelope.Success || envelope.Data.ID == "" {
		return nil, fmt.Errorf("scenes service returned no scene")
	}

	return &envelope.Data, nil
}
