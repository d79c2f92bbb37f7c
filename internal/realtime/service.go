package realtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/pkg/logger"
	ws "github.com/gurbanow/traffic-map/pkg/websocket"
)

// Message types exchanged with viewers
const (
	msgJoinScene  = "join_scene"
	msgLeaveScene = "leave_scene"
	msgJoined     = "scene_joined"
	msgLeft       = "scene_left"
	msgError      = "error"
)

// Service wires the WebSocket hub into scene rooms. Viewers join the room of
// the scene they display and receive every update broadcast for it.
type Service struct {
	hub *ws.Hub
}

// NewService creates the realtime service and registers its message handlers
// on the hub.
func NewService(hub *ws.Hub) *Service {
	s := &Service{hub: hub}

	hub.RegisterHandler(msgJoinScene, s.handleJoinScene)
	hub.RegisterHandler(msgLeaveScene, s.handleLeaveScene)

	return s
}

// BroadcastToScene pushes an update to every viewer of a scene
func (s *Service) BroadcastToScene(sceneID, msgType string, data map[string]interface{}) {
	s.hub.SendToScene(sceneID, &ws.Message{
		Type:      msgType,
		SceneID:   sceneID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// SceneViewerCount returns how many viewers currently display a scene
func (s *Service) SceneViewerCount(sceneID string) int {
	return len(s.hub.GetClientsInScene(sceneID))
}

// Stats reports hub-wide connection counts
func (s *Service) Stats() map[string]int {
	return map[string]int{
		"clients": s.hub.GetClientCount(),
		"scenes":  s.hub.GetSceneCount(),
	}
}

func (s *Service) handleJoinScene(client *ws.Client, msg *ws.Message) {
	sceneID := msg.SceneID
	if sceneID == "" {
		if id, ok := msg.Data["scene_id"].(string); ok {
			sceneID = id
		}
	}
	if sceneID == "" {
		client.SendMessage(&ws.Message{
			Type:      msgError,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"message": "scene_id is required"},
		})
		return
	}

	// A viewer displays one scene at a time
	if current := client.GetScene(); current != "" && current != sceneID {
		s.hub.RemoveClientFromScene(client.ID, current)
	}

	s.hub.AddClientToScene(client.ID, sceneID)

	client.SendMessage(&ws.Message{
		Type:      msgJoined,
		SceneID:   sceneID,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"viewers": s.SceneViewerCount(sceneID)},
	})

	logger.Debug("viewer joined scene",
		zap.String("session_id", client.ID),
		zap.String("scene_id", sceneID),
	)
}

func (s *Service) handleLeaveScene(client *ws.Client, msg *ws.Message) {
	sceneID := client.GetScene()
	if sceneID == "" {
		return
	}

	s.hub.RemoveClientFromScene(client.ID, sceneID)

	client.SendMessage(&ws.Message{
		Type:      msgLeft,
		SceneID:   sceneID,
		Timestamp: time.Now(),
	})
}
