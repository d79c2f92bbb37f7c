package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/gurbanow/traffic-map/pkg/websocket"
)

func setupTestService(t *testing.T) (*Service, *ws.Hub) {
	t.Helper()

	hub := ws.NewHub()
	go hub.Run()

	return NewService(hub), hub
}

func registerTestClient(t *testing.T, hub *ws.Hub, id string) *ws.Client {
	t.Helper()

	client := ws.NewClient(id, nil, hub)
	hub.Register <- client

	require.Eventually(t, func() bool {
		_, ok := hub.GetClient(id)
		return ok
	}, time.Second, 10*time.Millisecond)

	return client
}

func receiveMessage(t *testing.T, client *ws.Client) *ws.Message {
	t.Helper()

	select {
	case msg := <-client.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestJoinScene(t *testing.T) {
	// Arrange
	svc, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")

	// Act
	hub.HandleMessage(client, &ws.Message{Type: "join_scene", SceneID: "scene-1"})

	// Assert - the client is in the room and received an ack
	assert.Equal(t, "scene-1", client.GetScene())
	assert.Equal(t, 1, svc.SceneViewerCount("scene-1"))

	msg := receiveMessage(t, client)
	assert.Equal(t, "scene_joined", msg.Type)
	assert.Equal(t, "scene-1", msg.SceneID)
}

func TestJoinScene_SceneIDFromData(t *testing.T) {
	svc, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")

	hub.HandleMessage(client, &ws.Message{
		Type: "join_scene",
		Data: map[string]interface{}{"scene_id": "scene-2"},
	})

	assert.Equal(t, 1, svc.SceneViewerCount("scene-2"))
}

func TestJoinScene_MissingSceneID(t *testing.T) {
	// Arrange
	_, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")

	// Act
	hub.HandleMessage(client, &ws.Message{Type: "join_scene"})

	// Assert
	msg := receiveMessage(t, client)
	assert.Equal(t, "error", msg.Type)
	assert.Empty(t, client.GetScene())
}

func TestJoinScene_SwitchingScenesLeavesOldRoom(t *testing.T) {
	// Arrange
	svc, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")
	hub.HandleMessage(client, &ws.Message{Type: "join_scene", SceneID: "scene-1"})
	receiveMessage(t, client)

	// Act - join a different scene
	hub.HandleMessage(client, &ws.Message{Type: "join_scene", SceneID: "scene-2"})

	// Assert
	assert.Equal(t, 0, svc.SceneViewerCount("scene-1"))
	assert.Equal(t, 1, svc.SceneViewerCount("scene-2"))
	assert.Equal(t, "scene-2", client.GetScene())
}

func TestLeaveScene(t *testing.T) {
	// Arrange
	svc, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")
	hub.HandleMessage(client, &ws.Message{Type: "join_scene", SceneID: "scene-1"})
	receiveMessage(t, client)

	// Act
	hub.HandleMessage(client, &ws.Message{Type: "leave_scene"})

	// Assert
	assert.Equal(t, 0, svc.SceneViewerCount("scene-1"))
	assert.Empty(t, client.GetScene())

	msg := receiveMessage(t, client)
	assert.Equal(t, "scene_left", msg.Type)
}

func TestLeaveScene_NotInASceneIsNoOp(t *testing.T) {
	_, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")

	hub.HandleMessage(client, &ws.Message{Type: "leave_scene"})

	// No ack is sent when there was nothing to leave
	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message: %s", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToScene(t *testing.T) {
	// Arrange - two viewers of the same scene and one of another
	svc, hub := setupTestService(t)
	viewer1 := registerTestClient(t, hub, "session-1")
	viewer2 := registerTestClient(t, hub, "session-2")
	other := registerTestClient(t, hub, "session-3")

	hub.HandleMessage(viewer1, &ws.Message{Type: "join_scene", SceneID: "scene-1"})
	hub.HandleMessage(viewer2, &ws.Message{Type: "join_scene", SceneID: "scene-1"})
	hub.HandleMessage(other, &ws.Message{Type: "join_scene", SceneID: "scene-2"})
	receiveMessage(t, viewer1)
	receiveMessage(t, viewer2)
	receiveMessage(t, other)

	// Act
	svc.BroadcastToScene("scene-1", "incidents_updated", map[string]interface{}{
		"incident_count": 3,
	})

	// Assert - only scene-1 viewers receive the update
	msg1 := receiveMessage(t, viewer1)
	msg2 := receiveMessage(t, viewer2)
	assert.Equal(t, "incidents_updated", msg1.Type)
	assert.Equal(t, "incidents_updated", msg2.Type)

	select {
	case msg := <-other.Send:
		t.Fatalf("unexpected message for other scene: %s", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStats(t *testing.T) {
	svc, hub := setupTestService(t)
	client := registerTestClient(t, hub, "session-1")
	hub.HandleMessage(client, &ws.Message{Type: "join_scene", SceneID: "scene-1"})
	receiveMessage(t, client)

	stats := svc.Stats()

	assert.Equal(t, 1, stats["clients"])
	assert.Equal(t, 1, stats["scenes"])
}
