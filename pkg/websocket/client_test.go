package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestWebSocketConn dials a throwaway server and returns the client side
// of a real WebSocket connection.
func createTestWebSocketConn(t *testing.T) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
		serverConn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Keep the server side open for the duration of the test
		go func() {
			for {
				if _, _, err := serverConn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	conn := createTestWebSocketConn(t)

	client := NewClient("session-123", conn, hub)

	assert.NotNil(t, client)
	assert.Equal(t, "session-123", client.ID)
	assert.Equal(t, hub, client.Hub)
	assert.NotNil(t, client.Send)
	assert.Equal(t, "", client.SceneID)
}

func TestClientSetScene(t *testing.T) {
	hub := NewHub()
	conn := createTestWebSocketConn(t)
	client := NewClient("session-123", conn, hub)

	assert.Equal(t, "", client.GetScene())

	client.SetScene("scene-789")
	assert.Equal(t, "scene-789", client.GetScene())

	client.SetScene("")
	assert.Equal(t, "", client.GetScene())
}

func TestClientSendMessage(t *testing.T) {
	hub := NewHub()
	conn := createTestWebSocketConn(t)
	client := NewClient("session-123", conn, hub)

	msg := &Message{
		Type: "test",
		Data: map[string]interface{}{
			"key": "value",
		},
		Timestamp: time.Now(),
	}

	client.SendMessage(msg)

	select {
	case receivedMsg := <-client.Send:
		assert.Equal(t, msg.Type, receivedMsg.Type)
		assert.Equal(t, "value", receivedMsg.Data["key"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Message not received in channel")
	}
}

func TestClientConcurrentSceneAccess(t *testing.T) {
	hub := NewHub()
	conn := createTestWebSocketConn(t)
	client := NewClient("session-123", conn, hub)

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			client.SetScene("scene-" + string(rune('a'+id)))
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		go func() {
			_ = client.GetScene()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func TestMessageMarshalJSON(t *testing.T) {
	msg := &Message{
		Type:      "incidents_updated",
		SceneID:   "scene-123",
		SessionID: "session-456",
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]interface{}{
			"count": 3,
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	require.NoError(t, err)

	assert.Equal(t, "incidents_updated", result["type"])
	assert.Equal(t, "scene-123", result["scene_id"])
	assert.Equal(t, "session-456", result["session_id"])
	assert.Equal(t, "2026-01-01T12:00:00Z", result["timestamp"])

	dataMap := result["data"].(map[string]interface{})
	assert.Equal(t, float64(3), dataMap["count"])
}

func TestMessageUnmarshalJSON(t *testing.T) {
	jsonData := `{
		"type": "join_scene",
		"scene_id": "scene-123",
		"session_id": "session-456",
		"timestamp": "2026-01-01T12:00:00Z",
		"data": {
			"key": "value"
		}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)
	require.NoError(t, err)

	assert.Equal(t, "join_scene", msg.Type)
	assert.Equal(t, "scene-123", msg.SceneID)
	assert.Equal(t, "session-456", msg.SessionID)
	assert.Equal(t, "value", msg.Data["key"])

	expectedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, expectedTime, msg.Timestamp)
}

func TestMessageUnmarshalJSONInvalidTimestamp(t *testing.T) {
	jsonData := `{
		"type": "test",
		"timestamp": "invalid-timestamp",
		"data": {}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)

	assert.Error(t, err)
}

func TestMessageUnmarshalJSONEmptyTimestamp(t *testing.T) {
	jsonData := `{
		"type": "test",
		"data": {}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)

	require.NoError(t, err)
	assert.Equal(t, "test", msg.Type)
}

func TestHubSceneRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn1 := createTestWebSocketConn(t)
	conn2 := createTestWebSocketConn(t)
	conn3 := createTestWebSocketConn(t)

	client1 := NewClient("session-1", conn1, hub)
	client2 := NewClient("session-2", conn2, hub)
	client3 := NewClient("session-3", conn3, hub)

	hub.Register <- client1
	hub.Register <- client2
	hub.Register <- client3
	time.Sleep(10 * time.Millisecond)

	hub.AddClientToScene("session-1", "scene-a")
	hub.AddClientToScene("session-2", "scene-a")
	hub.AddClientToScene("session-3", "scene-b")

	assert.Len(t, hub.GetClientsInScene("scene-a"), 2)
	assert.Len(t, hub.GetClientsInScene("scene-b"), 1)
	assert.Equal(t, 2, hub.GetSceneCount())

	// Broadcast to scene-a only
	hub.SendToScene("scene-a", &Message{
		Type: "layers_changed",
		Data: map[string]interface{}{"flow": true},
	})
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, client1.Send, 1)
	assert.Len(t, client2.Send, 1)
	assert.Len(t, client3.Send, 0)

	// Leaving empties the room
	hub.RemoveClientFromScene("session-1", "scene-a")
	hub.RemoveClientFromScene("session-2", "scene-a")
	assert.Len(t, hub.GetClientsInScene("scene-a"), 0)
	assert.Equal(t, 1, hub.GetSceneCount())
}

func TestHubSendToSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn := createTestWebSocketConn(t)
	client := NewClient("session-1", conn, hub)

	hub.Register <- client
	time.Sleep(10 * time.Millisecond)

	hub.SendToSession("session-1", &Message{
		Type: "query_summary",
		Data: map[string]interface{}{"count": 0},
	})

	select {
	case msg := <-client.Send:
		assert.Equal(t, "query_summary", msg.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Message not received")
	}
}

func TestHubRegisterHandler(t *testing.T) {
	hub := NewHub()
	handled := make(chan *Message, 1)

	hub.RegisterHandler("join_scene", func(c *Client, m *Message) {
		handled <- m
	})

	conn := createTestWebSocketConn(t)
	client := NewClient("session-1", conn, hub)

	hub.HandleMessage(client, &Message{Type: "join_scene", Data: map[string]interface{}{}})

	select {
	case msg := <-handled:
		assert.Equal(t, "join_scene", msg.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Handler not invoked")
	}
}
