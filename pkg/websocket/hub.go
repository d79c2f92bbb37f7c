package websocket

import (
	"log"
	"sync"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active viewer connections and broadcasts messages
type Hub struct {
	// Registered clients by session ID
	clients map[string]*Client

	// Clients grouped by scene ID
	scenes map[string]map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to specific targets
	Broadcast chan *BroadcastMessage

	// Message handlers by message type
	handlers map[string]MessageHandler

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	Target   string   // "session", "scene", "all"
	TargetID string   // Session ID or Scene ID
	Message  *Message // Message to send
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		scenes:     make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("WebSocket Hub started")
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Remove existing client with same ID
	if existingClient, ok := h.clients[client.ID]; ok {
		close(existingClient.Send)
	}

	h.clients[client.ID] = client
	log.Printf("Client registered: %s", client.ID)
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)

		// Remove from scene room if in one
		sceneID := client.GetScene()
		if sceneID != "" {
			if scene, ok := h.scenes[sceneID]; ok {
				delete(scene, client.ID)
				if len(scene) == 0 {
					delete(h.scenes, sceneID)
				}
			}
		}

		close(client.Send)
		log.Printf("Client unregistered: %s", client.ID)
	}
}

// broadcastMessage sends a message to target clients
func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case "session":
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}

	case "scene":
		if scene, ok := h.scenes[broadcast.TargetID]; ok {
			for _, client := range scene {
				client.SendMessage(broadcast.Message)
			}
		}

	case "all":
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
	}
}

// HandleMessage routes incoming messages to appropriate handlers
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if exists {
		handler(client, msg)
	} else {
		log.Printf("No handler for message type: %s", msg.Type)
	}
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// AddClientToScene adds a client to a scene room
func (h *Hub) AddClientToScene(clientID, sceneID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	if _, ok := h.scenes[sceneID]; !ok {
		h.scenes[sceneID] = make(map[string]*Client)
	}

	h.scenes[sceneID][clientID] = client
	client.SetScene(sceneID)

	log.Printf("Client %s joined scene %s", clientID, sceneID)
}

// RemoveClientFromScene removes a client from a scene room
func (h *Hub) RemoveClientFromScene(clientID, sceneID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if scene, ok := h.scenes[sceneID]; ok {
		delete(scene, clientID)
		if len(scene) == 0 {
			delete(h.scenes, sceneID)
		}
	}

	if client, ok := h.clients[clientID]; ok {
		client.SetScene("")
	}

	log.Printf("Client %s left scene %s", clientID, sceneID)
}

// SendToSession sends a message to a specific viewer session
func (h *Hub) SendToSession(sessionID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "session",
		TargetID: sessionID,
		Message:  msg,
	}
}

// SendToScene sends a message to all clients viewing a scene
func (h *Hub) SendToScene(sceneID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "scene",
		TargetID: sceneID,
		Message:  msg,
	}
}

// SendToAll broadcasts a message to all connected clients
func (h *Hub) SendToAll(msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:  "all",
		Message: msg,
	}
}

// GetClient returns a client by ID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientsInScene returns all clients viewing a scene
func (h *Hub) GetClientsInScene(sceneID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0)
	if scene, ok := h.scenes[sceneID]; ok {
		for _, client := range scene {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSceneCount returns the number of scenes with at least one viewer
func (h *Hub) GetSceneCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scenes)
}
