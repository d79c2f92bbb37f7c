package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/gurbanow/traffic-map/pkg/common"
	ws "github.com/gurbanow/traffic-map/pkg/websocket"
)

// Handler exposes the WebSocket endpoint and connection stats
type Handler struct {
	service       *Service
	hub           *ws.Hub
	sessionSecret string
}

// NewHandler creates a new realtime handler
func NewHandler(service *Service, hub *ws.Hub, sessionSecret string) *Handler {
	return &Handler{service: service, hub: hub, sessionSecret: sessionSecret}
}

// RegisterRoutes registers the realtime routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.Connect)
	rg.GET("/ws/stats", h.Stats)
}

// Connect upgrades the request to a WebSocket connection. The session token
// is validated before the upgrade.
func (h *Handler) Connect(c *gin.Context) {
	ws.HandleWebSocket(c, h.hub, h.sessionSecret)
}

// Stats returns hub-wide connection counts
func (h *Handler) Stats(c *gin.Context) {
	common.SuccessResponse(c, h.service.Stats())
}
