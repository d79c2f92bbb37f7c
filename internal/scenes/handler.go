package scenes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/pkg/common"
	"github.com/gurbanow/traffic-map/pkg/logger"
	"github.com/gurbanow/traffic-map/pkg/validation"
)

// Handler handles HTTP requests for scene operations
type Handler struct {
	service *Service
}

// NewHandler creates a new scene handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all scene routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	scenes := rg.Group("/scenes")
	{
		scenes.POST("", h.CreateScene)
		scenes.GET("/:id", h.GetScene)
		scenes.DELETE("/:id", h.DeleteScene)

		scenes.PUT("/:id/layers", h.SetLayers)
		scenes.POST("/:id/tap", h.Tap)
		scenes.DELETE("/:id/overlays", h.ClearOverlays)

		scenes.GET("/:id/flow", h.Flow)
		scenes.GET("/:id/history", h.History)
	}
}

// CreateScene handles scene creation requests
func (h *Handler) CreateScene(c *gin.Context) {
	var req validation.CreateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	scene, err := h.service.CreateScene(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "failed to create scene")
		return
	}

	common.CreatedResponse(c, scene)
}

// GetScene handles scene lookup requests
func (h *Handler) GetScene(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	scene, err := h.service.GetScene(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "failed to load scene")
		return
	}

	common.SuccessResponse(c, scene)
}

// DeleteScene handles scene removal requests
func (h *Handler) DeleteScene(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	if err := h.service.DeleteScene(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "failed to delete scene")
		return
	}

	common.NoContentResponse(c)
}

// SetLayers handles layer toggle requests
func (h *Handler) SetLayers(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	var req validation.SetLayersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	scene, err := h.service.SetLayers(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err, "failed to set layers")
		return
	}

	common.SuccessResponse(c, scene)
}

// Tap handles tap requests in view coordinates. Taps that resolve outside the
// viewport succeed with queried=false.
func (h *Handler) Tap(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	var req validation.TapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.service.Tap(c.Request.Context(), id, req.X, req.Y)
	if err != nil {
		h.respondError(c, err, "failed to run incident query")
		return
	}

	common.SuccessResponse(c, result)
}

// ClearOverlays handles overlay clearing requests
func (h *Handler) ClearOverlays(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	scene, err := h.service.ClearOverlays(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "failed to clear overlays")
		return
	}

	common.SuccessResponse(c, scene)
}

// Flow handles flow condition requests
func (h *Handler) Flow(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	result, err := h.service.Flow(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "failed to load flow conditions")
		return
	}

	common.SuccessResponse(c, result)
}

// History handles scene event history requests
func (h *Handler) History(c *gin.Context) {
	id := c.Param("id")
	if !validation.ValidateUUID(id) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scene id")
		return
	}

	events, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "failed to load scene history")
		return
	}

	common.SuccessResponse(c, gin.H{"events": events})
}

// respondError maps service errors onto HTTP responses
func (h *Handler) respondError(c *gin.Context, err error, fallbackMsg string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.AppErrorResponse(c, appErr)
		return
	}

	logger.ErrorContext(c.Request.Context(), fallbackMsg, zap.Error(err))
	_ = c.Error(err)
	common.ErrorResponse(c, http.StatusInternalServerError, fallbackMsg)
}
