package launcher

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gurbanow/traffic-map/pkg/common"
	"github.com/gurbanow/traffic-map/pkg/validation"
)

// startPage is the static start screen. Its only action launches a viewer
// session; there are no conditional paths.
const startPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Traffic Map</title>
  <style>
    body { margin: 0; font-family: sans-serif; display: flex; align-items: center;
           justify-content: center; height: 100vh; background: #1b1d22; color: #fff; }
    main { text-align: center; }
    h1 { font-weight: 300; letter-spacing: 0.05em; }
    button { font-size: 1.1rem; padding: 0.8rem 2.4rem; border: none; border-radius: 4px;
             background: #00afaa; color: #fff; cursor: pointer; }
  </style>
</head>
<body>
  <main>
    <h1>Traffic Map</h1>
    <button onclick="launch()">View Traffic</button>
  </main>
  <script>
    async function launch() {
      const res = await fetch('/launch', { method: 'POST', headers: { 'Content-Type': 'application/json' }, body: '{}' });
      const body = await res.json();
      const d = body.data;
      window.location = '/viewer?scene=' + d.scene_id + '&token=' + d.session_token;
    }
  </script>
</body>
</html>
`

// Handler serves the start screen and the launch endpoint
type Handler struct {
	service *Service
}

// NewHandler creates a new launcher handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the launcher routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.StartScreen)
	r.POST("/launch", h.Launch)
}

// StartScreen serves the static start page
func (h *Handler) StartScreen(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(startPage))
}

// Launch creates a scene and returns the viewer session
func (h *Handler) Launch(c *gin.Context) {
	var req validation.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Launch(c.Request.Context(), &req)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadGateway, "failed to launch viewer session")
		return
	}

	common.CreatedResponse(c, result)
}
