package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"notebook-backend/internal/config"
	"notebook-backend/internal/live"
	"notebook-backend/internal/model"
	"notebook-backend/internal/player"
	"notebook-backend/internal/service"
	"notebook-backend/pkg/logger"
)

type PresentationHandler struct {
	presentations *service.PresentationService
	playerCfg     config.PlayerConfig
	upgrader      websocket.Upgrader
}

// NewPresentationHandler accepts live connections from the given origins;
// "*" or an empty list accepts any origin.
func NewPresentationHandler(presentations *service.PresentationService, playerCfg config.PlayerConfig, origins []string) *PresentationHandler {
	return &PresentationHandler{
		presentations: presentations,
		playerCfg:     playerCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func (h *PresentationHandler) Register(api *gin.RouterGroup) {
	p := api.Group("/presentations")
	{
		p.POST("", h.Generate)
		p.GET("", h.List)
		p.GET("/:id", h.Get)
		p.GET("/:id/live", h.Live)
	}
}

func (h *PresentationHandler) Generate(c *gin.Context) {
	var req model.PresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.presentations.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PresentationHandler) List(c *gin.Context) {
	list, err := h.presentations.List(c.Query("notebook_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presentations": list})
}

func (h *PresentationHandler) Get(c *gin.Context) {
	p, err := h.presentations.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Live upgrades to a websocket and plays the presentation for the caller.
// ?muted=true starts with narration off.
func (h *PresentationHandler) Live(c *gin.Context) {
	p, err := h.presentations.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	opts := []player.Option{
		player.WithConfig(h.playerCfg),
		player.WithMuted(c.Query("muted") == "true"),
	}
	if err := live.Serve(c.Request.Context(), conn, *p, opts...); err != nil {
		logger.Warnf("Live session for %s: %v", p.ID, err)
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
