package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
	"notebook-backend/internal/service"
	"notebook-backend/internal/utils"
	"notebook-backend/pkg/logger"
)

// ChatHandler serves the streaming chat and content generation endpoints.
type ChatHandler struct {
	chatService *service.ChatService
	cfg         config.ServerConfig
}

func NewChatHandler(chatService *service.ChatService, cfg config.ServerConfig) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		cfg:         cfg,
	}
}

func (h *ChatHandler) Register(api *gin.RouterGroup) {
	api.POST("/chat/stream", h.StreamChat)
	api.POST("/generate/:kind/stream", h.StreamContent)
}

func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := h.streamContext(c)
	defer cancel()

	deltas, errs := h.chatService.StreamChat(ctx, req)
	h.relay(c, deltas, errs, logrus.Fields{
		"notebook": req.NotebookID,
		"messages": len(req.Messages),
		"sources":  len(req.Sources),
	})
}

func (h *ChatHandler) StreamContent(c *gin.Context) {
	var req model.ContentRequest
	// An empty body is allowed: kind comes from the path and sources from the notebook.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	req.Kind = model.ContentKind(c.Param("kind"))

	ctx, cancel := h.streamContext(c)
	defer cancel()

	deltas, errs := h.chatService.StreamContent(ctx, req)
	h.relay(c, deltas, errs, logrus.Fields{
		"kind":     req.Kind,
		"notebook": req.NotebookID,
		"sources":  len(req.Sources),
	})
}

func (h *ChatHandler) streamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.cfg.StreamTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.cfg.StreamTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// relay waits for the first delta before committing to a 200 event stream,
// so validation and model start-up errors still get a JSON status. Once
// streaming, errors are sent as an error event followed by [DONE].
func (h *ChatHandler) relay(c *gin.Context, deltas <-chan string, errs <-chan error, fields logrus.Fields) {
	log := logger.WithFields(fields)
	start := time.Now()

	first, ok := <-deltas
	if !ok {
		if err := <-errs; err != nil {
			log.WithField("error", err).Warn("stream failed before first delta")
			respondError(c, err)
			return
		}
	}

	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	stop := h.heartbeat(sse)
	defer stop()

	count := 0
	if ok {
		if err := sse.WriteDelta(first); err != nil {
			log.WithField("error", err).Warn("client went away")
			return
		}
		count++
	}

	for delta := range deltas {
		if err := sse.WriteDelta(delta); err != nil {
			log.WithField("error", err).Warn("client went away")
			return
		}
		count++
	}

	if err := <-errs; err != nil {
		log.WithField("error", err).Warn("stream ended with error")
		sse.WriteError(err.Error())
	}
	sse.Close()
	log.WithFields(logrus.Fields{"deltas": count, "elapsed": time.Since(start).Round(time.Millisecond)}).Info("stream complete")
}

// heartbeat writes keep-alive comments until the returned stop is called.
func (h *ChatHandler) heartbeat(sse *utils.SSEWriter) func() {
	if h.cfg.HeartbeatInterval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ticker.C:
				if err := sse.Comment(fmt.Sprintf("ping %d", time.Now().Unix())); err != nil {
					logger.Warnf("Heartbeat failed: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
		wg.Wait()
	}
}
