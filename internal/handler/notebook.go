package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notebook-backend/internal/model"
	"notebook-backend/internal/service"
)

type NotebookHandler struct {
	notebooks *service.NotebookService
}

func NewNotebookHandler(notebooks *service.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

func (h *NotebookHandler) Register(api *gin.RouterGroup) {
	nb := api.Group("/notebooks")
	{
		nb.POST("", h.CreateNotebook)
		nb.GET("", h.ListNotebooks)
		nb.GET("/:id", h.GetNotebook)
		nb.PUT("/:id", h.RenameNotebook)
		nb.DELETE("/:id", h.DeleteNotebook)
		nb.POST("/:id/sources", h.AddSource)
		nb.DELETE("/:id/sources/:source_id", h.RemoveSource)
		nb.GET("/:id/messages", h.GetMessages)
	}
}

func (h *NotebookHandler) CreateNotebook(c *gin.Context) {
	var req model.CreateNotebookRequest
	// An empty body is allowed and gets the default title.
	_ = c.ShouldBindJSON(&req)

	notebook, err := h.notebooks.CreateNotebook(req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notebook)
}

func (h *NotebookHandler) ListNotebooks(c *gin.Context) {
	notebooks, err := h.notebooks.ListNotebooks()
	if err != nil {
		respondError(c, err)
		return
	}

	summaries := make([]model.NotebookResponse, 0, len(notebooks))
	for _, n := range notebooks {
		summaries = append(summaries, n.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"notebooks": summaries})
}

func (h *NotebookHandler) GetNotebook(c *gin.Context) {
	notebook, err := h.notebooks.GetNotebook(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notebook)
}

func (h *NotebookHandler) RenameNotebook(c *gin.Context) {
	var req model.UpdateNotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	notebook, err := h.notebooks.RenameNotebook(c.Param("id"), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notebook.Summary())
}

func (h *NotebookHandler) DeleteNotebook(c *gin.Context) {
	if err := h.notebooks.DeleteNotebook(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notebook deleted successfully"})
}

func (h *NotebookHandler) AddSource(c *gin.Context) {
	var req model.AddSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	source, err := h.notebooks.AddSource(c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, source)
}

func (h *NotebookHandler) RemoveSource(c *gin.Context) {
	if err := h.notebooks.RemoveSource(c.Param("id"), c.Param("source_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Source removed successfully"})
}

func (h *NotebookHandler) GetMessages(c *gin.Context) {
	notebookID := c.Param("id")

	messages, err := h.notebooks.Messages(notebookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notebook_id": notebookID,
		"messages":    messages,
	})
}
