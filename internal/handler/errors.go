package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"notebook-backend/internal/model"
	"notebook-backend/internal/service"
	"notebook-backend/internal/storage"
	"notebook-backend/pkg/logger"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoSources),
		errors.Is(err, service.ErrNoMessages),
		errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, storage.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotebookNotFound),
		errors.Is(err, storage.ErrSourceNotFound),
		errors.Is(err, storage.ErrPresentationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrModelOutput):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, model.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
}
