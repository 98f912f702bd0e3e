package handler

import (
	"errors"
	"net/http"

	"filmbox/internal/services"
	"filmbox/internal/transport/httpdto"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

func (h *UploadHandler) Start(c *gin.Context) {
	filmID := c.Param("id")
	var req httpdto.StartUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.Start(c.Request.Context(), filmID, req.File()); err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	snap, err := h.service.Status(c.Request.Context(), filmID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewUploadStatusResponse(snap)))
}

func (h *UploadHandler) Pause(c *gin.Context) {
	filmID := c.Param("id")
	if err := h.service.Pause(c.Request.Context(), filmID); err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UploadHandler) Resume(c *gin.Context) {
	filmID := c.Param("id")
	var req httpdto.ResumeUploadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
			return
		}
	}
	if err := h.service.Resume(c.Request.Context(), filmID, req.File()); err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UploadHandler) Cancel(c *gin.Context) {
	filmID := c.Param("id")
	if err := h.service.Cancel(c.Request.Context(), filmID); err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UploadHandler) Retry(c *gin.Context) {
	filmID := c.Param("id")
	if err := h.service.Retry(c.Request.Context(), filmID); err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *UploadHandler) Status(c *gin.Context) {
	filmID := c.Param("id")
	snap, err := h.service.Status(c.Request.Context(), filmID)
	if err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewUploadStatusResponse(snap)))
}

func (h *UploadHandler) Live(c *gin.Context) {
	filmID := c.Param("id")
	live, err := h.service.IsLive(c.Request.Context(), filmID)
	if err != nil {
		c.JSON(uploadErrorStatus(err), httpdto.NewErrorResponse(err.Error(), uploadErrorCode(err)))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UploadLiveResponse{Live: live}))
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, filmbox_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, filmbox_errors.ErrInvalidTransition),
		errors.Is(err, filmbox_errors.ErrConflict),
		errors.Is(err, filmbox_errors.ErrSizeMismatch):
		return http.StatusConflict
	case errors.Is(err, filmbox_errors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func uploadErrorCode(err error) string {
	switch {
	case errors.Is(err, filmbox_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, filmbox_errors.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, filmbox_errors.ErrSizeMismatch):
		return "SIZE_MISMATCH"
	case errors.Is(err, filmbox_errors.ErrInvalidInput):
		return "INVALID_REQUEST"
	default:
		return "REQUEST_FAILED"
	}
}
