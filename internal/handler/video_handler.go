package handler

import (
	"errors"
	"net/http"

	"filmbox/internal/services"
	"filmbox/internal/transport/httpdto"
	filmbox_errors "filmbox/pkg/errors"

	"github.com/gin-gonic/gin"
)

type VideoHandler struct {
	service *services.VideoService
}

func NewVideoHandler(service *services.VideoService) *VideoHandler {
	return &VideoHandler{service: service}
}

// Resolve accepts the URL either as a query parameter or a JSON body.
func (h *VideoHandler) Resolve(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		var req httpdto.ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
			return
		}
		rawURL = req.URL
	}
	src, err := h.service.Resolve(rawURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewVideoSourceResponse(src)))
}

func (h *VideoHandler) ResolveFilm(c *gin.Context) {
	filmID := c.Param("id")
	src, err := h.service.ResolveFilm(c.Request.Context(), filmID)
	if err != nil {
		if errors.Is(err, filmbox_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewVideoSourceResponse(src)))
}

func (h *VideoHandler) SetManualLink(c *gin.Context) {
	filmID := c.Param("id")
	var req httpdto.ManualLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	src, err := h.service.SetManualLink(c.Request.Context(), filmID, req.URL, req.Password)
	if err != nil {
		if errors.Is(err, filmbox_errors.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewVideoSourceResponse(src)))
}

func (h *VideoHandler) Playable(c *gin.Context) {
	fileID := c.Param("id")
	if err := h.service.EnsurePlayable(c.Request.Context(), fileID); err != nil {
		switch {
		case errors.Is(err, filmbox_errors.ErrTranscodeNotReady):
			c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"playable": false}))
		case errors.Is(err, filmbox_errors.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid file id", "INVALID_REQUEST"))
		default:
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		}
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"playable": true}))
}
