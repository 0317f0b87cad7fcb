package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	TelegramID int64   `json:"telegram_id"`
	FullName   string  `json:"full_name"`
	Phone      *string `json:"phone"`
}

func (h *Handler) registerDriver(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	d, err := h.svc.Driver().Register(c.Request.Context(), actorFrom(c), req.TelegramID, req.FullName, req.Phone)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) getDriver(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	d, err := h.svc.Driver().Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
