package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type WellnessHandler struct {
	wellness services.WellnessService
}

func NewWellnessHandler(wellness services.WellnessService) *WellnessHandler {
	return &WellnessHandler{wellness: wellness}
}

// POST /api/wellness/message
func (h *WellnessHandler) Message(c *gin.Context) {
	var req services.WellnessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.wellness.Respond(req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, reply)
}
