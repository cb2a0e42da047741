package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type StoreHandler struct {
	stores services.StoreService
}

func NewStoreHandler(stores services.StoreService) *StoreHandler {
	return &StoreHandler{stores: stores}
}

// POST /api/stores/search
func (h *StoreHandler) Search(c *gin.Context) {
	var req services.StoreSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.stores.Search(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/rewards/:id/stores?address=...
func (h *StoreHandler) ForReward(c *gin.Context) {
	res, err := h.stores.ForReward(c.Request.Context(), c.Param("id"), c.Query("address"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
