package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /api/auth/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := ah.authService.Register(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /api/auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := ah.authService.Login(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
