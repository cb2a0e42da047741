package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type UserHandler struct {
	profiles services.ProfileService
	rewards  services.RewardService
}

func NewUserHandler(profiles services.ProfileService, rewards services.RewardService) *UserHandler {
	return &UserHandler{profiles: profiles, rewards: rewards}
}

// GET /api/me
func (h *UserHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	profile, err := h.profiles.Get(ctx, ctxutil.UserID(ctx))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// PATCH /api/me/preferences
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	var prefs services.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	profile, err := h.profiles.UpdatePreferences(ctx, ctxutil.UserID(ctx), prefs)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// GET /api/me/redemptions
func (h *UserHandler) Redemptions(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := h.rewards.Redemptions(ctx, ctxutil.UserID(ctx))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"redemptions": items})
}

// GET /api/leaderboard?country=KE&limit=10
func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	entries, err := h.profiles.Leaderboard(c.Request.Context(), strings.TrimSpace(c.Query("country")), limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entries": entries})
}
