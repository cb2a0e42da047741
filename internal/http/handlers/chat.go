package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type ChatHandler struct {
	log      *logger.Logger
	tutor    services.TutorService
	profiles services.ProfileService
}

func NewChatHandler(log *logger.Logger, tutor services.TutorService, profiles services.ProfileService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), tutor: tutor, profiles: profiles}
}

// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req services.TutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	reply, err := h.tutor.Chat(ctx, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if uid := ctxutil.UserID(ctx); uid != uuid.Nil {
		if err := h.profiles.RecordTutorQuestion(ctx, uid); err != nil {
			h.log.Warn("tutor quest progress failed", "user_id", uid, "error", err)
		}
	}
	response.RespondOK(c, gin.H{"reply": reply})
}
