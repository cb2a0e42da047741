package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type LessonHandler struct {
	lessons  services.LessonService
	profiles services.ProfileService
}

func NewLessonHandler(lessons services.LessonService, profiles services.ProfileService) *LessonHandler {
	return &LessonHandler{lessons: lessons, profiles: profiles}
}

// GET /api/subjects
func (h *LessonHandler) Subjects(c *gin.Context) {
	response.RespondOK(c, gin.H{"subjects": h.lessons.Subjects()})
}

// GET /api/lessons?subject=math&q=fractions
func (h *LessonHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"lessons": h.lessons.List(c.Query("subject"), c.Query("q"))})
}

// GET /api/lessons/:id
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.lessons.Get(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lesson": lesson})
}

// POST /api/lessons/:id/complete
func (h *LessonHandler) Complete(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.profiles.CompleteLesson(ctx, ctxutil.UserID(ctx), c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
