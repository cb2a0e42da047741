package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type CurriculumHandler struct {
	curriculum services.CurriculumService
}

func NewCurriculumHandler(curriculum services.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{curriculum: curriculum}
}

// POST /api/curriculum
func (h *CurriculumHandler) Curriculum(c *gin.Context) {
	var req services.CurriculumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.curriculum.Curriculum(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/quiz
func (h *CurriculumHandler) Quiz(c *gin.Context) {
	var req services.QuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.curriculum.Quiz(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/quiz/analyze
func (h *CurriculumHandler) Analyze(c *gin.Context) {
	var req services.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.curriculum.Analyze(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
