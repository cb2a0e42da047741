package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const (
	DefaultQuizQuestions = 5
	MaxQuizQuestions     = 20
)

type CurriculumRequest struct {
	Subject string `json:"subject" binding:"required"`
	Grade   string `json:"grade" binding:"required"`
	Country string `json:"country"`
}

type QuizRequest struct {
	Subject string `json:"subject" binding:"required"`
	Topic   string `json:"topic" binding:"required"`
	Grade   string `json:"grade"`
	Count   int    `json:"count"`
}

type AnalyzeRequest struct {
	Subject   string               `json:"subject"`
	Questions []types.QuizQuestion `json:"questions"`
	Answers   []int                `json:"answers"`
}

// CurriculumService generates structured learning content. Model failures
// degrade to the bundled fallback objects marked with fallback=true.
type CurriculumService interface {
	Curriculum(ctx context.Context, req CurriculumRequest) (*types.Curriculum, error)
	Quiz(ctx context.Context, req QuizRequest) (*types.Quiz, error)
	Analyze(ctx context.Context, req AnalyzeRequest) (*types.QuizAnalysis, error)
}

type curriculumService struct {
	log     *logger.Logger
	ai      gemini.Client
	catalog *content.Catalog
}

func NewCurriculumService(log *logger.Logger, ai gemini.Client, catalog *content.Catalog) CurriculumService {
	return &curriculumService{
		log:     log.With("service", "CurriculumService"),
		ai:      ai,
		catalog: catalog,
	}
}

func (cs *curriculumService) requireAI() error {
	if cs.ai == nil {
		return apierr.NotConfigured(fmt.Errorf("curriculum: %w: GEMINI_API_KEY", apperr.ErrNotConfigured))
	}
	return nil
}

func (cs *curriculumService) Curriculum(ctx context.Context, req CurriculumRequest) (*types.Curriculum, error) {
	req.Subject, req.Grade = strings.TrimSpace(req.Subject), strings.TrimSpace(req.Grade)
	if req.Subject == "" || req.Grade == "" {
		return nil, apierr.BadRequest("invalid_request", "subject and grade are required")
	}
	if err := cs.requireAI(); err != nil {
		return nil, err
	}

	var out types.Curriculum
	err := cs.ai.GenerateJSON(ctx, jsonOnlyPolicy, curriculumPrompt(req.Subject, req.Grade, strings.TrimSpace(req.Country)), &out)
	if err == nil && !out.Valid() {
		err = fmt.Errorf("curriculum reply missing units")
	}
	if err != nil {
		cs.log.Warn("Serving fallback curriculum", "subject", req.Subject, "error", err, "quota", gemini.IsQuotaError(err))
		fb := cs.fallbackCurriculum()
		return &fb, nil
	}
	if out.Subject == "" {
		out.Subject = req.Subject
	}
	if out.Grade == "" {
		out.Grade = req.Grade
	}
	out.Fallback = false
	return &out, nil
}

func (cs *curriculumService) Quiz(ctx context.Context, req QuizRequest) (*types.Quiz, error) {
	req.Subject, req.Topic = strings.TrimSpace(req.Subject), strings.TrimSpace(req.Topic)
	if req.Subject == "" || req.Topic == "" {
		return nil, apierr.BadRequest("invalid_request", "subject and topic are required")
	}
	if req.Count == 0 {
		req.Count = DefaultQuizQuestions
	}
	if req.Count < 1 || req.Count > MaxQuizQuestions {
		return nil, apierr.BadRequest("invalid_request", "count must be between 1 and %d", MaxQuizQuestions)
	}
	if err := cs.requireAI(); err != nil {
		return nil, err
	}

	var out types.Quiz
	err := cs.ai.GenerateJSON(ctx, jsonOnlyPolicy, quizPrompt(req.Subject, req.Topic, strings.TrimSpace(req.Grade), req.Count), &out)
	if err == nil && !out.Valid() {
		err = fmt.Errorf("quiz reply failed validation")
	}
	if err != nil {
		cs.log.Warn("Serving fallback quiz", "subject", req.Subject, "topic", req.Topic, "error", err, "quota", gemini.IsQuotaError(err))
		fb := cs.fallbackQuiz()
		return &fb, nil
	}
	if len(out.Questions) > req.Count {
		out.Questions = out.Questions[:req.Count]
	}
	if out.Subject == "" {
		out.Subject = req.Subject
	}
	if out.Topic == "" {
		out.Topic = req.Topic
	}
	out.Fallback = false
	return &out, nil
}

// Analyze scores locally; only the feedback text comes from the model.
func (cs *curriculumService) Analyze(ctx context.Context, req AnalyzeRequest) (*types.QuizAnalysis, error) {
	if len(req.Questions) == 0 {
		return nil, apierr.BadRequest("invalid_request", "questions are required")
	}
	if len(req.Answers) != len(req.Questions) {
		return nil, apierr.BadRequest("invalid_request", "expected %d answers, got %d", len(req.Questions), len(req.Answers))
	}
	if err := cs.requireAI(); err != nil {
		return nil, err
	}

	analysis := ScoreQuiz(req.Questions, req.Answers)
	missed := make([]string, 0, analysis.Total-analysis.Score)
	for i, q := range req.Questions {
		if req.Answers[i] != q.AnswerIndex {
			missed = append(missed, q.Question)
		}
	}
	if len(missed) == 0 {
		missed = append(missed, "none, every answer was correct")
	}

	var reply struct {
		Feedback   string   `json:"feedback"`
		WeakTopics []string `json:"weak_topics"`
	}
	err := cs.ai.GenerateJSON(ctx, jsonOnlyPolicy, analysisPrompt(strings.TrimSpace(req.Subject), missed, analysis.Score, analysis.Total), &reply)
	if err == nil && strings.TrimSpace(reply.Feedback) == "" {
		err = fmt.Errorf("analysis reply missing feedback")
	}
	if err != nil {
		cs.log.Warn("Serving fallback quiz feedback", "subject", req.Subject, "error", err, "quota", gemini.IsQuotaError(err))
		analysis.Feedback = fallbackFeedback(analysis.Percentage)
		analysis.Fallback = true
		return analysis, nil
	}
	analysis.Feedback = strings.TrimSpace(reply.Feedback)
	if len(reply.WeakTopics) > 3 {
		reply.WeakTopics = reply.WeakTopics[:3]
	}
	analysis.WeakTopics = reply.WeakTopics
	if analysis.WeakTopics == nil {
		analysis.WeakTopics = []string{}
	}
	return analysis, nil
}

// ScoreQuiz counts answers equal to each question's answer index.
func ScoreQuiz(questions []types.QuizQuestion, answers []int) *types.QuizAnalysis {
	a := &types.QuizAnalysis{Total: len(questions), WeakTopics: []string{}}
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.AnswerIndex {
			a.Score++
		}
	}
	if a.Total > 0 {
		a.Percentage = math.Round(float64(a.Score)/float64(a.Total)*10000) / 100
	}
	return a
}

func fallbackFeedback(pct float64) string {
	switch {
	case pct >= 80:
		return "Excellent work! You clearly understand this topic. Try a harder quiz to keep challenging yourself."
	case pct >= 50:
		return "Good effort! You got more than half right. Review the questions you missed and try again."
	default:
		return "Keep going! Every mistake is a chance to learn. Read through the lesson again and retry the quiz."
	}
}

func (cs *curriculumService) fallbackQuiz() types.Quiz {
	fb := cs.catalog.FallbackQuiz
	fb.Questions = append([]types.QuizQuestion(nil), fb.Questions...)
	fb.Fallback = true
	return fb
}

func (cs *curriculumService) fallbackCurriculum() types.Curriculum {
	fb := cs.catalog.FallbackCurriculum
	fb.Units = append([]types.CurriculumUnit(nil), fb.Units...)
	fb.Fallback = true
	return fb
}
