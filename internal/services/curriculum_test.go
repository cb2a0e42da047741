package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const validQuizJSON = "```json\n" + `{"subject":"Science","topic":"Plants","questions":[
{"question":"What do plants need for photosynthesis?","options":["Sunlight","Sand","Salt","Smoke"],"answer_index":0,"explanation":"Light powers it."},
{"question":"Which part absorbs water?","options":["Leaf","Root","Flower","Seed"],"answer_index":1,"explanation":"Roots absorb water."}]}` + "\n```"

func TestQuizFromModel(t *testing.T) {
	ai := &fakeAI{jsonOut: validQuizJSON}
	cs := NewCurriculumService(logger.Nop(), ai, content.MustLoad())

	quiz, err := cs.Quiz(context.Background(), QuizRequest{Subject: "Science", Topic: "Plants", Count: 1})
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if quiz.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("questions not trimmed to count: %d", len(quiz.Questions))
	}
}

func TestQuizFallback(t *testing.T) {
	tests := []struct {
		name string
		ai   *fakeAI
	}{
		{name: "quota", ai: &fakeAI{err: gemini.ErrQuotaExhausted}},
		{name: "upstream", ai: &fakeAI{err: errors.New("gemini http 500")}},
		{name: "unparsable", ai: &fakeAI{jsonOut: "not json"}},
		{name: "invalid shape", ai: &fakeAI{jsonOut: `{"questions":[{"question":"q","options":["a","b"],"answer_index":0}]}`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			catalog := content.MustLoad()
			cs := NewCurriculumService(logger.Nop(), tc.ai, catalog)
			quiz, err := cs.Quiz(context.Background(), QuizRequest{Subject: "Maths", Topic: "Fractions"})
			if err != nil {
				t.Fatalf("quiz: %v", err)
			}
			if !quiz.Fallback || !quiz.Valid() {
				t.Fatalf("expected valid fallback quiz, got %+v", quiz)
			}
			if catalog.FallbackQuiz.Fallback {
				t.Fatalf("catalog fallback mutated")
			}
		})
	}
}

func TestQuizValidation(t *testing.T) {
	cs := NewCurriculumService(logger.Nop(), &fakeAI{}, content.MustLoad())
	for _, count := range []int{-1, 21} {
		_, err := cs.Quiz(context.Background(), QuizRequest{Subject: "a", Topic: "b", Count: count})
		if ae, ok := apierr.As(err); !ok || ae.Status != http.StatusBadRequest {
			t.Fatalf("count %d: expected 400, got %v", count, err)
		}
	}
}

func TestNotConfiguredWinsOverFallback(t *testing.T) {
	cs := NewCurriculumService(logger.Nop(), nil, content.MustLoad())
	_, err := cs.Curriculum(context.Background(), CurriculumRequest{Subject: "Science", Grade: "5"})
	if ae, ok := apierr.As(err); !ok || ae.Code != "not_configured" {
		t.Fatalf("expected not_configured, got %v", err)
	}
}

func TestCurriculumFallbackAndSuccess(t *testing.T) {
	cs := NewCurriculumService(logger.Nop(), &fakeAI{err: gemini.ErrQuotaExhausted}, content.MustLoad())
	cur, err := cs.Curriculum(context.Background(), CurriculumRequest{Subject: "Science", Grade: "5"})
	if err != nil || !cur.Fallback || !cur.Valid() {
		t.Fatalf("fallback curriculum: %+v %v", cur, err)
	}

	ai := &fakeAI{jsonOut: `{"units":[{"title":"Living things","objectives":["classify"],"lessons":[{"title":"Animals","summary":"s"}]}]}`}
	cs = NewCurriculumService(logger.Nop(), ai, content.MustLoad())
	cur, err = cs.Curriculum(context.Background(), CurriculumRequest{Subject: "Science", Grade: "5"})
	if err != nil || cur.Fallback {
		t.Fatalf("curriculum: %+v %v", cur, err)
	}
	if cur.Subject != "Science" || cur.Grade != "5" {
		t.Fatalf("defaults not filled: %+v", cur)
	}
}

func TestScoreQuiz(t *testing.T) {
	qs := []types.QuizQuestion{{AnswerIndex: 0}, {AnswerIndex: 1}, {AnswerIndex: 2}}
	a := ScoreQuiz(qs, []int{0, 1, 3})
	if a.Score != 2 || a.Total != 3 || a.Percentage != 66.67 {
		t.Fatalf("analysis: %+v", a)
	}
}

func TestAnalyze(t *testing.T) {
	qs := []types.QuizQuestion{
		{Question: "1+1", Options: []string{"1", "2", "3", "4"}, AnswerIndex: 1},
		{Question: "2+2", Options: []string{"1", "2", "3", "4"}, AnswerIndex: 3},
	}

	ai := &fakeAI{jsonOut: `{"feedback":"Well done.","weak_topics":["addition","a","b","c"]}`}
	cs := NewCurriculumService(logger.Nop(), ai, content.MustLoad())
	a, err := cs.Analyze(context.Background(), AnalyzeRequest{Subject: "Maths", Questions: qs, Answers: []int{1, 0}})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.Score != 1 || a.Percentage != 50 || a.Feedback != "Well done." || len(a.WeakTopics) != 3 || a.Fallback {
		t.Fatalf("analysis: %+v", a)
	}

	cs = NewCurriculumService(logger.Nop(), &fakeAI{err: gemini.ErrQuotaExhausted}, content.MustLoad())
	a, err = cs.Analyze(context.Background(), AnalyzeRequest{Questions: qs, Answers: []int{1, 3}})
	if err != nil || !a.Fallback || a.Score != 2 || a.Feedback == "" {
		t.Fatalf("fallback analysis: %+v %v", a, err)
	}

	_, err = cs.Analyze(context.Background(), AnalyzeRequest{Questions: qs, Answers: []int{1}})
	if ae, ok := apierr.As(err); !ok || ae.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for answer mismatch, got %v", err)
	}
}
