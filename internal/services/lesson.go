package services

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// LessonSummary is a catalog lesson without its body.
type LessonSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Grade   int    `json:"grade"`
	Minutes int    `json:"minutes"`
	Coins   int64  `json:"coins"`
	XP      int64  `json:"xp"`
}

type SubjectSummary struct {
	content.Subject
	LessonCount int `json:"lesson_count"`
}

type LessonService interface {
	Subjects() []SubjectSummary
	// List filters by subject and, when query is set, ranks by fuzzy title match.
	List(subject, query string) []LessonSummary
	Get(id string) (*content.Lesson, error)
}

type lessonService struct {
	log     *logger.Logger
	catalog *content.Catalog
}

func NewLessonService(log *logger.Logger, catalog *content.Catalog) LessonService {
	return &lessonService{log: log.With("service", "LessonService"), catalog: catalog}
}

func (ls *lessonService) Subjects() []SubjectSummary {
	totals := ls.catalog.SubjectTotals()
	out := make([]SubjectSummary, 0, len(ls.catalog.Subjects))
	for _, s := range ls.catalog.Subjects {
		out = append(out, SubjectSummary{Subject: s, LessonCount: totals[s.ID]})
	}
	return out
}

type lessonTitles []content.Lesson

func (l lessonTitles) String(i int) string { return l[i].Title }
func (l lessonTitles) Len() int            { return len(l) }

func (ls *lessonService) List(subject, query string) []LessonSummary {
	lessons := ls.catalog.LessonsForSubject(strings.TrimSpace(subject))
	query = strings.TrimSpace(query)
	if query == "" {
		return summarize(lessons)
	}
	matches := fuzzy.FindFrom(query, lessonTitles(lessons))
	ranked := make([]content.Lesson, 0, len(matches))
	for _, m := range matches {
		ranked = append(ranked, lessons[m.Index])
	}
	return summarize(ranked)
}

func (ls *lessonService) Get(id string) (*content.Lesson, error) {
	l, ok := ls.catalog.Lesson(strings.TrimSpace(id))
	if !ok {
		return nil, apierr.NotFound("lesson_not_found", "lesson %q not found", id)
	}
	return l, nil
}

func summarize(lessons []content.Lesson) []LessonSummary {
	out := make([]LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, LessonSummary{
			ID:      l.ID,
			Subject: l.Subject,
			Title:   l.Title,
			Summary: l.Summary,
			Grade:   l.Grade,
			Minutes: l.Minutes,
			Coins:   l.Coins,
			XP:      l.XP,
		})
	}
	return out
}
