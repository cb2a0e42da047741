package learning

// CurriculumLesson is one lesson outline inside a unit.
type CurriculumLesson struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type CurriculumUnit struct {
	Title      string             `json:"title"`
	Objectives []string           `json:"objectives"`
	Lessons    []CurriculumLesson `json:"lessons"`
}

type Curriculum struct {
	Subject  string           `json:"subject"`
	Grade    string           `json:"grade"`
	Units    []CurriculumUnit `json:"units"`
	Fallback bool             `json:"fallback,omitempty"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

type Quiz struct {
	Subject   string         `json:"subject"`
	Topic     string         `json:"topic"`
	Questions []QuizQuestion `json:"questions"`
	Fallback  bool           `json:"fallback,omitempty"`
}

type QuizAnalysis struct {
	Score      int      `json:"score"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	Feedback   string   `json:"feedback"`
	WeakTopics []string `json:"weak_topics"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// Valid reports whether every question has four options and an in-range answer.
func (q *Quiz) Valid() bool {
	if q == nil || len(q.Questions) == 0 {
		return false
	}
	for _, qq := range q.Questions {
		if qq.Question == "" || len(qq.Options) != 4 || qq.AnswerIndex < 0 || qq.AnswerIndex >= len(qq.Options) {
			return false
		}
	}
	return true
}

func (c *Curriculum) Valid() bool {
	return c != nil && len(c.Units) > 0 && c.Units[0].Title != ""
}
