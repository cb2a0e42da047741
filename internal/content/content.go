package content

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mwanafrika/mwanafrika-backend/internal/domain/learning"
)

//go:embed data/*.yaml data/*.json
var files embed.FS

type Subject struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type Lesson struct {
	ID      string `yaml:"id" json:"id"`
	Subject string `yaml:"subject" json:"subject"`
	Title   string `yaml:"title" json:"title"`
	Summary string `yaml:"summary" json:"summary"`
	Grade   int    `yaml:"grade" json:"grade"`
	Minutes int    `yaml:"minutes" json:"minutes"`
	Coins   int64  `yaml:"coins" json:"coins"`
	XP      int64  `yaml:"xp" json:"xp"`
	Content string `yaml:"content" json:"content,omitempty"`
}

type QuestTemplate struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Kind   string `yaml:"kind"`
	Total  int    `yaml:"total"`
	Reward int64  `yaml:"reward"`
}

type Reward struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	Cost          int64    `yaml:"cost" json:"cost"`
	Partner       string   `yaml:"partner" json:"partner"`
	Category      string   `yaml:"category" json:"category"`
	StoreKeywords []string `yaml:"store_keywords" json:"store_keywords"`
}

type Volunteer struct {
	Name        string `yaml:"name" json:"name"`
	Country     string `yaml:"country" json:"country"`
	Phone       string `yaml:"phone" json:"phone"`
	Hours       string `yaml:"hours" json:"hours"`
	Description string `yaml:"description" json:"description"`
}

type WellnessCategory struct {
	ID       string   `yaml:"id"`
	Points   int      `yaml:"points"`
	Keywords []string `yaml:"keywords"`
	Replies  []string `yaml:"replies"`
}

// Catalog is the read-only static content bundled into the binary.
type Catalog struct {
	Subjects           []Subject
	Lessons            []Lesson
	DailyQuests        []QuestTemplate
	Rewards            []Reward
	Volunteers         []Volunteer
	WellnessCategories []WellnessCategory

	FallbackQuiz       learning.Quiz
	FallbackCurriculum learning.Curriculum

	lessonsByID map[string]*Lesson
	rewardsByID map[string]*Reward
}

func Load() (*Catalog, error) {
	c := &Catalog{}

	var lessonsDoc struct {
		Subjects    []Subject       `yaml:"subjects"`
		Lessons     []Lesson        `yaml:"lessons"`
		DailyQuests []QuestTemplate `yaml:"daily_quests"`
	}
	if err := decodeYAML("data/lessons.yaml", &lessonsDoc); err != nil {
		return nil, err
	}
	c.Subjects, c.Lessons, c.DailyQuests = lessonsDoc.Subjects, lessonsDoc.Lessons, lessonsDoc.DailyQuests

	var rewardsDoc struct {
		Rewards []Reward `yaml:"rewards"`
	}
	if err := decodeYAML("data/rewards.yaml", &rewardsDoc); err != nil {
		return nil, err
	}
	c.Rewards = rewardsDoc.Rewards

	var volunteersDoc struct {
		Volunteers []Volunteer `yaml:"volunteers"`
	}
	if err := decodeYAML("data/volunteers.yaml", &volunteersDoc); err != nil {
		return nil, err
	}
	c.Volunteers = volunteersDoc.Volunteers

	var wellnessDoc struct {
		Categories []WellnessCategory `yaml:"categories"`
	}
	if err := decodeYAML("data/wellness.yaml", &wellnessDoc); err != nil {
		return nil, err
	}
	c.WellnessCategories = wellnessDoc.Categories

	if err := decodeJSON("data/fallback_quiz.json", &c.FallbackQuiz); err != nil {
		return nil, err
	}
	if err := decodeJSON("data/fallback_curriculum.json", &c.FallbackCurriculum); err != nil {
		return nil, err
	}

	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustLoad panics on a malformed bundle; the content is compiled in, so
// failure is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func decodeYAML(name string, out any) error {
	raw, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func decodeJSON(name string, out any) error {
	raw, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) index() error {
	subjects := make(map[string]bool, len(c.Subjects))
	for _, s := range c.Subjects {
		subjects[s.ID] = true
	}
	c.lessonsByID = make(map[string]*Lesson, len(c.Lessons))
	for i := range c.Lessons {
		l := &c.Lessons[i]
		if _, dup := c.lessonsByID[l.ID]; dup {
			return fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		if !subjects[l.Subject] {
			return fmt.Errorf("lesson %q has unknown subject %q", l.ID, l.Subject)
		}
		c.lessonsByID[l.ID] = l
	}
	c.rewardsByID = make(map[string]*Reward, len(c.Rewards))
	for i := range c.Rewards {
		r := &c.Rewards[i]
		if r.Cost <= 0 {
			return fmt.Errorf("reward %q must have a positive cost", r.ID)
		}
		c.rewardsByID[r.ID] = r
	}
	if len(c.WellnessCategories) == 0 {
		return fmt.Errorf("wellness categories missing")
	}
	for i := range c.WellnessCategories {
		cat := &c.WellnessCategories[i]
		if len(cat.Replies) == 0 {
			return fmt.Errorf("wellness category %q has no replies", cat.ID)
		}
		for j, k := range cat.Keywords {
			cat.Keywords[j] = strings.ToLower(k)
		}
	}
	return nil
}

func (c *Catalog) Lesson(id string) (*Lesson, bool) {
	l, ok := c.lessonsByID[id]
	return l, ok
}

func (c *Catalog) Reward(id string) (*Reward, bool) {
	r, ok := c.rewardsByID[id]
	return r, ok
}

func (c *Catalog) LessonsForSubject(subject string) []Lesson {
	out := []Lesson{}
	for _, l := range c.Lessons {
		if subject == "" || l.Subject == subject {
			out = append(out, l)
		}
	}
	return out
}

// SubjectTotals returns the number of catalog lessons per subject.
func (c *Catalog) SubjectTotals() map[string]int {
	out := make(map[string]int, len(c.Subjects))
	for _, s := range c.Subjects {
		out[s.ID] = 0
	}
	for _, l := range c.Lessons {
		out[l.Subject]++
	}
	return out
}

// VolunteersFor returns volunteers for a country code, or all when none match.
func (c *Catalog) VolunteersFor(country string) []Volunteer {
	country = strings.ToUpper(strings.TrimSpace(country))
	out := []Volunteer{}
	for _, v := range c.Volunteers {
		if country != "" && v.Country == country {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = append(out, c.Volunteers...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}
