package services

import (
	"hash/fnv"
	"strings"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const (
	MaxDistressLevel    = 10
	BannerDistressLevel = 7
	wellnessCrisis      = "crisis"
	wellnessNeutral     = "neutral"
)

type WellnessRequest struct {
	Message       string `json:"message" binding:"required"`
	DistressLevel int    `json:"distress_level"`
	Country       string `json:"country"`
}

type WellnessReply struct {
	Reply         string              `json:"reply"`
	Category      string              `json:"category"`
	DistressLevel int                 `json:"distress_level"`
	ShowBanner    bool                `json:"show_banner"`
	Volunteers    []content.Volunteer `json:"volunteers,omitempty"`
}

// WellnessService is a keyword heuristic companion. It makes no clinical
// judgement; it only decides when to surface human helplines.
type WellnessService interface {
	Respond(req WellnessRequest) (*WellnessReply, error)
}

type wellnessService struct {
	log     *logger.Logger
	catalog *content.Catalog
}

func NewWellnessService(log *logger.Logger, catalog *content.Catalog) WellnessService {
	return &wellnessService{log: log.With("service", "WellnessService"), catalog: catalog}
}

func (ws *wellnessService) Respond(req WellnessRequest) (*WellnessReply, error) {
	msg := strings.ToLower(strings.TrimSpace(req.Message))
	if msg == "" {
		return nil, apierr.BadRequest("invalid_request", "message is required")
	}

	cat := ws.classify(msg)
	level := clampLevel(req.DistressLevel) + cat.Points
	if level > MaxDistressLevel {
		level = MaxDistressLevel
	}

	out := &WellnessReply{
		Reply:         pickReply(cat.Replies, msg),
		Category:      cat.ID,
		DistressLevel: level,
		ShowBanner:    level >= BannerDistressLevel || cat.ID == wellnessCrisis,
	}
	if out.ShowBanner {
		out.Volunteers = ws.catalog.VolunteersFor(req.Country)
		ws.log.Warn("Wellness banner shown", "category", cat.ID, "distress_level", level)
	}
	return out, nil
}

// classify returns the first category, in catalog order, with a phrase contained in msg.
func (ws *wellnessService) classify(msg string) content.WellnessCategory {
	var neutral content.WellnessCategory
	for _, c := range ws.catalog.WellnessCategories {
		if c.ID == wellnessNeutral {
			neutral = c
			continue
		}
		for _, k := range c.Keywords {
			if k != "" && strings.Contains(msg, k) {
				return c
			}
		}
	}
	return neutral
}

func clampLevel(l int) int {
	if l < 0 {
		return 0
	}
	if l > MaxDistressLevel {
		return MaxDistressLevel
	}
	return l
}

func pickReply(replies []string, msg string) string {
	if len(replies) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(msg))
	return replies[h.Sum32()%uint32(len(replies))]
}
