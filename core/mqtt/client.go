// Package mqtt defines how solved plans leave the process.
package mqtt

import (
	"context"
	"time"

	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// PlanMessage is the payload published for a solved plan.
type PlanMessage struct {
	RunID       string                                 `json:"run_id"`
	Timestamp   time.Time                              `json:"timestamp"`
	Source      string                                 `json:"source"`
	Status      lp.Status                              `json:"status"`
	Objective   float64                                `json:"objective"`
	Plan        []model.Entry                          `json:"plan"`
	LaborShadow map[model.Month]optimizer.ShadowPrice  `json:"labor_shadow"`
	AreaShadow  map[model.SiteID]optimizer.ShadowPrice `json:"area_shadow"`
}

// NewPlanMessage builds the payload for res.
func NewPlanMessage(runID, source string, res *optimizer.Result) PlanMessage {
	return PlanMessage{
		RunID:       runID,
		Timestamp:   time.Now().UTC(),
		Source:      source,
		Status:      res.Status,
		Objective:   res.Objective,
		Plan:        res.Plan(0),
		LaborShadow: res.LaborShadow,
		AreaShadow:  res.AreaShadow,
	}
}

// Publisher delivers plan messages to a broker.
type Publisher interface {
	PublishPlan(ctx context.Context, msg PlanMessage) error
}

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) PublishPlan(context.Context, PlanMessage) error { return nil }
