package api

import (
	"bytes"
	"encoding/json"

	"github.com/keilos1/harvestplan/core/model"
	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
)

type siteDTO struct {
	ID      model.SiteID `json:"id"`
	AreaCap float64      `json:"area_cap"`
}

type monthDTO struct {
	ID       model.Month `json:"id"`
	LaborCap float64     `json:"labor_cap"`
}

// datasetDTO lists the four tables in a stable order.
type datasetDTO struct {
	Sites  []siteDTO     `json:"sites"`
	Months []monthDTO    `json:"months"`
	Income []model.Entry `json:"income"`
	Labor  []model.Entry `json:"labor"`
}

func newDatasetDTO(d model.Dataset) datasetDTO {
	out := datasetDTO{
		Sites:  []siteDTO{},
		Months: []monthDTO{},
		Income: d.Income.Entries(),
		Labor:  d.Labor.Entries(),
	}
	for _, s := range d.Sites() {
		out.Sites = append(out.Sites, siteDTO{ID: s, AreaCap: d.AreaCaps[s]})
	}
	for _, m := range d.Months() {
		out.Months = append(out.Months, monthDTO{ID: m, LaborCap: d.LaborCaps[m]})
	}
	return out
}

type addSiteRequest struct {
	ID      int             `json:"id" validate:"required,gt=0"`
	AreaCap *float64        `json:"area_cap" validate:"required,gt=0"`
	Income  map[int]float64 `json:"income" validate:"omitempty,dive,keys,min=1,max=12,endkeys,gte=0"`
}

type setSiteRequest struct {
	AreaCap *float64 `json:"area_cap" validate:"required,gte=0"`
}

type addMonthRequest struct {
	ID       int             `json:"id" validate:"required,min=1,max=12"`
	LaborCap *float64        `json:"labor_cap" validate:"required,gt=0"`
	Labor    map[int]float64 `json:"labor" validate:"omitempty,dive,keys,gt=0,endkeys,gte=0"`
}

type setMonthRequest struct {
	LaborCap *float64 `json:"labor_cap" validate:"required,gte=0"`
}

// optionalRate tells an absent field apart from an explicit null.
type optionalRate struct {
	Set   bool
	Value *float64
}

func (o *optionalRate) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type rateRequest struct {
	Income optionalRate `json:"income"`
	Labor  optionalRate `json:"labor"`
}

type solveRequest struct {
	DropIncomplete bool `json:"drop_incomplete"`
}

type solveResponse struct {
	coremqtt.PlanMessage
	Missing *model.MissingReport `json:"missing,omitempty"`
}
