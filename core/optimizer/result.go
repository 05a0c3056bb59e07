package optimizer

import (
	"sort"
	"time"

	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
)

// ShadowPrice is the marginal income of one more unit of a cap. Applicable is
// false when the constraint was not created because no usable pair
// referenced its month or site; a zero Value with Applicable set means the
// constraint exists but does not bind.
type ShadowPrice struct {
	Value      float64 `json:"value"`
	Applicable bool    `json:"applicable"`
}

// Result is the outcome of one solve.
type Result struct {
	Status lp.Status
	// Allocation holds the raw hectares of every usable pair. It is nil
	// unless Status is Optimal.
	Allocation map[model.Pair]float64
	Objective  float64
	// LaborShadow has an entry for every month with a labour cap.
	LaborShadow map[model.Month]ShadowPrice
	// AreaShadow has an entry for every site with an area cap.
	AreaShadow map[model.SiteID]ShadowPrice

	Variables   int
	Constraints int
	Duration    time.Duration
	DualGap     float64

	planEps float64
}

// IsOptimal reports whether r holds an optimal plan.
func (r *Result) IsOptimal() bool { return r != nil && r.Status == lp.Optimal }

// Plan lists the allocations above eps hectares ordered by month, then
// site. A non-positive eps uses the optimizer's plan epsilon.
func (r *Result) Plan(eps float64) []model.Entry {
	if r == nil {
		return nil
	}
	if eps <= 0 {
		eps = r.planEps
	}
	if eps <= 0 {
		eps = DefaultOptions().PlanEpsilon
	}
	var out []model.Entry
	for p, x := range r.Allocation {
		if x > eps {
			out = append(out, model.Entry{Site: p.Site, Month: p.Month, Value: x})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a := model.Pair{Site: out[i].Site, Month: out[i].Month}
		return a.Less(model.Pair{Site: out[j].Site, Month: out[j].Month})
	})
	return out
}

// Months returns the months of LaborShadow, ascending.
func (r *Result) Months() []model.Month { return sortedMonths(r.LaborShadow) }

// Sites returns the sites of AreaShadow, ascending.
func (r *Result) Sites() []model.SiteID { return sortedSites(r.AreaShadow) }

func sortedMonths[V any](m map[model.Month]V) []model.Month {
	out := make([]model.Month, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedSites[V any](m map[model.SiteID]V) []model.SiteID {
	out := make([]model.SiteID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
