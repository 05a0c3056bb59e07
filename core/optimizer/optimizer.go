// Package optimizer builds and solves the harvesting linear program: choose
// the hectares to harvest per site and month so that total income is
// maximal without exceeding the monthly labour caps and the site area caps.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/keilos1/harvestplan/core/logger"
	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
)

var (
	// ErrInsufficientData is returned when no months or no sites are defined.
	ErrInsufficientData = errors.New("insufficient data: no months or no sites defined")
	// ErrNoObjectiveTerms is returned when no site and month pair has both
	// an income and a labour rate.
	ErrNoObjectiveTerms = errors.New("no objective terms: no site/month pair has both income and labour rates")

	// ErrInfeasible, ErrUnbounded and ErrSolver are the lp errors a
	// non-optimal solve returns, re-exported for callers of this package.
	ErrInfeasible = lp.ErrInfeasible
	ErrUnbounded  = lp.ErrUnbounded
	ErrSolver     = lp.ErrSolver
)

// Result statuses, re-exported from lp.
const (
	Optimal     = lp.Optimal
	Infeasible  = lp.Infeasible
	Unbounded   = lp.Unbounded
	SolverError = lp.SolverError
)

// Options control the presentation thresholds and the underlying solver.
type Options struct {
	// PlanEpsilon hides allocations at or below this many hectares from Plan.
	PlanEpsilon float64 `json:"plan_epsilon"`
	// ShadowEpsilon normalises shadow prices of smaller magnitude to zero.
	ShadowEpsilon float64    `json:"shadow_epsilon"`
	Solver        lp.Options `json:"solver"`
}

// DefaultOptions returns 1e-3 ha for the plan and 1e-4 for shadow prices.
func DefaultOptions() Options {
	return Options{PlanEpsilon: 1e-3, ShadowEpsilon: 1e-4, Solver: lp.DefaultOptions()}
}

// Optimizer solves harvesting plans. It holds no state between solves and
// is safe for concurrent use.
type Optimizer struct {
	opts Options
	log  logger.Logger
}

// New creates an Optimizer. Zero epsilons fall back to the defaults and a
// nil logger discards output.
func New(opts Options, log logger.Logger) *Optimizer {
	def := DefaultOptions()
	if opts.PlanEpsilon <= 0 {
		opts.PlanEpsilon = def.PlanEpsilon
	}
	if opts.ShadowEpsilon <= 0 {
		opts.ShadowEpsilon = def.ShadowEpsilon
	}
	return &Optimizer{opts: opts, log: logger.OrNop(log)}
}

// Options returns the effective options.
func (o *Optimizer) Options() Options { return o.opts }

// BuildAndSolve solves with default options.
func BuildAndSolve(ctx context.Context, income, labor model.Rates, laborCaps map[model.Month]float64, areaCaps map[model.SiteID]float64) (*Result, error) {
	return New(DefaultOptions(), nil).BuildAndSolve(ctx, income, labor, laborCaps, areaCaps)
}

// SolveDataset solves the tables of d.
func (o *Optimizer) SolveDataset(ctx context.Context, d model.Dataset) (*Result, error) {
	return o.BuildAndSolve(ctx, d.Income, d.Labor, d.LaborCaps, d.AreaCaps)
}

// BuildAndSolve maximises Σ income·x over the usable pairs subject to one
// labour row per referenced month and one area row per referenced site.
// A pair is usable when its site has an area cap, its month a labour cap,
// and both rates are present. The inputs are only read.
//
// On a solver outcome other than optimal the returned Result carries the
// status and no allocation, and err matches ErrInfeasible, ErrUnbounded or
// ErrSolver.
func (o *Optimizer) BuildAndSolve(ctx context.Context, income, labor model.Rates, laborCaps map[model.Month]float64, areaCaps map[model.SiteID]float64) (*Result, error) {
	if len(areaCaps) == 0 || len(laborCaps) == 0 {
		return nil, ErrInsufficientData
	}

	pairs := usablePairs(income, labor, laborCaps, areaCaps)
	if len(pairs) == 0 {
		return nil, ErrNoObjectiveTerms
	}

	m := lp.NewModel("harvesting_plan", lp.Maximize)
	vars := make(map[model.Pair]lp.Var, len(pairs))
	laborTerms := make(map[model.Month][]lp.Term)
	areaTerms := make(map[model.SiteID][]lp.Term)
	for _, p := range pairs {
		v := m.AddVar(fmt.Sprintf("x_%d_%d", p.Site, p.Month), income[p])
		vars[p] = v
		laborTerms[p.Month] = append(laborTerms[p.Month], lp.Term{Var: v, Coeff: labor[p]})
		areaTerms[p.Site] = append(areaTerms[p.Site], lp.Term{Var: v, Coeff: 1})
	}

	laborRows := make(map[model.Month]lp.Constraint, len(laborTerms))
	for _, month := range sortedMonths(laborCaps) {
		if terms, ok := laborTerms[month]; ok {
			laborRows[month] = m.AddConstraint(fmt.Sprintf("labor_month_%d", month), terms, lp.LessEq, laborCaps[month])
		}
	}
	areaRows := make(map[model.SiteID]lp.Constraint, len(areaTerms))
	for _, site := range sortedSites(areaCaps) {
		if terms, ok := areaTerms[site]; ok {
			areaRows[site] = m.AddConstraint(fmt.Sprintf("area_site_%d", site), terms, lp.LessEq, areaCaps[site])
		}
	}

	o.log.Debugw("solving harvesting plan", map[string]any{
		"variables":   m.NumVars(),
		"constraints": m.NumConstraints(),
	})
	start := time.Now()
	sol, err := m.Solve(ctx, o.opts.Solver)
	res := &Result{
		Status:      sol.Status,
		Variables:   m.NumVars(),
		Constraints: m.NumConstraints(),
		Duration:    time.Since(start),
		planEps:     o.opts.PlanEpsilon,
	}
	if err != nil {
		o.log.Warnf("harvesting plan not solved: %s: %v", sol.Status, err)
		return res, err
	}

	res.Allocation = make(map[model.Pair]float64, len(vars))
	for p, v := range vars {
		res.Allocation[p] = sol.Value(v)
	}
	res.Objective = objective(pairs, income, res.Allocation)
	res.DualGap = sol.Gap()
	if res.DualGap > 1e-6*math.Max(1, math.Abs(res.Objective)) {
		o.log.Warnf("primal/dual objective gap %.3g", res.DualGap)
	}

	res.LaborShadow = make(map[model.Month]ShadowPrice, len(laborCaps))
	for month := range laborCaps {
		c, ok := laborRows[month]
		res.LaborShadow[month] = o.shadow(sol, c, ok)
	}
	res.AreaShadow = make(map[model.SiteID]ShadowPrice, len(areaCaps))
	for site := range areaCaps {
		c, ok := areaRows[site]
		res.AreaShadow[site] = o.shadow(sol, c, ok)
	}
	o.log.Infof("harvesting plan solved: objective %.4f in %s", res.Objective, res.Duration)
	return res, nil
}

func (o *Optimizer) shadow(sol *lp.Solution, c lp.Constraint, created bool) ShadowPrice {
	if !created {
		return ShadowPrice{}
	}
	v := sol.Dual(c)
	if math.Abs(v) < o.opts.ShadowEpsilon {
		v = 0
	}
	return ShadowPrice{Value: v, Applicable: true}
}

func usablePairs(income, labor model.Rates, laborCaps map[model.Month]float64, areaCaps map[model.SiteID]float64) []model.Pair {
	var out []model.Pair
	for p := range income {
		if _, ok := labor[p]; !ok {
			continue
		}
		if _, ok := areaCaps[p.Site]; !ok {
			continue
		}
		if _, ok := laborCaps[p.Month]; !ok {
			continue
		}
		out = append(out, p)
	}
	model.SortPairs(out)
	return out
}

func objective(pairs []model.Pair, income model.Rates, alloc map[model.Pair]float64) float64 {
	var f float64
	for _, p := range pairs {
		f += income[p] * alloc[p]
	}
	return f
}
