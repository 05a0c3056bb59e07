// Package transport solves the balanced transportation problem: ship goods
// from suppliers to consumers at minimum cost, with optional forbidden
// routes and routes whose volume is fixed in advance.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/keilos1/harvestplan/core/lp"
)

var (
	// ErrInvalidProblem is returned for malformed dimensions or values.
	ErrInvalidProblem = errors.New("transport: invalid problem")
	// ErrUnbalanced is returned when total supply differs from total demand.
	ErrUnbalanced = errors.New("transport: total supply differs from total demand")
	// ErrInfeasible is returned when no shipment plan satisfies the routes.
	ErrInfeasible = lp.ErrInfeasible
)

// Route is a supplier → consumer lane, both zero-based.
type Route struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// FixedRoute forces an exact volume on a route.
type FixedRoute struct {
	Route
	Amount float64 `json:"amount"`
}

// Problem describes one transportation problem.
type Problem struct {
	Supply []float64 `json:"supply"`
	Demand []float64 `json:"demand"`
	// Cost[i][j] is the unit cost from supplier i to consumer j.
	Cost      [][]float64  `json:"cost"`
	Forbidden []Route      `json:"forbidden"`
	Fixed     []FixedRoute `json:"fixed"`
}

// LoadProblem reads a Problem from a JSON file.
func LoadProblem(path string) (Problem, error) {
	var p Problem
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
	}
	return p, nil
}

// Plan is the solved shipment matrix.
type Plan struct {
	Status lp.Status   `json:"status"`
	Cost   float64     `json:"cost"`
	Flow   [][]float64 `json:"flow"`
	// SupplyShadow[i] is the change of the total cost per extra unit
	// available at supplier i.
	SupplyShadow []float64 `json:"supply_shadow"`
	// DemandShadow[j] is the change of the total cost per extra unit
	// required by consumer j.
	DemandShadow []float64 `json:"demand_shadow"`
}

// Validate checks dimensions, values and route indices.
func (p Problem) Validate() error {
	if len(p.Supply) == 0 || len(p.Demand) == 0 {
		return fmt.Errorf("%w: supply and demand must not be empty", ErrInvalidProblem)
	}
	if len(p.Cost) != len(p.Supply) {
		return fmt.Errorf("%w: cost has %d rows, want %d", ErrInvalidProblem, len(p.Cost), len(p.Supply))
	}
	for i, row := range p.Cost {
		if len(row) != len(p.Demand) {
			return fmt.Errorf("%w: cost row %d has %d columns, want %d", ErrInvalidProblem, i, len(row), len(p.Demand))
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: cost row %d is not finite", ErrInvalidProblem, i)
			}
		}
	}
	for i, v := range p.Supply {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: supply %d must be a non-negative number", ErrInvalidProblem, i)
		}
	}
	for j, v := range p.Demand {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: demand %d must be a non-negative number", ErrInvalidProblem, j)
		}
	}
	for _, r := range p.Forbidden {
		if err := p.checkRoute(r); err != nil {
			return err
		}
	}
	for _, f := range p.Fixed {
		if err := p.checkRoute(f.Route); err != nil {
			return err
		}
		if !(f.Amount >= 0) || math.IsInf(f.Amount, 0) {
			return fmt.Errorf("%w: fixed amount on %d→%d must be non-negative", ErrInvalidProblem, f.From, f.To)
		}
	}
	return nil
}

func (p Problem) checkRoute(r Route) error {
	if r.From < 0 || r.From >= len(p.Supply) || r.To < 0 || r.To >= len(p.Demand) {
		return fmt.Errorf("%w: route %d→%d out of range", ErrInvalidProblem, r.From, r.To)
	}
	return nil
}

// Solve minimises the total cost. Fixed volumes are shipped first and
// removed from supply and demand; the rest is solved as supply rows
// Σ_j x ≤ supply_i and demand rows Σ_i x ≥ demand_j, which for a balanced
// problem forces both to equality. A route both forbidden and fixed is
// treated as fixed.
func Solve(ctx context.Context, p Problem, opts lp.Options) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var totalS, totalD float64
	for _, v := range p.Supply {
		totalS += v
	}
	for _, v := range p.Demand {
		totalD += v
	}
	if math.Abs(totalS-totalD) > 1e-9*math.Max(1, math.Max(totalS, totalD)) {
		return nil, fmt.Errorf("%w: %g vs %g", ErrUnbalanced, totalS, totalD)
	}

	ns, nd := len(p.Supply), len(p.Demand)
	supply := append([]float64(nil), p.Supply...)
	demand := append([]float64(nil), p.Demand...)
	fixed := make(map[Route]float64, len(p.Fixed))
	var fixedCost float64
	for _, f := range p.Fixed {
		fixed[f.Route] += f.Amount
		supply[f.From] -= f.Amount
		demand[f.To] -= f.Amount
		fixedCost += f.Amount * p.Cost[f.From][f.To]
	}
	for i, v := range supply {
		if v < -1e-9 {
			return nil, fmt.Errorf("%w: fixed routes ship %g more than supplier %d holds", ErrInfeasible, -v, i)
		}
	}
	for j, v := range demand {
		if v < -1e-9 {
			return nil, fmt.Errorf("%w: fixed routes ship %g more than consumer %d needs", ErrInfeasible, -v, j)
		}
	}
	forbidden := make(map[Route]bool, len(p.Forbidden))
	for _, r := range p.Forbidden {
		forbidden[r] = true
	}

	m := lp.NewModel("transport", lp.Minimize)
	vars := make(map[Route]lp.Var)
	supplyTerms := make([][]lp.Term, ns)
	demandTerms := make([][]lp.Term, nd)
	for i := 0; i < ns; i++ {
		for j := 0; j < nd; j++ {
			r := Route{From: i, To: j}
			if _, ok := fixed[r]; ok || forbidden[r] {
				continue
			}
			v := m.AddVar(fmt.Sprintf("x_%d_%d", i, j), p.Cost[i][j])
			vars[r] = v
			supplyTerms[i] = append(supplyTerms[i], lp.Term{Var: v, Coeff: 1})
			demandTerms[j] = append(demandTerms[j], lp.Term{Var: v, Coeff: 1})
		}
	}
	supplyRows := make([]lp.Constraint, ns)
	for i := range supplyRows {
		supplyRows[i] = m.AddConstraint(fmt.Sprintf("supply_%d", i), supplyTerms[i], lp.LessEq, math.Max(0, supply[i]))
	}
	demandRows := make([]lp.Constraint, nd)
	for j := range demandRows {
		demandRows[j] = m.AddConstraint(fmt.Sprintf("demand_%d", j), demandTerms[j], lp.GreaterEq, math.Max(0, demand[j]))
	}

	sol, err := m.Solve(ctx, opts)
	plan := &Plan{Status: sol.Status}
	if err != nil {
		return plan, err
	}
	plan.Flow = make([][]float64, ns)
	for i := range plan.Flow {
		plan.Flow[i] = make([]float64, nd)
		for j := range plan.Flow[i] {
			r := Route{From: i, To: j}
			if v, ok := vars[r]; ok {
				plan.Flow[i][j] = sol.Value(v)
			} else {
				plan.Flow[i][j] = fixed[r]
			}
		}
	}
	plan.Cost = sol.Objective + fixedCost
	plan.SupplyShadow = make([]float64, ns)
	for i, c := range supplyRows {
		plan.SupplyShadow[i] = sol.Dual(c)
	}
	plan.DemandShadow = make([]float64, nd)
	for j, c := range demandRows {
		plan.DemandShadow[j] = sol.Dual(c)
	}
	return plan, nil
}
