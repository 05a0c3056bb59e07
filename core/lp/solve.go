package lp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	golp "gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the outcome of a solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	SolverError
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	case SolverError:
		return "SolverError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus converts the String form back to a Status. Matching ignores case.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{Optimal, Infeasible, Unbounded, SolverError} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("lp: unknown status %q", s)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

var (
	// ErrInfeasible indicates the rows admit no solution with x >= 0.
	ErrInfeasible = errors.New("lp: infeasible")
	// ErrUnbounded indicates the objective can be improved without limit.
	ErrUnbounded = errors.New("lp: unbounded")
	// ErrSolver wraps any other simplex failure, cancellation or timeout.
	ErrSolver = errors.New("lp: solver error")
)

// Options tune a solve.
type Options struct {
	// Tolerance is the reduced-cost tolerance handed to the simplex.
	Tolerance float64 `json:"tolerance"`
	// Timeout bounds each simplex run. Zero means no limit besides ctx.
	Timeout time.Duration `json:"timeout"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-7, Timeout: 30 * time.Second}
}

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultOptions().Tolerance
	}
	return o
}

// Solution holds the result of Model.Solve.
type Solution struct {
	Status Status
	// Objective is Σ cost·x in the model's own direction.
	Objective float64
	// DualObjective is the optimal value of the dual program, expressed in
	// the model's direction. It equals Objective up to numerical noise.
	DualObjective float64

	values []float64
	duals  []float64
}

// IsOptimal reports whether the solve reached an optimum.
func (s *Solution) IsOptimal() bool { return s != nil && s.Status == Optimal }

// Value returns the value of v, or 0 when no solution is available.
func (s *Solution) Value(v Var) float64 {
	if s == nil || int(v) < 0 || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}

// Values returns a copy of all variable values.
func (s *Solution) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Dual returns the shadow price of c: the change of the optimal objective per
// unit increase of the row's right-hand side.
func (s *Solution) Dual(c Constraint) float64 {
	if s == nil || int(c) < 0 || int(c) >= len(s.duals) {
		return 0
	}
	return s.duals[c]
}

// Gap returns |Objective - DualObjective|.
func (s *Solution) Gap() float64 { return math.Abs(s.Objective - s.DualObjective) }

// simplexFunc matches gonum's lp.Simplex. It is a variable so tests can
// simulate solver failures.
type simplexFunc func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error)

var simplex simplexFunc = golp.Simplex

// geRow is one model row rewritten as Σ coeff·x >= rhs in minimisation form.
type geRow struct {
	src    int
	sign   float64
	coeffs map[int]float64
	rhs    float64
}

// Solve solves the model. The returned Solution is never nil; err is one of
// ErrInfeasible, ErrUnbounded or a wrapped ErrSolver when Status is not Optimal.
func (m *Model) Solve(ctx context.Context, opts Options) (*Solution, error) {
	opts = opts.withDefaults()
	sol := &Solution{
		values: make([]float64, len(m.vars)),
		duals:  make([]float64, len(m.rows)),
	}

	// Minimisation costs.
	cost := make([]float64, len(m.vars))
	for i, v := range m.vars {
		cost[i] = v.cost
		if m.dir == Maximize {
			cost[i] = -v.cost
		}
	}

	rows, err := m.expandRows()
	if err != nil {
		sol.Status = Infeasible
		return sol, err
	}

	// Variables without a single non-zero coefficient never enter the
	// simplex; gonum rejects all-zero columns.
	active := make([]int, 0, len(m.vars))
	col := make(map[int]int, len(m.vars))
	for j := range m.vars {
		used := false
		for _, r := range rows {
			if r.coeffs[j] != 0 {
				used = true
				break
			}
		}
		if !used {
			if cost[j] < 0 {
				sol.Status = Unbounded
				return sol, fmt.Errorf("%w: variable %q is not constrained", ErrUnbounded, m.vars[j].name)
			}
			continue
		}
		col[j] = len(active)
		active = append(active, j)
	}

	if len(rows) == 0 {
		sol.Status = Optimal
		return sol, nil
	}

	x, err := m.solvePrimal(ctx, opts, rows, active, col, cost)
	if err != nil {
		sol.Status, err = classify(err)
		return sol, err
	}
	for k, j := range active {
		sol.values[j] = math.Max(0, x[k])
	}
	sol.Objective = m.Objective(sol.values)

	y, err := m.solveDual(ctx, opts, rows, active, cost)
	if err != nil {
		if stopped(ctx, err) {
			sol.Status = SolverError
			return sol, fmt.Errorf("%w: dual: %w", ErrSolver, err)
		}
		// gonum's phase 1 can fail on degenerate duals. The primal optimum
		// stands; the prices come from an optimal basis instead.
		y, err = m.basisDuals(ctx, opts, rows, active, col, cost, x)
		if err != nil {
			sol.Status = SolverError
			return sol, fmt.Errorf("%w: dual: %w", ErrSolver, err)
		}
	}
	dirFactor := 1.0
	if m.dir == Maximize {
		dirFactor = -1
	}
	var dualObj float64
	for r, gr := range rows {
		sol.duals[gr.src] += dirFactor * gr.sign * y[r]
		dualObj += gr.rhs * y[r]
	}
	sol.DualObjective = dirFactor * dualObj
	sol.Status = Optimal
	return sol, nil
}

// expandRows rewrites every row as one or two >= rows. Rows without non-zero
// coefficients are checked here and dropped.
func (m *Model) expandRows() ([]geRow, error) {
	out := make([]geRow, 0, len(m.rows))
	for i, r := range m.rows {
		coeffs := make(map[int]float64, len(r.terms))
		for _, t := range r.terms {
			if t.Coeff != 0 {
				coeffs[int(t.Var)] = t.Coeff
			}
		}
		if len(coeffs) == 0 {
			if !emptyRowFeasible(r) {
				return nil, fmt.Errorf("%w: row %q has no terms and cannot hold", ErrInfeasible, r.name)
			}
			continue
		}
		if r.sense == LessEq || r.sense == Equal {
			out = append(out, newGeRow(i, -1, coeffs, r.rhs))
		}
		if r.sense == GreaterEq || r.sense == Equal {
			out = append(out, newGeRow(i, 1, coeffs, r.rhs))
		}
	}
	return out, nil
}

func newGeRow(src int, sign float64, coeffs map[int]float64, rhs float64) geRow {
	c := make(map[int]float64, len(coeffs))
	for j, v := range coeffs {
		c[j] = sign * v
	}
	return geRow{src: src, sign: sign, coeffs: c, rhs: sign * rhs}
}

func emptyRowFeasible(r row) bool {
	switch r.sense {
	case LessEq:
		return r.rhs >= 0
	case GreaterEq:
		return r.rhs <= 0
	default:
		return r.rhs == 0
	}
}

// solvePrimal solves min cᵀx s.t. rows, x >= 0 in standard form
// [A -I][x s]ᵀ = b with one surplus column per row.
func (m *Model) solvePrimal(ctx context.Context, opts Options, rows []geRow, active []int, col map[int]int, cost []float64) ([]float64, error) {
	c, a, b, _, basis := standardForm(rows, active, col, cost, nil)
	return runSimplex(ctx, opts, c, a, b, basis)
}

// standardForm builds [A -I][x s]ᵀ = b with b >= 0. relax lowers the
// right-hand side of each >= row; nil means none. flips holds the sign each
// row was multiplied by. basis is the surplus basis when it is feasible.
func standardForm(rows []geRow, active []int, col map[int]int, cost, relax []float64) (c []float64, a *mat.Dense, b, flips []float64, basis []int) {
	n, k := len(active), len(rows)
	a = mat.NewDense(k, n+k, nil)
	b = make([]float64, k)
	c = make([]float64, n+k)
	flips = make([]float64, k)
	for idx, j := range active {
		c[idx] = cost[j]
	}
	basis = make([]int, 0, k)
	for r, gr := range rows {
		rhs := gr.rhs
		if relax != nil {
			rhs -= relax[r]
		}
		flip := 1.0
		if rhs <= 0 {
			flip = -1
		}
		for j, v := range gr.coeffs {
			a.Set(r, col[j], flip*v)
		}
		a.Set(r, n+r, -flip)
		b[r] = flip * rhs
		flips[r] = flip
		if flip < 0 {
			basis = append(basis, n+r)
		}
	}
	if len(basis) != k {
		basis = nil
	}
	return c, a, b, flips, basis
}

// basisDuals recovers the dual values from an optimal basis. The right-hand
// sides are relaxed by a small lexicographic perturbation so the optimum is
// non-degenerate and its basis is read off the non-zero columns; the
// reduced costs do not depend on b, so that basis prices the original rows.
// x is the primal optimum in standard form and checks the dual objective.
func (m *Model) basisDuals(ctx context.Context, opts Options, rows []geRow, active []int, col map[int]int, cost, x []float64) ([]float64, error) {
	k := len(rows)
	scale := 1.0
	for _, gr := range rows {
		scale = math.Max(scale, math.Abs(gr.rhs))
	}
	costScale := 1.0
	var primalObj float64
	for idx, j := range active {
		costScale = math.Max(costScale, math.Abs(cost[j]))
		primalObj += cost[j] * x[idx]
	}
	feasTol := 1e-6 * costScale
	gapTol := 1e-6 * math.Max(1, math.Abs(primalObj))

	var lastErr error
	for _, step := range []float64{1e-7, 1e-5, 1e-9} {
		relax := make([]float64, k)
		for r := range relax {
			relax[r] = step * scale * float64(r+1) / float64(k)
		}
		c, a, b, flips, basis := standardForm(rows, active, col, cost, relax)
		z, err := runSimplex(ctx, opts, c, a, b, basis)
		if err != nil {
			if stopped(ctx, err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		y, err := dualsFromBasis(c, a, flips, z)
		if err != nil {
			lastErr = err
			continue
		}
		if err := checkDual(rows, active, cost, y, feasTol); err != nil {
			lastErr = err
			continue
		}
		var dualObj float64
		for r, gr := range rows {
			dualObj += gr.rhs * y[r]
		}
		if math.Abs(dualObj-primalObj) > gapTol {
			lastErr = fmt.Errorf("basis duals: gap %.3g", math.Abs(dualObj-primalObj))
			continue
		}
		return y, nil
	}
	return nil, lastErr
}

// dualsFromBasis picks the k largest columns of z as the basis B, solves
// Bᵀw = c_B and maps w back to the >= rows.
func dualsFromBasis(c []float64, a *mat.Dense, flips, z []float64) ([]float64, error) {
	k, _ := a.Dims()
	order := make([]int, len(z))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return math.Abs(z[order[i]]) > math.Abs(z[order[j]]) })
	cols := order[:k]
	sort.Ints(cols)

	bt := mat.NewDense(k, k, nil)
	cb := mat.NewVecDense(k, nil)
	for i, j := range cols {
		for r := 0; r < k; r++ {
			bt.Set(i, r, a.At(r, j))
		}
		cb.SetVec(i, c[j])
	}
	var w mat.VecDense
	if err := w.SolveVec(bt, cb); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || float64(cond) > 1e12 {
			return nil, fmt.Errorf("basis duals: %w", err)
		}
	}
	y := make([]float64, k)
	for r := range y {
		y[r] = flips[r] * w.AtVec(r)
	}
	return y, nil
}

// checkDual verifies y >= 0 and Gᵀy <= c within tol, then clamps the
// residual negative noise to zero.
func checkDual(rows []geRow, active []int, cost, y []float64, tol float64) error {
	for r := range y {
		if y[r] < -tol {
			return fmt.Errorf("basis duals: row %d price %.3g is negative", r, y[r])
		}
		y[r] = math.Max(0, y[r])
	}
	for _, j := range active {
		var lhs float64
		for r, gr := range rows {
			lhs += gr.coeffs[j] * y[r]
		}
		if lhs > cost[j]+tol {
			return fmt.Errorf("basis duals: column %d reduced cost %.3g", j, cost[j]-lhs)
		}
	}
	return nil
}

// solveDual solves max bᵀy s.t. Aᵀy <= c, y >= 0 as
// min -bᵀy s.t. [Aᵀ I][y t]ᵀ = c and returns y.
func (m *Model) solveDual(ctx context.Context, opts Options, rows []geRow, active []int, cost []float64) ([]float64, error) {
	n, k := len(active), len(rows)
	a := mat.NewDense(n, k+n, nil)
	b := make([]float64, n)
	c := make([]float64, k+n)
	for r, gr := range rows {
		c[r] = -gr.rhs
	}
	basis := make([]int, 0, n)
	for idx, j := range active {
		flip := 1.0
		if cost[j] < 0 {
			flip = -1
		}
		for r, gr := range rows {
			if v := gr.coeffs[j]; v != 0 {
				a.Set(idx, r, flip*v)
			}
		}
		a.Set(idx, k+idx, flip)
		b[idx] = flip * cost[j]
		if flip > 0 {
			basis = append(basis, k+idx)
		}
	}
	if len(basis) != n {
		basis = nil
	}
	sol, err := runSimplex(ctx, opts, c, a, b, basis)
	if err != nil {
		return nil, err
	}
	y := make([]float64, k)
	for r := range y {
		y[r] = math.Max(0, sol[r])
	}
	return y, nil
}

func runSimplex(ctx context.Context, opts Options, c []float64, a *mat.Dense, b []float64, basis []int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	type result struct {
		x   []float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("simplex panic: %v", r)}
			}
		}()
		_, x, err := simplex(c, a, b, opts.Tolerance, basis)
		done <- result{x: x, err: err}
	}()
	select {
	case r := <-done:
		return r.x, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stopped reports whether err comes from cancellation or the solve timeout.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded)
}

func classify(err error) (Status, error) {
	switch {
	case errors.Is(err, ErrInfeasible), errors.Is(err, golp.ErrInfeasible):
		return Infeasible, ErrInfeasible
	case errors.Is(err, ErrUnbounded), errors.Is(err, golp.ErrUnbounded):
		return Unbounded, ErrUnbounded
	default:
		return SolverError, fmt.Errorf("%w: %w", ErrSolver, err)
	}
}
