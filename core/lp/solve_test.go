package lp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	golp "gonum.org/v1/gonum/optimize/convex/lp"
)

const tol = 1e-6

func TestSolve_MaximizeWithDuals(t *testing.T) {
	m := NewModel("wyndor", Maximize)
	x := m.AddVar("x", 3)
	y := m.AddVar("y", 5)
	c1 := m.AddConstraint("plant1", []Term{{x, 1}}, LessEq, 4)
	c2 := m.AddConstraint("plant2", []Term{{y, 2}}, LessEq, 12)
	c3 := m.AddConstraint("plant3", []Term{{x, 3}, {y, 2}}, LessEq, 18)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	require.True(t, sol.IsOptimal())
	assert.InDelta(t, 2, sol.Value(x), tol)
	assert.InDelta(t, 6, sol.Value(y), tol)
	assert.InDelta(t, 36, sol.Objective, tol)
	assert.InDelta(t, 0, sol.Dual(c1), tol)
	assert.InDelta(t, 1.5, sol.Dual(c2), tol)
	assert.InDelta(t, 1, sol.Dual(c3), tol)
	assert.InDelta(t, sol.Objective, sol.DualObjective, tol)
}

func TestSolve_MinimizeGreaterEq(t *testing.T) {
	m := NewModel("diet", Minimize)
	x := m.AddVar("x", 2)
	y := m.AddVar("y", 3)
	c1 := m.AddConstraint("a", []Term{{x, 1}, {y, 1}}, GreaterEq, 4)
	c2 := m.AddConstraint("b", []Term{{x, 1}, {y, 3}}, GreaterEq, 6)

	sol, err := m.Solve(context.Background(), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 3, sol.Value(x), tol)
	assert.InDelta(t, 1, sol.Value(y), tol)
	assert.InDelta(t, 9, sol.Objective, tol)
	assert.InDelta(t, 1.5, sol.Dual(c1), tol)
	assert.InDelta(t, 0.5, sol.Dual(c2), tol)
	assert.InDelta(t, 0, sol.Gap(), tol)
}

func TestSolve_EqualityDual(t *testing.T) {
	m := NewModel("eq", Minimize)
	x := m.AddVar("x", 1)
	y := m.AddVar("y", 2)
	eq := m.AddConstraint("total", []Term{{x, 1}, {y, 1}}, Equal, 5)
	le := m.AddConstraint("xcap", []Term{{x, 1}}, LessEq, 3)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 3, sol.Value(x), tol)
	assert.InDelta(t, 2, sol.Value(y), tol)
	assert.InDelta(t, 7, sol.Objective, tol)
	assert.InDelta(t, 2, sol.Dual(eq), tol)
	assert.InDelta(t, -1, sol.Dual(le), tol)
}

func TestSolve_DuplicateTermsAreSummed(t *testing.T) {
	m := NewModel("dup", Maximize)
	x := m.AddVar("x", 1)
	c := m.AddConstraint("cap", []Term{{x, 1}, {x, 1}}, LessEq, 10)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 5, sol.Value(x), tol)
	assert.InDelta(t, 5, m.Activity(c, sol.Values())/2, tol)
	assert.InDelta(t, 0.5, sol.Dual(c), tol)
}

func TestSolve_Infeasible(t *testing.T) {
	m := NewModel("bad", Minimize)
	x := m.AddVar("x", 1)
	m.AddConstraint("upper", []Term{{x, 1}}, LessEq, 1)
	m.AddConstraint("lower", []Term{{x, 1}}, GreaterEq, 2)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, Infeasible, sol.Status)
}

func TestSolve_EmptyRowInfeasible(t *testing.T) {
	m := NewModel("empty", Maximize)
	x := m.AddVar("x", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)
	m.AddConstraint("impossible", nil, LessEq, -1)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, Infeasible, sol.Status)
}

func TestSolve_ZeroRowHasZeroDual(t *testing.T) {
	m := NewModel("zero", Maximize)
	x := m.AddVar("x", 2)
	capRow := m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 4)
	zero := m.AddConstraint("zero", []Term{{x, 0}}, LessEq, 7)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 8, sol.Objective, tol)
	assert.InDelta(t, 2, sol.Dual(capRow), tol)
	assert.Equal(t, 0.0, sol.Dual(zero))
}

func TestSolve_Unbounded(t *testing.T) {
	m := NewModel("open", Maximize)
	x := m.AddVar("x", 1)
	y := m.AddVar("y", 0)
	m.AddConstraint("diff", []Term{{x, 1}, {y, -1}}, LessEq, 1)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	assert.ErrorIs(t, err, ErrUnbounded)
	assert.Equal(t, Unbounded, sol.Status)
}

func TestSolve_UnconstrainedVariable(t *testing.T) {
	m := NewModel("free", Maximize)
	x := m.AddVar("x", 1)
	free := m.AddVar("free", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	assert.ErrorIs(t, err, ErrUnbounded)
	assert.Equal(t, Unbounded, sol.Status)
	assert.Equal(t, 0.0, sol.Value(free))

	m = NewModel("idle", Minimize)
	x = m.AddVar("x", -1)
	idle := m.AddVar("idle", 3)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 2)
	sol, err = m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, -2, sol.Objective, tol)
	assert.Equal(t, 0.0, sol.Value(idle))
}

func TestSolve_NoRows(t *testing.T) {
	m := NewModel("none", Minimize)
	m.AddVar("x", 1)
	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, sol.IsOptimal())
	assert.Equal(t, 0.0, sol.Objective)
}

func TestSolve_SolverFailure(t *testing.T) {
	old := simplex
	simplex = func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		return 0, nil, errors.New("boom")
	}
	defer func() { simplex = old }()

	m := NewModel("fail", Maximize)
	x := m.AddVar("x", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)
	sol, err := m.Solve(context.Background(), DefaultOptions())
	assert.ErrorIs(t, err, ErrSolver)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, SolverError, sol.Status)
}

// failCalls makes the listed simplex calls (1-based) fail as gonum does on
// some degenerate phase 1 runs.
func failCalls(t *testing.T, calls ...int32) {
	t.Helper()
	var n atomic.Int32
	old := simplex
	simplex = func(c []float64, A mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error) {
		i := n.Add(1)
		for _, f := range calls {
			if i == f {
				return 0, nil, golp.ErrUnbounded
			}
		}
		return old(c, A, b, tol, basis)
	}
	t.Cleanup(func() { simplex = old })
}

func TestSolve_DualFailureKeepsPrimal(t *testing.T) {
	failCalls(t, 2)

	m := NewModel("wyndor", Maximize)
	x := m.AddVar("x", 3)
	y := m.AddVar("y", 5)
	c1 := m.AddConstraint("plant1", []Term{{x, 1}}, LessEq, 4)
	c2 := m.AddConstraint("plant2", []Term{{y, 2}}, LessEq, 12)
	c3 := m.AddConstraint("plant3", []Term{{x, 3}, {y, 2}}, LessEq, 18)

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	require.True(t, sol.IsOptimal())
	assert.InDelta(t, 2, sol.Value(x), tol)
	assert.InDelta(t, 6, sol.Value(y), tol)
	assert.InDelta(t, 0, sol.Dual(c1), tol)
	assert.InDelta(t, 1.5, sol.Dual(c2), tol)
	assert.InDelta(t, 1, sol.Dual(c3), tol)
	assert.InDelta(t, 0, sol.Gap(), tol)
}

func TestSolve_DualFailureDegenerate(t *testing.T) {
	failCalls(t, 2)

	// Zero caps and a zero rate leave several basic variables at zero.
	m := NewModel("degenerate", Maximize)
	a := m.AddVar("a", 2)
	b := m.AddVar("b", 3)
	c := m.AddVar("c", 1)
	rows := []Constraint{
		m.AddConstraint("labor1", []Term{{a, 4}, {b, 0}}, LessEq, 0),
		m.AddConstraint("labor2", []Term{{c, 2}}, LessEq, 10),
		m.AddConstraint("site1", []Term{{a, 1}, {c, 1}}, LessEq, 5),
		m.AddConstraint("site2", []Term{{b, 1}}, LessEq, 0),
	}

	sol, err := m.Solve(context.Background(), DefaultOptions())
	require.NoError(t, err)
	require.True(t, sol.IsOptimal())
	assert.InDelta(t, 5, sol.Objective, tol)
	assert.InDelta(t, 5, sol.Value(c), tol)
	assert.InDelta(t, 0, sol.Gap(), tol)
	for _, r := range rows {
		assert.GreaterOrEqual(t, sol.Dual(r), -tol)
	}
	// Every column is priced at least at its income.
	assert.GreaterOrEqual(t, 4*sol.Dual(rows[0])+sol.Dual(rows[2]), 2-tol)
	assert.GreaterOrEqual(t, sol.Dual(rows[3]), 3-tol)
	assert.GreaterOrEqual(t, 2*sol.Dual(rows[1])+sol.Dual(rows[2]), 1-tol)
}

func TestSolve_DualRecoveryExhausted(t *testing.T) {
	failCalls(t, 2, 3, 4, 5)

	m := NewModel("stuck", Maximize)
	x := m.AddVar("x", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)
	sol, err := m.Solve(context.Background(), DefaultOptions())
	assert.ErrorIs(t, err, ErrSolver)
	assert.ErrorIs(t, err, golp.ErrUnbounded)
	assert.Equal(t, SolverError, sol.Status)
}

func TestSolve_Timeout(t *testing.T) {
	release := make(chan struct{})
	old := simplex
	simplex = func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		<-release
		return 0, nil, errors.New("released")
	}
	defer func() {
		close(release)
		simplex = old
	}()

	m := NewModel("slow", Maximize)
	x := m.AddVar("x", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)
	start := time.Now()
	sol, err := m.Solve(context.Background(), Options{Timeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrSolver)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, SolverError, sol.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSolve_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	old := simplex
	simplex = func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		<-release
		return 0, nil, errors.New("released")
	}
	defer func() {
		close(release)
		simplex = old
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewModel("cancelled", Maximize)
	x := m.AddVar("x", 1)
	m.AddConstraint("cap", []Term{{x, 1}}, LessEq, 1)
	sol, err := m.Solve(ctx, Options{})
	assert.ErrorIs(t, err, ErrSolver)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, SolverError, sol.Status)
}

func TestAddConstraint_UnknownVarPanics(t *testing.T) {
	m := NewModel("p", Minimize)
	assert.Panics(t, func() {
		m.AddConstraint("bad", []Term{{Var(3), 1}}, LessEq, 1)
	})
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "Optimal", Optimal.String())
	assert.Equal(t, "SolverError", SolverError.String())
	assert.Equal(t, "<=", LessEq.String())
	assert.Equal(t, ">=", GreaterEq.String())
	assert.Equal(t, "max", Maximize.String())
}
