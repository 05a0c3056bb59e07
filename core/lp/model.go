// Package lp builds small continuous linear programs and solves them with the
// gonum simplex implementation.
//
// A Model holds non-negative variables, linear rows and an objective. Rows are
// addressed by typed handles so callers keep their own key → handle maps
// instead of looking constraints up by name. Solving returns primal values,
// the objective and one dual value per row.
package lp

import "fmt"

// Direction selects whether the objective is minimised or maximised.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "max"
	}
	return "min"
}

// Sense is the relation of a row to its right-hand side.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Var is a handle to a model variable.
type Var int

// Constraint is a handle to a model row.
type Constraint int

// Term is one coefficient of a row.
type Term struct {
	Var   Var
	Coeff float64
}

type variable struct {
	name string
	cost float64
}

type row struct {
	name  string
	terms []Term
	sense Sense
	rhs   float64
}

// Model is a linear program over non-negative continuous variables.
// A Model is not safe for concurrent mutation.
type Model struct {
	name string
	dir  Direction
	vars []variable
	rows []row
}

// NewModel creates an empty model.
func NewModel(name string, dir Direction) *Model {
	return &Model{name: name, dir: dir}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Direction returns the objective direction.
func (m *Model) Direction() Direction { return m.dir }

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int { return len(m.rows) }

// AddVar adds a variable x >= 0 with the given objective coefficient.
func (m *Model) AddVar(name string, cost float64) Var {
	m.vars = append(m.vars, variable{name: name, cost: cost})
	return Var(len(m.vars) - 1)
}

// VarName returns the name the variable was created with.
func (m *Model) VarName(v Var) string { return m.vars[v].name }

// ConstraintName returns the name the row was created with.
func (m *Model) ConstraintName(c Constraint) string { return m.rows[c].name }

// AddConstraint adds the row Σ terms (sense) rhs. Terms referencing the same
// variable are summed. It panics on a handle that does not belong to m.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) Constraint {
	merged := make([]Term, 0, len(terms))
	index := make(map[Var]int, len(terms))
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			panic(fmt.Sprintf("lp: constraint %q references unknown variable %d", name, t.Var))
		}
		if i, ok := index[t.Var]; ok {
			merged[i].Coeff += t.Coeff
			continue
		}
		index[t.Var] = len(merged)
		merged = append(merged, t)
	}
	m.rows = append(m.rows, row{name: name, terms: merged, sense: sense, rhs: rhs})
	return Constraint(len(m.rows) - 1)
}

// Objective evaluates Σ cost·x for the given variable values.
func (m *Model) Objective(x []float64) float64 {
	var f float64
	for i, v := range m.vars {
		if i < len(x) {
			f += v.cost * x[i]
		}
	}
	return f
}

// Activity evaluates the left-hand side of row c for the given values.
func (m *Model) Activity(c Constraint, x []float64) float64 {
	var s float64
	for _, t := range m.rows[c].terms {
		s += t.Coeff * x[t.Var]
	}
	return s
}
