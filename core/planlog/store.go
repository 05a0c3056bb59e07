// Package planlog keeps a history of optimizer runs.
package planlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/core/lp"
	"github.com/keilos1/harvestplan/core/model"
	"github.com/keilos1/harvestplan/core/optimizer"
)

// Status is the outcome of a run. Solved runs carry the solver status;
// runs refused before a model was built carry the data error.
type Status string

const (
	StatusOptimal          Status = "Optimal"
	StatusInfeasible       Status = "Infeasible"
	StatusUnbounded        Status = "Unbounded"
	StatusSolverError      Status = "SolverError"
	StatusInsufficientData Status = "InsufficientData"
	StatusNoObjectiveTerms Status = "NoObjectiveTerms"
)

var statuses = []Status{
	StatusOptimal, StatusInfeasible, StatusUnbounded, StatusSolverError,
	StatusInsufficientData, StatusNoObjectiveTerms,
}

func (s Status) String() string { return string(s) }

// SolverStatus converts an lp status.
func SolverStatus(s lp.Status) Status { return Status(s.String()) }

// ParseStatus matches s against the known statuses ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("planlog: unknown status %q", s)
}

// Record is one optimizer run.
type Record struct {
	ID          uuid.UUID                              `json:"id"`
	Timestamp   time.Time                              `json:"timestamp"`
	Source      string                                 `json:"source"`
	Status      Status                                 `json:"status"`
	Objective   float64                                `json:"objective"`
	Allocation  []model.Entry                          `json:"allocation"`
	LaborShadow map[model.Month]optimizer.ShadowPrice  `json:"labor_shadow,omitempty"`
	AreaShadow  map[model.SiteID]optimizer.ShadowPrice `json:"area_shadow,omitempty"`
	Error       string                                 `json:"error,omitempty"`
	Duration    time.Duration                          `json:"duration"`
}

// NewRecord describes a finished run. res may be nil when the run failed
// before a model was solved.
func NewRecord(source string, res *optimizer.Result, runErr error) Record {
	rec := Record{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Status:    StatusSolverError,
	}
	switch {
	case res != nil:
		rec.Status = SolverStatus(res.Status)
		rec.Objective = res.Objective
		rec.Allocation = res.Plan(0)
		rec.LaborShadow = res.LaborShadow
		rec.AreaShadow = res.AreaShadow
		rec.Duration = res.Duration
	case errors.Is(runErr, optimizer.ErrInsufficientData):
		rec.Status = StatusInsufficientData
	case errors.Is(runErr, optimizer.ErrNoObjectiveTerms):
		rec.Status = StatusNoObjectiveTerms
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	Status *Status
	Limit  int
}

// Match reports whether r passes the time and status filters.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != nil && r.Status != *q.Status {
		return false
	}
	return true
}

// limit keeps the latest q.Limit records.
func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists run records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// New opens the backend selected by cfg.
func New(cfg config.RunLogConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.RunLogNone:
		return Nop{}, nil
	case config.RunLogJSONL:
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLStore(cfg.Path)
	case config.RunLogSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown run log backend %q", cfg.Backend)
	}
}

// Nop drops records.
type Nop struct{}

func (Nop) Append(context.Context, Record) error           { return nil }
func (Nop) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (Nop) Close() error                                   { return nil }
