package metrics

import (
	"time"

	"github.com/keilos1/harvestplan/core/lp"
)

// SolveEvent describes one optimizer run.
type SolveEvent struct {
	RunID       string
	Source      string
	Status      lp.Status
	Objective   float64
	Variables   int
	Constraints int
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records solver runs.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// EditEvent is a change applied to the stored tables.
type EditEvent struct {
	Op     string
	Sites  int
	Months int
	Time   time.Time
}

// EditRecorder records dataset edits.
type EditRecorder interface {
	RecordEdit(ev EditEvent) error
}

// PublishEvent is the outcome of publishing a plan.
type PublishEvent struct {
	RunID    string
	Topic    string
	Attempts int
	Success  bool
	Latency  time.Duration
	Time     time.Time
}

// PublishRecorder records plan publications.
type PublishRecorder interface {
	RecordPublish(ev PublishEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error     { return nil }
func (NopSink) RecordEdit(EditEvent) error       { return nil }
func (NopSink) RecordPublish(PublishEvent) error { return nil }
