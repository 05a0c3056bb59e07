package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/keilos1/harvestplan/core/lp"
	coremetrics "github.com/keilos1/harvestplan/core/metrics"
)

// PromSink records solver activity in Prometheus collectors.
type PromSink struct {
	solves    *prometheus.CounterVec
	duration  prometheus.Histogram
	objective prometheus.Gauge
	edits     *prometheus.CounterVec
	publishes *prometheus.CounterVec
}

// NewPromSink registers the collectors on the default registerer. The
// endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. A nil reg means
// the default registerer. Collectors already registered by an earlier sink
// are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_solves_total",
		Help: "Number of optimizer runs by final status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_solve_duration_seconds",
		Help:    "Wall time of optimizer runs",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "harvest_objective_value",
		Help: "Maximum income of the last optimal plan",
	})); err != nil {
		return nil, err
	}
	if s.edits, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_dataset_edits_total",
		Help: "Number of applied dataset edits by operation",
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if s.publishes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_plan_publish_total",
		Help: "Number of plan publications by outcome",
	}, []string{"success"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the run, observes its duration and, for optimal runs,
// sets the objective gauge.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Status.String()).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	if ev.Status == lp.Optimal {
		s.objective.Set(ev.Objective)
	}
	return nil
}

func (s *PromSink) RecordEdit(ev coremetrics.EditEvent) error {
	s.edits.WithLabelValues(ev.Op).Inc()
	return nil
}

func (s *PromSink) RecordPublish(ev coremetrics.PublishEvent) error {
	s.publishes.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	return nil
}
