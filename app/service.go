// Package app wires the store, the optimizer, the run log, the metrics
// sinks and the plan publisher into one service used by the CLI and the
// HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/core/lp"
	coremetrics "github.com/keilos1/harvestplan/core/metrics"
	"github.com/keilos1/harvestplan/core/model"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
	"github.com/keilos1/harvestplan/core/optimizer"
	"github.com/keilos1/harvestplan/core/planlog"
	"github.com/keilos1/harvestplan/core/store"
	"github.com/keilos1/harvestplan/infra/logger"
	"github.com/keilos1/harvestplan/infra/metrics"
	inframon "github.com/keilos1/harvestplan/infra/monitoring"
	"github.com/keilos1/harvestplan/infra/mqtt"
	"github.com/keilos1/harvestplan/infra/xlsx"
	"github.com/keilos1/harvestplan/internal/eventbus"
)

// ErrIncompleteData is returned by Solve when some site and month pairs
// miss a rate and the request did not ask to drop them.
var ErrIncompleteData = errors.New("incomplete data")

// publishTimeout bounds one plan publication.
const publishTimeout = 10 * time.Second

// PlanSolved is published on the bus after every optimal solve.
type PlanSolved struct {
	RunID  string
	Source string
	Result *optimizer.Result
	Time   time.Time
}

// SolveRequest selects the data policy of one solve.
type SolveRequest struct {
	// Source names the caller in the run log ("cli", "api").
	Source string
	// DropIncomplete solves without the pairs missing a rate instead of
	// failing with ErrIncompleteData.
	DropIncomplete bool
}

// Outcome is what Solve returns next to its error.
type Outcome struct {
	RunID   string
	Result  *optimizer.Result
	Missing model.MissingReport
}

// Deps are the collaborators of a Service. Nil fields get no-op defaults.
type Deps struct {
	Repo      store.Repository
	RunLog    planlog.Store
	Sink      coremetrics.MetricsSink
	Publisher coremqtt.Publisher
	Options   optimizer.Options
	Logger    logger.Logger
	// PrometheusAddr serves /metrics from Run when set.
	PrometheusAddr string
	// Closers run on Close after the run log is closed.
	Closers []func()
}

// Service orchestrates dataset edits and solves.
type Service struct {
	editor    *store.Editor
	optimizer *optimizer.Optimizer
	runLog    planlog.Store
	sink      coremetrics.MetricsSink
	publisher coremqtt.Publisher
	bus       *eventbus.TypedBus[PlanSolved]
	log       logger.Logger
	promAddr  string
	closers   []func()

	cancel    context.CancelFunc
	listeners []<-chan struct{}
	closeOnce sync.Once
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	var repo store.Repository
	switch cfg.Store.Backend {
	case config.StoreMemory:
		repo = store.NewMemory(model.DefaultDataset())
	default:
		repo = xlsx.New(cfg.Store.Path)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	var closers []func()
	if c, ok := sink.(interface{ Close() }); ok {
		closers = append(closers, c.Close)
	}

	runLog, err := planlog.New(cfg.RunLog)
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}

	var pub coremqtt.Publisher = coremqtt.NopPublisher{}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT, sink)
		if err != nil {
			_ = runLog.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		pub = client
		closers = append(closers, client.Disconnect)
	}

	return NewWithDeps(Deps{
		Repo:           repo,
		RunLog:         runLog,
		Sink:           sink,
		Publisher:      pub,
		Options:        cfg.Solver.Options(),
		Logger:         logger.New("service"),
		PrometheusAddr: cfg.Metrics.PrometheusAddr,
		Closers:        closers,
	}), nil
}

// NewWithDeps creates a Service from explicit collaborators and starts the
// plan publisher listener.
func NewWithDeps(d Deps) *Service {
	if d.Repo == nil {
		d.Repo = store.NewMemory(model.DefaultDataset())
	}
	if d.RunLog == nil {
		d.RunLog = planlog.Nop{}
	}
	if d.Sink == nil {
		d.Sink = coremetrics.NopSink{}
	}
	if d.Publisher == nil {
		d.Publisher = coremqtt.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = logger.NopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		editor:    store.NewEditor(d.Repo),
		optimizer: optimizer.New(d.Options, d.Logger),
		runLog:    d.RunLog,
		sink:      d.Sink,
		publisher: d.Publisher,
		bus:       eventbus.NewTyped[PlanSolved](),
		log:       d.Logger,
		promAddr:  d.PrometheusAddr,
		closers:   d.Closers,
		cancel:    cancel,
	}
	s.listeners = append(s.listeners, s.bus.Listen(ctx, s.publishPlan))
	return s
}

// Bus returns the bus carrying PlanSolved events.
func (s *Service) Bus() *eventbus.TypedBus[PlanSolved] { return s.bus }

// Init writes the default tables when the repository supports it and is
// empty. It reports whether anything was written.
func (s *Service) Init(ctx context.Context) (bool, error) {
	in, ok := s.editor.Repository().(interface {
		Init(context.Context) (bool, error)
	})
	if !ok {
		return false, nil
	}
	created, err := in.Init(ctx)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "store"})
		return false, err
	}
	if created {
		s.log.Infof("default dataset written")
	}
	return created, nil
}

// Dataset returns the stored tables.
func (s *Service) Dataset(ctx context.Context) (model.Dataset, error) {
	d, err := s.editor.Snapshot(ctx)
	if err != nil {
		s.captureStoreError(err)
	}
	return d, err
}

// Completeness lists the pairs missing a rate.
func (s *Service) Completeness(ctx context.Context) (model.MissingReport, error) {
	d, err := s.Dataset(ctx)
	if err != nil {
		return model.MissingReport{}, err
	}
	return d.Completeness(), nil
}

// Edit applies fn to the stored tables and records the edit under op.
func (s *Service) Edit(ctx context.Context, op string, fn func(*model.Dataset) error) (model.Dataset, error) {
	d, err := s.editor.Edit(ctx, fn)
	if err != nil {
		s.captureStoreError(err)
		return model.Dataset{}, err
	}
	s.log.Debugw("dataset edited", map[string]any{"op": op, "sites": len(d.AreaCaps), "months": len(d.LaborCaps)})
	if rec, ok := s.sink.(coremetrics.EditRecorder); ok {
		ev := coremetrics.EditEvent{Op: op, Sites: len(d.AreaCaps), Months: len(d.LaborCaps), Time: time.Now()}
		if err := rec.RecordEdit(ev); err != nil {
			s.log.Warnf("record edit: %v", err)
		}
	}
	return d, nil
}

// Solve optimizes the stored tables. Every attempt that reaches the
// optimizer is written to the run log; optimal plans are published.
func (s *Service) Solve(ctx context.Context, req SolveRequest) (*Outcome, error) {
	d, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Missing: d.Completeness()}
	if !out.Missing.Empty() {
		if !req.DropIncomplete {
			return out, fmt.Errorf("%w: %d income and %d labour rates missing",
				ErrIncompleteData, len(out.Missing.Income), len(out.Missing.Labor))
		}
		d = d.DropIncomplete()
	}

	res, runErr := s.optimizer.SolveDataset(ctx, d)
	out.Result = res

	rec := planlog.NewRecord(req.Source, res, runErr)
	out.RunID = rec.ID.String()
	if err := s.runLog.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Errorf("run log append: %v", err)
		coremon.CaptureException(err, map[string]string{"module": "planlog", "run_id": out.RunID})
	}

	if res == nil {
		s.log.Warnf("run %s: %v", out.RunID, runErr)
		return out, runErr
	}
	s.recordSolve(out.RunID, req.Source, res)
	if res.Status == lp.SolverError && !errors.Is(runErr, context.Canceled) {
		coremon.CaptureException(runErr, map[string]string{"module": "optimizer", "run_id": out.RunID})
	}
	if !res.IsOptimal() {
		s.log.Warnf("run %s: status %s", out.RunID, res.Status)
		return out, runErr
	}
	s.log.Infof("run %s: objective %.4f in %s", out.RunID, res.Objective, res.Duration)
	s.bus.Publish(PlanSolved{RunID: out.RunID, Source: req.Source, Result: res, Time: rec.Timestamp})
	return out, runErr
}

// Runs queries the run log.
func (s *Service) Runs(ctx context.Context, q planlog.Query) ([]planlog.Record, error) {
	return s.runLog.Query(ctx, q)
}

// Run serves the Prometheus endpoint when configured and blocks until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close drains pending publications and releases resources held by the
// service.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.bus.Close()
		for _, done := range s.listeners {
			<-done
		}
		s.cancel()
		err = s.runLog.Close()
		for _, c := range s.closers {
			c()
		}
	})
	return err
}

func (s *Service) recordSolve(runID, source string, res *optimizer.Result) {
	ev := coremetrics.SolveEvent{
		RunID:       runID,
		Source:      source,
		Status:      res.Status,
		Objective:   res.Objective,
		Variables:   res.Variables,
		Constraints: res.Constraints,
		Duration:    res.Duration,
		Time:        time.Now(),
	}
	if err := s.sink.RecordSolve(ev); err != nil {
		s.log.Warnf("record solve: %v", err)
	}
}

func (s *Service) publishPlan(ev PlanSolved) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	msg := coremqtt.NewPlanMessage(ev.RunID, ev.Source, ev.Result)
	if err := s.publisher.PublishPlan(ctx, msg); err != nil {
		s.log.Warnf("publish run %s: %v", ev.RunID, err)
	}
}

// captureStoreError reports failures that are not caused by the request.
func (s *Service) captureStoreError(err error) {
	if errors.Is(err, model.ErrInvalidInput) || errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrExists) || errors.Is(err, context.Canceled) {
		return
	}
	s.log.Errorf("store: %v", err)
	coremon.CaptureException(err, map[string]string{"module": "store"})
}
