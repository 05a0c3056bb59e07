package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilos1/harvestplan/config"
	"github.com/keilos1/harvestplan/core/lp"
	coremetrics "github.com/keilos1/harvestplan/core/metrics"
	"github.com/keilos1/harvestplan/core/model"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
	"github.com/keilos1/harvestplan/core/optimizer"
	"github.com/keilos1/harvestplan/core/planlog"
	"github.com/keilos1/harvestplan/core/store"
	"github.com/keilos1/harvestplan/infra/mqtt"
)

type recordingSink struct {
	mu     sync.Mutex
	solves []coremetrics.SolveEvent
	edits  []coremetrics.EditEvent
}

func (r *recordingSink) RecordSolve(ev coremetrics.SolveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solves = append(r.solves, ev)
	return nil
}

func (r *recordingSink) RecordEdit(ev coremetrics.EditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, ev)
	return nil
}

type captureMonitor struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (c *captureMonitor) CaptureException(err error, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}
func (c *captureMonitor) CapturePanic(any)    {}
func (c *captureMonitor) Flush(time.Duration) {}

func useMonitor(t *testing.T) *captureMonitor {
	t.Helper()
	m := &captureMonitor{}
	coremon.Init(m)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })
	return m
}

type fixture struct {
	svc  *Service
	sink *recordingSink
	pub  *mqtt.MockPublisher
	runs planlog.Store
}

func newFixture(t *testing.T, repo store.Repository) *fixture {
	t.Helper()
	runs, err := planlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	f := &fixture{sink: &recordingSink{}, pub: mqtt.NewMockPublisher(), runs: runs}
	f.svc = NewWithDeps(Deps{
		Repo:      repo,
		RunLog:    runs,
		Sink:      f.sink,
		Publisher: f.pub,
		Options:   optimizer.DefaultOptions(),
	})
	t.Cleanup(func() { _ = f.svc.Close() })
	return f
}

func TestService_SolveDefaultDataset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(model.DefaultDataset()))

	out, err := f.svc.Solve(ctx, SolveRequest{Source: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)
	assert.Equal(t, lp.Optimal, out.Result.Status)
	assert.InDelta(t, 887.0899, out.Result.Objective, 1e-3)
	assert.True(t, out.Missing.Empty())

	recs, err := f.svc.Runs(ctx, planlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.RunID, recs[0].ID.String())
	assert.Equal(t, "test", recs[0].Source)

	require.Len(t, f.sink.solves, 1)
	assert.Equal(t, out.RunID, f.sink.solves[0].RunID)
	assert.Equal(t, 6, f.sink.solves[0].Variables)

	require.NoError(t, f.svc.Close())
	msgs := f.pub.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, out.RunID, msgs[0].RunID)
	assert.Len(t, msgs[0].Plan, 4)
}

func TestService_IncompleteData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(model.DefaultDataset()))
	_, err := f.svc.Edit(ctx, "rate.unset", func(d *model.Dataset) error {
		return d.UnsetIncome(model.Pair{Site: 2, Month: 1})
	})
	require.NoError(t, err)

	out, err := f.svc.Solve(ctx, SolveRequest{Source: "test"})
	assert.ErrorIs(t, err, ErrIncompleteData)
	require.NotNil(t, out)
	assert.Equal(t, []model.Pair{{Site: 2, Month: 1}}, out.Missing.Income)
	assert.Nil(t, out.Result)

	recs, _ := f.svc.Runs(ctx, planlog.Query{})
	assert.Empty(t, recs)

	out, err = f.svc.Solve(ctx, SolveRequest{Source: "test", DropIncomplete: true})
	require.NoError(t, err)
	assert.True(t, out.Result.IsOptimal())
	assert.NotContains(t, out.Result.Allocation, model.Pair{Site: 2, Month: 1})
}

func TestService_InsufficientDataIsLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(model.NewDataset()))

	out, err := f.svc.Solve(ctx, SolveRequest{Source: "test"})
	assert.ErrorIs(t, err, optimizer.ErrInsufficientData)
	assert.Nil(t, out.Result)

	recs, err := f.svc.Runs(ctx, planlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Error, "insufficient data")
	assert.Equal(t, planlog.StatusInsufficientData, recs[0].Status)

	solverErr := planlog.StatusSolverError
	recs, err = f.svc.Runs(ctx, planlog.Query{Status: &solverErr})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, f.sink.solves)

	require.NoError(t, f.svc.Close())
	assert.Empty(t, f.pub.Published())
}

func TestService_EditRecordsEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(model.DefaultDataset()))

	d, err := f.svc.Edit(ctx, "site.add", func(d *model.Dataset) error {
		return d.AddSite(3, 25, map[model.Month]float64{1: 8})
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, d.AreaCaps[3])

	require.Len(t, f.sink.edits, 1)
	assert.Equal(t, "site.add", f.sink.edits[0].Op)
	assert.Equal(t, 3, f.sink.edits[0].Sites)
	assert.Equal(t, 3, f.sink.edits[0].Months)

	_, err = f.svc.Edit(ctx, "site.add", func(d *model.Dataset) error { return d.AddSite(3, 1, nil) })
	assert.ErrorIs(t, err, model.ErrExists)
	assert.Len(t, f.sink.edits, 1)
}

type brokenRepo struct{ store.Memory }

func (b *brokenRepo) Save(context.Context, model.Dataset) error { return errors.New("disk full") }

func TestService_StoreFailureIsCaptured(t *testing.T) {
	mon := useMonitor(t)
	f := newFixture(t, &brokenRepo{})

	_, err := f.svc.Edit(context.Background(), "month.add", func(d *model.Dataset) error {
		return d.AddMonth(4, 100, nil)
	})
	require.Error(t, err)
	require.Len(t, mon.errs, 1)
	assert.Equal(t, "store", mon.tags[0]["module"])

	_, err = f.svc.Edit(context.Background(), "month.set", func(d *model.Dataset) error {
		return d.SetLaborCap(9, 1)
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Len(t, mon.errs, 1)
}

func TestService_PublishFailureDoesNotFailSolve(t *testing.T) {
	f := newFixture(t, store.NewMemory(model.DefaultDataset()))
	f.pub.Fail = errors.New("broker down")

	_, err := f.svc.Solve(context.Background(), SolveRequest{Source: "test"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Close())
	assert.Empty(t, f.pub.Published())
}

func TestService_Init(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(model.NewDataset()))
	created, err := f.svc.Init(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "harvest.xlsx")
	cfg.RunLog.Backend = config.RunLogNone
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	created, err = svc.Init(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	d, err := svc.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultDataset(), d)
}

func TestService_CloseTwice(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Close())
	assert.NoError(t, f.svc.Close())
}
