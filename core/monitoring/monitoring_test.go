package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordMonitor struct {
	errs    []error
	tags    map[string]string
	panics  []any
	flushed bool
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(v any)  { r.panics = append(r.panics, v) }
func (r *recordMonitor) Flush(time.Duration) { r.flushed = true }

func install(t *testing.T) *recordMonitor {
	t.Helper()
	m := &recordMonitor{}
	Init(m)
	t.Cleanup(func() { Init(NopMonitor{}) })
	return m
}

func TestCaptureException(t *testing.T) {
	m := install(t)
	CaptureException(nil, nil)
	CaptureException(errors.New("disk full"), map[string]string{"module": "store"})
	require.Len(t, m.errs, 1)
	assert.Equal(t, "store", m.tags["module"])
}

func TestRecover_Repanics(t *testing.T) {
	m := install(t)
	assert.PanicsWithValue(t, "boom", func() {
		defer Recover()
		panic("boom")
	})
	assert.Equal(t, []any{"boom"}, m.panics)
	assert.True(t, m.flushed)
}

func TestRecoverError(t *testing.T) {
	m := install(t)
	run := func() (err error) {
		defer RecoverError(&err)
		panic("solver blew up")
	}
	err := run()
	assert.EqualError(t, err, "panic: solver blew up")
	assert.Len(t, m.panics, 1)
}

func TestInit_IgnoresNil(t *testing.T) {
	m := install(t)
	Init(nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, m.errs, 1)
}
