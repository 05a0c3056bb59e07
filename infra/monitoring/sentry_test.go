package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilos1/harvestplan/config"
	coremon "github.com/keilos1/harvestplan/core/monitoring"
)

func TestNewSentryMonitor_NoDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitor_BadDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestSentryMonitor_SendsEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dsn := strings.Replace(srv.URL, "http://", "http://public@", 1) + "/1"
	m, err := NewSentryMonitor(config.SentryConfig{DSN: dsn, Environment: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sentry.Init(sentry.ClientOptions{}) })

	m.CaptureException(errors.New("workbook locked"), map[string]string{"module": "store"})
	m.CaptureException(errors.New("lp: solver error"), map[string]string{"module": "optimizer", "run_id": "run-42"})
	m.Flush(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "workbook locked")
	assert.Contains(t, bodies[0], `"module":"store"`)
	assert.Contains(t, bodies[0], `"fingerprint":["{{ default }}","store"]`)

	assert.Contains(t, bodies[1], `"module":"optimizer"`)
	assert.Contains(t, bodies[1], `"run":{"id":"run-42"}`)
	assert.NotContains(t, bodies[1], `"run_id":"run-42"`)
}
