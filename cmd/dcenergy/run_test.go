package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/dc-energy/pkg/calculation"
	"github.com/example/dc-energy/pkg/config"
	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"github.com/example/dc-energy/pkg/history"
	"github.com/example/dc-energy/pkg/projectfile"
	"github.com/example/dc-energy/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const project = `
datacenter:
  name: DC1
project: Baseline
energy:
  e_it_input_kwh: 8000000
  e_dc_input_kwh: 8760000
datahall:
  area_m2: 1000
lighting:
  lighting_type: LED High Bay
`

func newTestEnv(t *testing.T, withHistory bool) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := &env{
		cfg:     config.Default(),
		logger:  logger,
		store:   energymodel.NewMemoryStore(logger),
		catalog: equipment.NewMemoryCatalog(equipment.DefaultRows()),
	}
	var opts []calculation.Option
	if withHistory {
		e.history = history.NewMemoryStore(history.DefaultRetention)
		opts = append(opts, calculation.WithRecorder(e.history))
	}
	var err error
	e.engine, err = calculation.NewEngine(e.store, e.catalog, logger, opts...)
	require.NoError(t, err)
	e.engine.Attach()
	return e
}

func syncedWatcher(t *testing.T, e *env) *projectfile.Watcher {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "baseline.yaml"), []byte(project), 0o644))

	w := projectfile.NewWatcher(dir, projectfile.NewApplier(e.store, e.logger), e.logger)
	n, err := w.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return w
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestServePortfolioSummary(t *testing.T) {
	e := newTestEnv(t, false)
	mux := e.serveMux(syncedWatcher(t, e))

	rr := get(t, mux, "/portfolio-summary")
	require.Equal(t, http.StatusOK, rr.Code)

	var s report.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.Equal(t, 1, s.Projects)
	assert.InDelta(t, 8_000_000, s.TotalITKWh, 1e-6)
	require.NotNil(t, s.PortfolioPUE)
	assert.InDelta(t, 1.095, *s.PortfolioPUE, 1e-9)

	assert.Equal(t, http.StatusOK, get(t, mux, "/health").Code)
}

func TestServeHistory(t *testing.T) {
	e := newTestEnv(t, true)
	w := syncedWatcher(t, e)
	mux := e.serveMux(w)
	id := w.Projects()[0].ProjectID

	rr := get(t, mux, "/history?project="+id)
	require.Equal(t, http.StatusOK, rr.Code)

	var snaps []history.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snaps))
	require.NotEmpty(t, snaps)
	last := snaps[len(snaps)-1]
	assert.Equal(t, id, last.ProjectID)
	require.NotNil(t, last.PUEInput)
	assert.InDelta(t, 1.095, *last.PUEInput, 1e-9)

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/history").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/history?project="+id+"&since=soon").Code)
}

func TestServeHistoryDisabled(t *testing.T) {
	e := newTestEnv(t, false)
	mux := e.serveMux(syncedWatcher(t, e))

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/history?project=x").Code)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	cfg, err := loadConfig(&options{logLevel: "debug", redisAddr: "redis:6380"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6380", cfg.Store.Redis.Addr)

	_, err = loadConfig(&options{logLevel: "loud"})
	assert.Error(t, err)
}
