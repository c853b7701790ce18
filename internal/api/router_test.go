package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flexprice/ispledger/internal/config"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/flexprice/ispledger/internal/metrics"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(ctx context.Context) error {
	return p.err
}

func serve(t *testing.T, pinger Pinger, path string) *httptest.ResponseRecorder {
	t.Helper()
	m := metrics.NewMetrics(config.GetDefaultConfig())
	m.IncrChargeCreated("recurring")
	router := NewRouter(NewHealthHandler(pinger, logger.NewNopLogger()), m, logger.NewNopLogger())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRouter(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		w := serve(t, fakePinger{}, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ok"`)
	})

	t.Run("ready with database down", func(t *testing.T) {
		w := serve(t, fakePinger{err: errors.New("connection refused")}, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("metrics", func(t *testing.T) {
		w := serve(t, fakePinger{}, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `ispledger_charges_created_total{charge_type="recurring"} 1`)
	})
}
