package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/swim-eval-api/internal/service"
)

type pingStub struct{ err error }

func (p pingStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandlerHealth(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/health", "")
	NewMetricsHandler(nil, pingStub{}, nil).Health(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/health", "")
	NewMetricsHandler(nil, pingStub{err: errors.New("down")}, nil).Health(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordEvaluationWrite("created")
	c, w := newTestContext(http.MethodGet, "/metrics", "")
	NewMetricsHandler(metrics.Handler(), nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evaluation_writes_total")
}
