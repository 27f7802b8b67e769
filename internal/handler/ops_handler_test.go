package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/service"
)

type fakeTicker struct {
	result *service.TickResult
	err    error
}

func (f fakeTicker) Tick(ctx context.Context) (*service.TickResult, error) {
	return f.result, f.err
}

func TestHealthHandler(t *testing.T) {
	h := &OpsHandler{Logger: zerolog.Nop(), Ping: func(context.Context) error { return nil }}
	w := httptest.NewRecorder()
	h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.Ping = func(context.Context) error { return errors.New("down") }
	w = httptest.NewRecorder()
	h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWorkerTickHandler(t *testing.T) {
	h := &OpsHandler{Logger: zerolog.Nop(), Worker: fakeTicker{result: &service.TickResult{Claimed: 2, Sent: 1}}}
	w := httptest.NewRecorder()
	h.WorkerTickHandler(w, httptest.NewRequest(http.MethodPost, "/worker/tick", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res service.TickResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 2, res.Claimed)
	assert.Equal(t, 1, res.Sent)

	h.Worker = fakeTicker{err: errors.New("db gone")}
	w = httptest.NewRecorder()
	h.WorkerTickHandler(w, httptest.NewRequest(http.MethodPost, "/worker/tick", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
