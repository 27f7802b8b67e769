package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/service"
)

type countingTicker struct {
	calls    int
	deadline bool
	err      error
}

func (c *countingTicker) Tick(ctx context.Context) (*service.TickResult, error) {
	c.calls++
	_, c.deadline = ctx.Deadline()
	return &service.TickResult{}, c.err
}

func TestTickJobRunsWithDeadline(t *testing.T) {
	w := &countingTicker{}
	job := tickJob(context.Background(), w, time.Minute, zerolog.Nop())

	job()
	job()
	assert.Equal(t, 2, w.calls)
	assert.True(t, w.deadline)

	w.err = errors.New("db gone")
	assert.NotPanics(t, job)
}

func TestNewScheduler(t *testing.T) {
	w := &countingTicker{}
	c, err := newScheduler(context.Background(), "@every 1m", time.Minute, w, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = newScheduler(context.Background(), "every minute please", time.Minute, w, zerolog.Nop())
	assert.Error(t, err)
}
