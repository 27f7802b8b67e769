package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/ai"
	"github.com/unclebandit/leopard-outreach/internal/alert"
	"github.com/unclebandit/leopard-outreach/internal/channel"
	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
)

var nopLogger = zerolog.Nop()

func statusOf(r *repository.MemoryCampaignRepository, id int) model.CampaignStatus {
	c, err := r.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return c.Status
}

// MockAdapter records every message and fails while failing is set.
type MockAdapter struct {
	mu      sync.Mutex
	sent    []channel.Message
	failing bool
}

func (a *MockAdapter) Send(ctx context.Context, cfg *model.ProviderConfig, msg channel.Message) (*channel.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, msg)
	if a.failing {
		return &channel.Result{Success: false, StatusCode: 503, ErrorMessage: "unavailable"},
			&appErrors.ProviderError{Provider: string(cfg.Kind), StatusCode: 503, Err: errors.New("unavailable")}
	}
	return &channel.Result{Success: true, StatusCode: 200}, nil
}

func (a *MockAdapter) setFailing(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing = v
}

func (a *MockAdapter) messages() []channel.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]channel.Message(nil), a.sent...)
}

type MockGenerator struct {
	out string
	err error
}

func (g *MockGenerator) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.out, nil
}

type RecordingPublisher struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (p *RecordingPublisher) Publish(ctx context.Context, a alert.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return nil
}

// FailingEnqueueQueue accepts the first okChunks calls to Enqueue and fails
// the rest.
type FailingEnqueueQueue struct {
	*queue.InMemoryQueue
	okChunks int
	calls    int
}

func (q *FailingEnqueueQueue) Enqueue(ctx context.Context, entries []*model.DispatchEntry) (int, error) {
	q.calls++
	if q.calls > q.okChunks {
		return 0, errors.New("connection reset")
	}
	return q.InMemoryQueue.Enqueue(ctx, entries)
}

func enqueueAll(t *testing.T, q queue.Queue, entries []*model.DispatchEntry) {
	t.Helper()
	_, err := q.Enqueue(context.Background(), entries)
	require.NoError(t, err)
}
