// Package channel holds the transport adapters that perform the actual network
// send for a dispatch entry.
package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

type Message struct {
	To      string
	Subject string
	Content string
}

// Result mirrors what the provider answered. It is filled in even when Send
// returns an error, so the caller can record the status code.
type Result struct {
	Success      bool   `json:"success"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type Adapter interface {
	Send(ctx context.Context, cfg *model.ProviderConfig, msg Message) (*Result, error)
}

// Registry maps provider kinds to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.ProviderKind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.ProviderKind]Adapter)}
}

func (r *Registry) Register(kind model.ProviderKind, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[kind] = a
}

func (r *Registry) For(kind model.ProviderKind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider kind %q", kind)
	}
	return a, nil
}

const maxResponseBody = 4 << 10

// httpSender is the shared plumbing of the HTTP based adapters: one client,
// one limiter on outbound requests, bounded response capture.
type httpSender struct {
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPSender(client *http.Client, ratePerSec float64) httpSender {
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return httpSender{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (s httpSender) do(ctx context.Context, req *http.Request) (*Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}
	resp, err := s.client.Do(req.WithContext(ctx))
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res := &Result{StatusCode: resp.StatusCode, ResponseBody: string(body)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return res, fmt.Errorf("%s: %s", res.ErrorMessage, res.ResponseBody)
	}
	res.Success = true
	return res, nil
}
