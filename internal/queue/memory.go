package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

// InMemoryQueue keeps dispatch entries in process. It implements the full
// dispatch entry store, so the worker and control plane run against it in
// tests and in STORE_DRIVER=memory mode.
type InMemoryQueue struct {
	mu        sync.Mutex
	entries   map[string]*model.DispatchEntry
	pairs     map[[2]int]string
	attempts  []model.DeliveryAttempt
	claimable func(campaignID int) bool
}

type Option func(*InMemoryQueue)

// WithClaimFilter restricts ClaimDue to entries whose campaign passes fn,
// mirroring the running-campaign join of the PostgreSQL claim.
func WithClaimFilter(fn func(campaignID int) bool) Option {
	return func(q *InMemoryQueue) { q.claimable = fn }
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		entries: make(map[string]*model.DispatchEntry),
		pairs:   make(map[[2]int]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, entries []*model.DispatchEntry) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range entries {
		key := [2]int{e.CampaignID, e.LeadID}
		if _, ok := q.pairs[key]; ok {
			continue
		}
		c := *e
		now := time.Now()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		q.entries[c.ID] = &c
		q.pairs[key] = c.ID
		n++
	}
	return n, nil
}

func (q *InMemoryQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.DispatchEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]*model.DispatchEntry, 0)
	for _, e := range q.entries {
		if e.Status != model.EntryPending || e.ScheduledFor.After(now) {
			continue
		}
		if q.claimable != nil && !q.claimable(e.CampaignID) {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.DispatchEntry, 0, len(due))
	for _, e := range due {
		claimedAt := now
		e.Status = model.EntryProcessing
		e.ClaimedAt = &claimedAt
		e.UpdatedAt = now
		c := *e
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (q *InMemoryQueue) Ack(ctx context.Context, id string, sentAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.claimedLocked(id)
	if err != nil {
		return err
	}
	e.Status = model.EntrySent
	e.SentAt = &sentAt
	e.NextRetryAt = nil
	e.ErrorMessage = ""
	e.ClaimedAt = nil
	e.UpdatedAt = sentAt
	return nil
}

func (q *InMemoryQueue) Fail(ctx context.Context, id string, f model.Failure) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.claimedLocked(id)
	if err != nil {
		return err
	}
	e.RetryCount = f.RetryCount
	e.ErrorMessage = f.Message
	e.ClaimedAt = nil
	e.UpdatedAt = time.Now()
	if f.Permanent() {
		e.Status = model.EntryFailed
		e.NextRetryAt = nil
		return nil
	}
	next := *f.NextRetryAt
	e.Status = model.EntryPending
	e.NextRetryAt = &next
	e.ScheduledFor = next
	return nil
}

func (q *InMemoryQueue) Release(ctx context.Context, id string, scheduledFor time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.claimedLocked(id)
	if err != nil {
		return err
	}
	e.Status = model.EntryPending
	e.ScheduledFor = scheduledFor
	e.ClaimedAt = nil
	e.UpdatedAt = time.Now()
	return nil
}

func (q *InMemoryQueue) RequeueStale(ctx context.Context, claimedBefore time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.Status == model.EntryProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore) {
			e.Status = model.EntryPending
			e.ClaimedAt = nil
			e.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (q *InMemoryQueue) PauseByCampaign(ctx context.Context, campaignID int) (int, error) {
	return q.moveStatus(campaignID, model.EntryPending, model.EntryPaused), nil
}

func (q *InMemoryQueue) ResumeByCampaign(ctx context.Context, campaignID int) (int, error) {
	return q.moveStatus(campaignID, model.EntryPaused, model.EntryPending), nil
}

func (q *InMemoryQueue) moveStatus(campaignID int, from, to model.EntryStatus) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.CampaignID == campaignID && e.Status == from {
			e.Status = to
			e.UpdatedAt = time.Now()
			n++
		}
	}
	return n
}

func (q *InMemoryQueue) DeleteByCampaign(ctx context.Context, campaignID int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, e := range q.entries {
		if e.CampaignID == campaignID {
			delete(q.pairs, [2]int{e.CampaignID, e.LeadID})
			delete(q.entries, id)
			n++
		}
	}
	return n, nil
}

func (q *InMemoryQueue) DeferDue(ctx context.Context, tenantID int, ch model.Channel, now, until time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*model.DispatchEntry
	var first time.Time
	for _, e := range q.entries {
		if e.TenantID != tenantID || e.Channel != ch || e.Status != model.EntryPending || !e.ScheduledFor.Before(until) {
			continue
		}
		if len(due) == 0 || e.ScheduledFor.Before(first) {
			first = e.ScheduledFor
		}
		due = append(due, e)
	}

	shift := until.Sub(first)
	for _, e := range due {
		e.ScheduledFor = e.ScheduledFor.Add(shift)
		e.UpdatedAt = now
	}
	return len(due), nil
}

func (q *InMemoryQueue) ShiftPending(ctx context.Context, campaignID int, by time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.CampaignID == campaignID && e.Status == model.EntryPending {
			e.ScheduledFor = e.ScheduledFor.Add(by)
			n++
		}
	}
	return n, nil
}

func (q *InMemoryQueue) RecordAttempt(ctx context.Context, a *model.DeliveryAttempt) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts = append(q.attempts, *a)
	return nil
}

func (q *InMemoryQueue) SentSince(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, a := range q.attempts {
		if a.TenantID == tenantID && a.Channel == ch && a.Success && !a.AttemptedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (q *InMemoryQueue) AttemptStats(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (int, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	attempts, failures := 0, 0
	for _, a := range q.attempts {
		if a.TenantID != tenantID || a.Channel != ch || a.AttemptedAt.Before(since) {
			continue
		}
		attempts++
		if !a.Success {
			failures++
		}
	}
	return attempts, failures, nil
}

func (q *InMemoryQueue) CampaignStats(ctx context.Context, campaignID int) (*model.CampaignStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := &model.CampaignStats{}
	for _, e := range q.entries {
		if e.CampaignID != campaignID {
			continue
		}
		s.Total++
		switch e.Status {
		case model.EntryPending:
			s.Pending++
		case model.EntryProcessing:
			s.Processing++
		case model.EntryPaused:
			s.Paused++
		case model.EntrySent:
			s.Sent++
		case model.EntryFailed:
			s.Failed++
		}
		if e.RepliedAt != nil {
			s.Replied++
		}
	}
	return s, nil
}

func (q *InMemoryQueue) CountOpen(ctx context.Context, campaignID int) (int, error) {
	s, err := q.CampaignStats(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return s.Pending + s.Processing + s.Paused, nil
}

func (q *InMemoryQueue) MarkReplied(ctx context.Context, campaignID, leadID int, at time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.pairs[[2]int{campaignID, leadID}]
	if !ok {
		return false, nil
	}
	e := q.entries[id]
	if e.Status != model.EntrySent || e.RepliedAt != nil {
		return false, nil
	}
	e.RepliedAt = &at
	return true, nil
}

func (q *InMemoryQueue) ListByCampaign(ctx context.Context, campaignID int) ([]*model.DispatchEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*model.DispatchEntry, 0)
	for _, e := range q.entries {
		if e.CampaignID == campaignID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (q *InMemoryQueue) claimedLocked(id string) (*model.DispatchEntry, error) {
	e, ok := q.entries[id]
	if !ok || e.Status != model.EntryProcessing {
		return nil, appErrors.ErrClaimLost
	}
	return e, nil
}
