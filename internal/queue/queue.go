package queue

import (
	"context"
	"time"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

// Queue is the dispatch entry work queue. The PostgreSQL repository backs it
// with a table; a broker can replace it without touching planning or pacing.
type Queue interface {
	// Enqueue stores new pending entries and returns how many were inserted.
	// Entries whose (campaign, lead) pair already exists are ignored.
	Enqueue(ctx context.Context, entries []*model.DispatchEntry) (int, error)

	// ClaimDue moves up to limit pending entries with scheduled_for <= now
	// to processing and returns them. The move only succeeds for entries that
	// are still pending at update time, so overlapping callers never share an entry.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.DispatchEntry, error)

	// Ack marks a claimed entry as sent.
	Ack(ctx context.Context, id string, sentAt time.Time) error

	// Fail records a failed send: back to pending at NextRetryAt, or failed
	// for good when NextRetryAt is nil.
	Fail(ctx context.Context, id string, f model.Failure) error

	// Release returns a claimed entry to pending at scheduledFor without
	// counting an attempt.
	Release(ctx context.Context, id string, scheduledFor time.Time) error

	// RequeueStale returns entries stuck in processing since before
	// claimedBefore to pending.
	RequeueStale(ctx context.Context, claimedBefore time.Time) (int, error)
}
