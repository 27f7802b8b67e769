package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/queue"
)

// DispatchEntryRepositoryInterface is everything the planner, worker and
// control plane need from dispatch entry storage.
type DispatchEntryRepositoryInterface interface {
	queue.Queue

	PauseByCampaign(ctx context.Context, campaignID int) (int, error)
	ResumeByCampaign(ctx context.Context, campaignID int) (int, error)
	DeleteByCampaign(ctx context.Context, campaignID int) (int, error)

	// DeferDue moves the tenant's pending entries on ch scheduled before until
	// by one common offset, so the earliest lands on until and the gaps
	// between entries are kept.
	DeferDue(ctx context.Context, tenantID int, ch model.Channel, now, until time.Time) (int, error)

	// ShiftPending delays every pending entry of a campaign by the same amount.
	ShiftPending(ctx context.Context, campaignID int, by time.Duration) (int, error)

	RecordAttempt(ctx context.Context, a *model.DeliveryAttempt) error
	SentSince(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (int, error)
	AttemptStats(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (attempts, failures int, err error)

	CampaignStats(ctx context.Context, campaignID int) (*model.CampaignStats, error)
	CountOpen(ctx context.Context, campaignID int) (int, error)
	MarkReplied(ctx context.Context, campaignID, leadID int, at time.Time) (bool, error)
	ListByCampaign(ctx context.Context, campaignID int) ([]*model.DispatchEntry, error)
}

type DispatchEntryRepository struct {
	DB *sql.DB
}

const entryColumns = `id, tenant_id, campaign_id, lead_id, channel, COALESCE(subject, ''), content, content_kind,
	status, scheduled_for, retry_count, max_retries, next_retry_at, metadata, sent_at,
	COALESCE(error_message, ''), claimed_at, replied_at, created_at, updated_at`

const insertEntryColumns = 14

// Enqueue inserts one batch of entries in a single statement. Existing
// (campaign_id, lead_id) pairs are left untouched and not counted.
func (r *DispatchEntryRepository) Enqueue(ctx context.Context, entries []*model.DispatchEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := time.Now()
	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*insertEntryColumns)
	for i, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode metadata of entry %s: %w", e.ID, err)
		}
		base := i * insertEntryColumns
		ph := make([]string, insertEntryColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, e.ID, e.TenantID, e.CampaignID, e.LeadID, e.Channel, e.Subject, e.Content,
			e.ContentKind, e.Status, e.ScheduledFor, e.RetryCount, e.MaxRetries, meta, now)
	}

	query := `
        INSERT INTO dispatch_entries
        (id, tenant_id, campaign_id, lead_id, channel, subject, content, content_kind, status,
         scheduled_for, retry_count, max_retries, metadata, created_at)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (campaign_id, lead_id) DO NOTHING
    `
	return r.execCount(ctx, query, args...)
}

func (r *DispatchEntryRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.DispatchEntry, error) {
	query := `
        UPDATE dispatch_entries
        SET status='processing', claimed_at=$1, updated_at=$1
        WHERE id IN (
            SELECT e.id FROM dispatch_entries e
            JOIN campaigns c ON c.id = e.campaign_id AND c.status = 'running'
            WHERE e.status='pending' AND e.scheduled_for <= $1
            ORDER BY e.scheduled_for
            LIMIT $2
            FOR UPDATE OF e SKIP LOCKED
        )
        AND status='pending'
        RETURNING ` + entryColumns
	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *DispatchEntryRepository) Ack(ctx context.Context, id string, sentAt time.Time) error {
	query := `
        UPDATE dispatch_entries
        SET status='sent', sent_at=$1, next_retry_at=NULL, error_message=NULL, claimed_at=NULL, updated_at=$1
        WHERE id=$2 AND status='processing'
    `
	return r.execClaimed(ctx, query, sentAt, id)
}

func (r *DispatchEntryRepository) Fail(ctx context.Context, id string, f model.Failure) error {
	if f.Permanent() {
		query := `
            UPDATE dispatch_entries
            SET status='failed', retry_count=$1, error_message=$2, next_retry_at=NULL, claimed_at=NULL, updated_at=NOW()
            WHERE id=$3 AND status='processing'
        `
		return r.execClaimed(ctx, query, f.RetryCount, f.Message, id)
	}
	query := `
        UPDATE dispatch_entries
        SET status='pending', retry_count=$1, error_message=$2, next_retry_at=$3, scheduled_for=$3,
            claimed_at=NULL, updated_at=NOW()
        WHERE id=$4 AND status='processing' AND $1 <= max_retries
    `
	return r.execClaimed(ctx, query, f.RetryCount, f.Message, *f.NextRetryAt, id)
}

func (r *DispatchEntryRepository) Release(ctx context.Context, id string, scheduledFor time.Time) error {
	query := `
        UPDATE dispatch_entries
        SET status='pending', scheduled_for=$1, claimed_at=NULL, updated_at=NOW()
        WHERE id=$2 AND status='processing'
    `
	return r.execClaimed(ctx, query, scheduledFor, id)
}

func (r *DispatchEntryRepository) RequeueStale(ctx context.Context, claimedBefore time.Time) (int, error) {
	query := `
        UPDATE dispatch_entries
        SET status='pending', claimed_at=NULL, updated_at=NOW()
        WHERE status='processing' AND claimed_at < $1
    `
	return r.execCount(ctx, query, claimedBefore)
}

func (r *DispatchEntryRepository) PauseByCampaign(ctx context.Context, campaignID int) (int, error) {
	query := `UPDATE dispatch_entries SET status='paused', updated_at=NOW() WHERE campaign_id=$1 AND status='pending'`
	return r.execCount(ctx, query, campaignID)
}

func (r *DispatchEntryRepository) ResumeByCampaign(ctx context.Context, campaignID int) (int, error) {
	query := `UPDATE dispatch_entries SET status='pending', updated_at=NOW() WHERE campaign_id=$1 AND status='paused'`
	return r.execCount(ctx, query, campaignID)
}

func (r *DispatchEntryRepository) DeleteByCampaign(ctx context.Context, campaignID int) (int, error) {
	return r.execCount(ctx, `DELETE FROM dispatch_entries WHERE campaign_id=$1`, campaignID)
}

func (r *DispatchEntryRepository) DeferDue(ctx context.Context, tenantID int, ch model.Channel, now, until time.Time) (int, error) {
	query := `
        WITH deferred AS (
            SELECT id, scheduled_for - MIN(scheduled_for) OVER () AS offset_from_first
            FROM dispatch_entries
            WHERE tenant_id=$3 AND channel=$4 AND status='pending' AND scheduled_for < $1
        )
        UPDATE dispatch_entries e
        SET scheduled_for = $1::timestamptz + d.offset_from_first, updated_at=$2
        FROM deferred d
        WHERE e.id = d.id AND e.status='pending'
    `
	return r.execCount(ctx, query, until, now, tenantID, ch)
}

func (r *DispatchEntryRepository) ShiftPending(ctx context.Context, campaignID int, by time.Duration) (int, error) {
	query := `
        UPDATE dispatch_entries
        SET scheduled_for = scheduled_for + make_interval(secs => $1), updated_at=NOW()
        WHERE campaign_id=$2 AND status='pending'
    `
	return r.execCount(ctx, query, by.Seconds(), campaignID)
}

func (r *DispatchEntryRepository) RecordAttempt(ctx context.Context, a *model.DeliveryAttempt) error {
	query := `
        INSERT INTO delivery_attempts (entry_id, tenant_id, campaign_id, channel, success, status_code, error, attempted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query, a.EntryID, a.TenantID, a.CampaignID, a.Channel, a.Success,
		a.StatusCode, a.Error, a.AttemptedAt)
	return err
}

func (r *DispatchEntryRepository) SentSince(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (int, error) {
	query := `
        SELECT COUNT(*) FROM delivery_attempts
        WHERE tenant_id=$1 AND channel=$2 AND success AND attempted_at >= $3
    `
	var n int
	err := r.DB.QueryRowContext(ctx, query, tenantID, ch, since).Scan(&n)
	return n, err
}

func (r *DispatchEntryRepository) AttemptStats(ctx context.Context, tenantID int, ch model.Channel, since time.Time) (int, int, error) {
	query := `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT success) FROM delivery_attempts
        WHERE tenant_id=$1 AND channel=$2 AND attempted_at >= $3
    `
	var attempts, failures int
	err := r.DB.QueryRowContext(ctx, query, tenantID, ch, since).Scan(&attempts, &failures)
	return attempts, failures, err
}

func (r *DispatchEntryRepository) CampaignStats(ctx context.Context, campaignID int) (*model.CampaignStats, error) {
	query := `
        SELECT status, COUNT(*), COUNT(replied_at)
        FROM dispatch_entries
        WHERE campaign_id = $1
        GROUP BY status
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &model.CampaignStats{}
	for rows.Next() {
		var status model.EntryStatus
		var count, replied int
		if err := rows.Scan(&status, &count, &replied); err != nil {
			return nil, err
		}
		s.Total += count
		s.Replied += replied
		switch status {
		case model.EntryPending:
			s.Pending = count
		case model.EntryProcessing:
			s.Processing = count
		case model.EntryPaused:
			s.Paused = count
		case model.EntrySent:
			s.Sent = count
		case model.EntryFailed:
			s.Failed = count
		}
	}
	return s, rows.Err()
}

func (r *DispatchEntryRepository) CountOpen(ctx context.Context, campaignID int) (int, error) {
	query := `
        SELECT COUNT(*) FROM dispatch_entries
        WHERE campaign_id=$1 AND status IN ('pending', 'processing', 'paused')
    `
	var n int
	err := r.DB.QueryRowContext(ctx, query, campaignID).Scan(&n)
	return n, err
}

func (r *DispatchEntryRepository) MarkReplied(ctx context.Context, campaignID, leadID int, at time.Time) (bool, error) {
	query := `
        UPDATE dispatch_entries SET replied_at=$1, updated_at=$1
        WHERE campaign_id=$2 AND lead_id=$3 AND status='sent' AND replied_at IS NULL
    `
	n, err := r.execCount(ctx, query, at, campaignID, leadID)
	return n == 1, err
}

func (r *DispatchEntryRepository) ListByCampaign(ctx context.Context, campaignID int) ([]*model.DispatchEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM dispatch_entries WHERE campaign_id=$1 ORDER BY scheduled_for`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *DispatchEntryRepository) execClaimed(ctx context.Context, query string, args ...interface{}) error {
	n, err := r.execCount(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.ErrClaimLost
	}
	return nil
}

func (r *DispatchEntryRepository) execCount(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanEntries(rows *sql.Rows) ([]*model.DispatchEntry, error) {
	entries := []*model.DispatchEntry{}
	for rows.Next() {
		var e model.DispatchEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CampaignID, &e.LeadID, &e.Channel, &e.Subject, &e.Content,
			&e.ContentKind, &e.Status, &e.ScheduledFor, &e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &meta,
			&e.SentAt, &e.ErrorMessage, &e.ClaimedAt, &e.RepliedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of entry %s: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ DispatchEntryRepositoryInterface = (*DispatchEntryRepository)(nil)
var _ DispatchEntryRepositoryInterface = (*queue.InMemoryQueue)(nil)
