// internal/model/dispatch_entry.go
package model

import "time"

type EntryStatus string

const (
    EntryPending    EntryStatus = "pending"
    EntryProcessing EntryStatus = "processing"
    EntryPaused     EntryStatus = "paused"
    EntrySent       EntryStatus = "sent"
    EntryFailed     EntryStatus = "failed"
)

// ContentKind tells the worker whether Content is final text or a fallback
// to be replaced by AI generation right before the send.
type ContentKind string

const (
    ContentTemplate   ContentKind = "template"
    ContentAIGenerate ContentKind = "ai_generate"
)

type EntryMetadata struct {
    ABVariant string `json:"ab_variant,omitempty"`
}

type DispatchEntry struct {
    ID           string        `db:"id" json:"id"`
    TenantID     int           `db:"tenant_id" json:"tenant_id"`
    CampaignID   int           `db:"campaign_id" json:"campaign_id"`
    LeadID       int           `db:"lead_id" json:"lead_id"`
    Channel      Channel       `db:"channel" json:"channel"`
    Subject      string        `db:"subject" json:"subject,omitempty"`
    Content      string        `db:"content" json:"content"`
    ContentKind  ContentKind   `db:"content_kind" json:"content_kind"`
    Status       EntryStatus   `db:"status" json:"status"`
    ScheduledFor time.Time     `db:"scheduled_for" json:"scheduled_for"`
    RetryCount   int           `db:"retry_count" json:"retry_count"`
    MaxRetries   int           `db:"max_retries" json:"max_retries"`
    NextRetryAt  *time.Time    `db:"next_retry_at" json:"next_retry_at,omitempty"`
    Metadata     EntryMetadata `db:"metadata" json:"metadata"`
    SentAt       *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
    ErrorMessage string        `db:"error_message" json:"error_message,omitempty"`
    ClaimedAt    *time.Time    `db:"claimed_at" json:"claimed_at,omitempty"`
    RepliedAt    *time.Time    `db:"replied_at" json:"replied_at,omitempty"`
    CreatedAt    time.Time     `db:"created_at" json:"created_at"`
    UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Failure describes the outcome of a failed send. A nil NextRetryAt marks the
// entry as permanently failed.
type Failure struct {
    RetryCount  int
    NextRetryAt *time.Time
    Message     string
}

func (f Failure) Permanent() bool { return f.NextRetryAt == nil }

// DeliveryAttempt is one call to a channel adapter, kept for the per tenant
// daily limit and ban suspicion counters.
type DeliveryAttempt struct {
    EntryID     string    `json:"entry_id"`
    TenantID    int       `json:"tenant_id"`
    CampaignID  int       `json:"campaign_id"`
    Channel     Channel   `json:"channel"`
    Success     bool      `json:"success"`
    StatusCode  int       `json:"status_code"`
    Error       string    `json:"error,omitempty"`
    AttemptedAt time.Time `json:"attempted_at"`
}
