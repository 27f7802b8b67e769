// internal/model/campaign.go
package model

import "time"

type Channel string

const (
    ChannelChat  Channel = "chat"
    ChannelEmail Channel = "email"
)

func (c Channel) IsValid() bool {
    return c == ChannelChat || c == ChannelEmail
}

type CampaignStatus string

const (
    CampaignDraft     CampaignStatus = "draft"
    CampaignRunning   CampaignStatus = "running"
    CampaignPaused    CampaignStatus = "paused"
    CampaignCompleted CampaignStatus = "completed"
)

// ABVariant is one weighted branch of a campaign. Content and Subject are optional
// overrides of the campaign template for recipients drawn into this variant.
type ABVariant struct {
    ID                string  `json:"id"`
    AllocationPercent float64 `json:"allocation_percent"`
    Content           string  `json:"content,omitempty"`
    Subject           string  `json:"subject,omitempty"`
}

type Campaign struct {
    ID                   int            `db:"id" json:"id"`
    TenantID             int            `db:"tenant_id" json:"tenant_id"`
    Name                 string         `db:"name" json:"name"`
    Channel              Channel        `db:"channel" json:"channel"`
    Status               CampaignStatus `db:"status" json:"status"`
    TemplateContent      string         `db:"template_content" json:"template_content"`
    TemplateSubject      string         `db:"template_subject" json:"template_subject,omitempty"`
    UseAIPersonalization bool           `db:"use_ai_personalization" json:"use_ai_personalization"`
    ABVariants           []ABVariant    `db:"ab_variants" json:"ab_variants"`
    TotalLeads           int            `db:"total_leads" json:"total_leads"`
    ProcessedLeads       int            `db:"processed_leads" json:"processed_leads"`
    // RunningSince is when the campaign last entered running.
    RunningSince         *time.Time     `db:"running_since" json:"running_since,omitempty"`
    CreatedAt            time.Time      `db:"created_at" json:"created_at"`
    UpdatedAt            *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// CampaignStats counts a campaign's dispatch entries by status.
type CampaignStats struct {
    Total      int `json:"total"`
    Pending    int `json:"pending"`
    Processing int `json:"processing"`
    Paused     int `json:"paused"`
    Sent       int `json:"sent"`
    Failed     int `json:"failed"`
    Replied    int `json:"replied"`
}
