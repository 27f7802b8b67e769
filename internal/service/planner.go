package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/pacing"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
)

type PlannerSettings struct {
	ChunkSize  int
	MaxRetries int
	Location   *time.Location
}

// Planner turns a campaign and its leads into scheduled dispatch entries.
type Planner struct {
	Campaigns repository.CampaignRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Entries   queue.Queue
	Settings  PlannerSettings
	Logger    zerolog.Logger

	// Now and Delay are replaced in tests.
	Now   func() time.Time
	Delay func(model.Channel) time.Duration
}

type SubmitOptions struct {
	UseAI bool `json:"use_ai"`
}

type SubmitResult struct {
	Success                  bool `json:"success"`
	Count                    int  `json:"count"`
	EstimatedDurationMinutes int  `json:"estimated_duration_minutes"`
}

// Submit schedules one entry per distinct lead and moves the campaign from
// draft to running. Leads outside the campaign's tenant are skipped.
func (p *Planner) Submit(ctx context.Context, campaignID int, leadIDs []int, opts SubmitOptions) (*SubmitResult, error) {
	if len(leadIDs) == 0 {
		return nil, appErrors.NewValidation("lead_ids", "at least one lead is required")
	}

	campaign, err := p.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignDraft {
		return nil, &appErrors.InvalidTransitionError{
			CampaignID: campaignID,
			From:       string(campaign.Status),
			To:         string(model.CampaignRunning),
		}
	}

	ids := dedupeIDs(leadIDs)
	leads, err := p.Leads.GetByIDs(ctx, campaign.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("load leads for campaign %d: %w", campaignID, err)
	}

	useAI := opts.UseAI || campaign.UseAIPersonalization
	start := p.now().In(p.location())
	cursor := start
	entries := make([]*model.DispatchEntry, 0, len(ids))
	for _, id := range ids {
		lead, ok := leads[id]
		if !ok {
			p.Logger.Warn().Int("campaign_id", campaignID).Int("lead_id", id).Msg("lead not found for tenant, skipping")
			continue
		}
		// Each entry is paced from the previous one, so a clamp pushes the
		// rest of the sequence forward with it.
		cursor = pacing.ClampToWindow(cursor.Add(p.delay(campaign.Channel)))
		entries = append(entries, p.buildEntry(campaign, lead, useAI, cursor, start))
	}
	if len(entries) == 0 {
		return nil, appErrors.NewValidation("lead_ids", "none of the leads belong to the campaign's tenant")
	}

	started, err := p.Campaigns.StartRun(ctx, campaignID, len(entries))
	if err != nil {
		return nil, fmt.Errorf("start campaign %d: %w", campaignID, err)
	}
	if !started {
		return nil, &appErrors.InvalidTransitionError{
			CampaignID: campaignID,
			From:       "non-draft",
			To:         string(model.CampaignRunning),
		}
	}

	chunk := p.chunkSize()
	inserted := 0
	for i := 0; i < len(entries); i += chunk {
		end := min(i+chunk, len(entries))
		n, err := p.Entries.Enqueue(ctx, entries[i:end])
		if err != nil {
			if revertErr := p.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignDraft); revertErr != nil {
				p.Logger.Error().Err(revertErr).Int("campaign_id", campaignID).Msg("failed to revert campaign to draft")
			}
			return nil, fmt.Errorf("enqueue entries %d-%d of campaign %d: %w", i, end, campaignID, err)
		}
		inserted += n
	}
	if skipped := len(entries) - inserted; skipped > 0 {
		p.Logger.Warn().
			Int("campaign_id", campaignID).
			Int("skipped", skipped).
			Msg("leads already had entries from an earlier run, kept their schedule")
	}

	minutes := int(math.Ceil(cursor.Sub(start).Minutes()))
	p.Logger.Info().
		Int("campaign_id", campaignID).
		Int("count", inserted).
		Int("estimated_minutes", minutes).
		Bool("use_ai", useAI).
		Msg("campaign scheduled")

	return &SubmitResult{Success: true, Count: inserted, EstimatedDurationMinutes: minutes}, nil
}

func (p *Planner) buildEntry(c *model.Campaign, lead *model.Lead, useAI bool, at, now time.Time) *model.DispatchEntry {
	content, subject := c.TemplateContent, c.TemplateSubject
	var meta model.EntryMetadata
	if v := SelectVariant(c.ABVariants); v != nil {
		meta.ABVariant = v.ID
		if strings.TrimSpace(v.Content) != "" {
			content = v.Content
		}
		if strings.TrimSpace(v.Subject) != "" {
			subject = v.Subject
		}
	}

	kind := model.ContentTemplate
	if useAI && strings.TrimSpace(lead.Insight) != "" {
		kind = model.ContentAIGenerate
	}

	return &model.DispatchEntry{
		ID:           uuid.NewString(),
		TenantID:     c.TenantID,
		CampaignID:   c.ID,
		LeadID:       lead.ID,
		Channel:      c.Channel,
		Subject:      RenderForLead(subject, lead),
		Content:      RenderForLead(content, lead),
		ContentKind:  kind,
		Status:       model.EntryPending,
		ScheduledFor: at,
		MaxRetries:   p.maxRetries(),
		Metadata:     meta,
		CreatedAt:    now,
	}
}

func (p *Planner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Planner) delay(ch model.Channel) time.Duration {
	if p.Delay != nil {
		return p.Delay(ch)
	}
	return pacing.GetDelay(ch)
}

func (p *Planner) location() *time.Location {
	if p.Settings.Location != nil {
		return p.Settings.Location
	}
	return time.Local
}

func (p *Planner) chunkSize() int {
	if p.Settings.ChunkSize > 0 {
		return p.Settings.ChunkSize
	}
	return 100
}

func (p *Planner) maxRetries() int {
	if p.Settings.MaxRetries > 0 {
		return p.Settings.MaxRetries
	}
	return 3
}

func dedupeIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
