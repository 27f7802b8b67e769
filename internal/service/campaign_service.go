// internal/service/campaign_service.go
package service

import (
    "context"
    "fmt"
    "math"
    "strings"
    "time"

    "github.com/rs/zerolog"

    appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
    "github.com/unclebandit/leopard-outreach/internal/model"
    "github.com/unclebandit/leopard-outreach/internal/repository"
)

type CampaignService struct {
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
    EntryRepo    repository.DispatchEntryRepositoryInterface
    Logger       zerolog.Logger
    Now          func() time.Time
}

type CreateCampaignInput struct {
    TenantID             int               `json:"tenant_id"`
    Name                 string            `json:"name"`
    Channel              model.Channel     `json:"channel"`
    TemplateContent      string            `json:"template_content"`
    TemplateSubject      string            `json:"template_subject"`
    UseAIPersonalization bool              `json:"use_ai_personalization"`
    ABVariants           []model.ABVariant `json:"ab_variants"`
}

type CampaignDetails struct {
    *model.Campaign
    Stats    model.CampaignStats `json:"stats"`
    Rates    Rates               `json:"rates"`
    Progress int                 `json:"progress"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
    if err := validateCampaign(in); err != nil {
        return nil, err
    }

    c := &model.Campaign{
        TenantID:             in.TenantID,
        Name:                 strings.TrimSpace(in.Name),
        Channel:              in.Channel,
        Status:               model.CampaignDraft,
        TemplateContent:      in.TemplateContent,
        TemplateSubject:      in.TemplateSubject,
        UseAIPersonalization: in.UseAIPersonalization,
        ABVariants:           in.ABVariants,
    }
    if err := s.CampaignRepo.Create(ctx, c); err != nil {
        return nil, err
    }

    s.Logger.Info().Int("campaign_id", c.ID).Int("tenant_id", c.TenantID).Str("channel", string(c.Channel)).Msg("campaign created")
    return c, nil
}

func validateCampaign(in CreateCampaignInput) error {
    if in.TenantID <= 0 {
        return appErrors.NewValidation("tenant_id", "is required")
    }
    if strings.TrimSpace(in.Name) == "" {
        return appErrors.NewValidation("name", "is required")
    }
    if !in.Channel.IsValid() {
        return appErrors.NewValidation("channel", fmt.Sprintf("unsupported channel %q", in.Channel))
    }
    if strings.TrimSpace(in.TemplateContent) == "" {
        return appErrors.NewValidation("template_content", "is required")
    }

    seen := make(map[string]struct{}, len(in.ABVariants))
    total := 0.0
    for _, v := range in.ABVariants {
        if strings.TrimSpace(v.ID) == "" {
            return appErrors.NewValidation("ab_variants", "variant id is required")
        }
        if _, dup := seen[v.ID]; dup {
            return appErrors.NewValidation("ab_variants", fmt.Sprintf("duplicate variant id %q", v.ID))
        }
        seen[v.ID] = struct{}{}
        if v.AllocationPercent < 0 || v.AllocationPercent > 100 {
            return appErrors.NewValidation("ab_variants", fmt.Sprintf("allocation of %q must be between 0 and 100", v.ID))
        }
        total += v.AllocationPercent
    }
    if total > 100+1e-9 {
        return appErrors.NewValidation("ab_variants", "allocations add up to more than 100")
    }
    return nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, f repository.CampaignFilter) ([]model.Campaign, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, f)
    if err != nil {
        return nil, nil, err
    }

    campaigns := make([]model.Campaign, len(ptrs))
    for i, c := range ptrs {
        campaigns[i] = *c
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int) (*model.Campaign, error) {
    return s.CampaignRepo.GetByID(ctx, id)
}

// GetCampaignDetailsWithStats adds entry counts by status and the derived
// delivery, reply and error rates.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int) (*CampaignDetails, error) {
    campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
    if err != nil {
        return nil, err
    }

    stats, err := s.EntryRepo.CampaignStats(ctx, campaignID)
    if err != nil {
        s.Logger.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to load campaign stats")
        return nil, err
    }

    return &CampaignDetails{
        Campaign: campaign,
        Stats:    *stats,
        Rates:    ComputeRates(*stats),
        Progress: Progress(campaign),
    }, nil
}

// RenderPreview renders the campaign template, or overrideTemplate when set,
// for one lead of the campaign's tenant.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, leadID int, overrideTemplate *string) (string, error) {
    campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
    if err != nil {
        return "", err
    }

    lead, err := s.LeadRepo.GetByID(ctx, leadID)
    if err != nil {
        return "", err
    }
    if lead == nil || lead.TenantID != campaign.TenantID {
        return "", appErrors.NewValidation("lead_id", fmt.Sprintf("lead %d not found", leadID))
    }

    template := campaign.TemplateContent
    if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
        template = *overrideTemplate
    }
    if strings.TrimSpace(template) == "" {
        return "", appErrors.NewValidation("template", "template cannot be empty")
    }

    return RenderForLead(template, lead), nil
}

// RecordReply marks the lead's sent entry as replied. It reports false when
// there is no sent, unreplied entry for the pair.
func (s *CampaignService) RecordReply(ctx context.Context, campaignID, leadID int) (bool, error) {
    if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
        return false, err
    }
    ok, err := s.EntryRepo.MarkReplied(ctx, campaignID, leadID, s.now())
    if err != nil {
        return false, err
    }
    if ok {
        s.Logger.Info().Int("campaign_id", campaignID).Int("lead_id", leadID).Msg("reply recorded")
    }
    return ok, nil
}

// Progress is processed over total leads as a whole percentage.
func Progress(c *model.Campaign) int {
    if c.TotalLeads == 0 {
        return 0
    }
    return int(math.Round(float64(c.ProcessedLeads) * 100 / float64(c.TotalLeads)))
}

func (s *CampaignService) now() time.Time {
    if s.Now != nil {
        return s.Now()
    }
    return time.Now()
}
