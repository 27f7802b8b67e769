package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/repository"
)

// ControlPlane pauses, resumes and deletes running campaigns. Entries keep
// their scheduled_for across a pause, so a resumed campaign picks up where it
// stopped and anything already overdue goes out on the next tick.
type ControlPlane struct {
	Campaigns repository.CampaignRepositoryInterface
	Entries   repository.DispatchEntryRepositoryInterface
	Logger    zerolog.Logger
}

// Pause parks every pending entry of a running campaign. Pausing a paused
// campaign sweeps its entries again and succeeds.
func (c *ControlPlane) Pause(ctx context.Context, campaignID int) error {
	if err := c.transition(ctx, campaignID, model.CampaignRunning, model.CampaignPaused); err != nil {
		return err
	}
	n, err := c.Entries.PauseByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("pause entries of campaign %d: %w", campaignID, err)
	}
	c.Logger.Info().Int("campaign_id", campaignID).Int("entries", n).Msg("campaign paused")
	return nil
}

// Resume returns the paused entries of a paused campaign to pending.
func (c *ControlPlane) Resume(ctx context.Context, campaignID int) error {
	if err := c.transition(ctx, campaignID, model.CampaignPaused, model.CampaignRunning); err != nil {
		return err
	}
	n, err := c.Entries.ResumeByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("resume entries of campaign %d: %w", campaignID, err)
	}
	c.Logger.Info().Int("campaign_id", campaignID).Int("entries", n).Msg("campaign resumed")
	return nil
}

// Delete removes the campaign and all of its entries.
func (c *ControlPlane) Delete(ctx context.Context, campaignID int) error {
	if _, err := c.Campaigns.GetByID(ctx, campaignID); err != nil {
		return err
	}
	n, err := c.Entries.DeleteByCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("delete entries of campaign %d: %w", campaignID, err)
	}
	if err := c.Campaigns.Delete(ctx, campaignID); err != nil {
		return err
	}
	c.Logger.Info().Int("campaign_id", campaignID).Int("entries", n).Msg("campaign deleted")
	return nil
}

// transition moves the campaign from -> to. A campaign already in to is left
// alone; any other status is rejected.
func (c *ControlPlane) transition(ctx context.Context, campaignID int, from, to model.CampaignStatus) error {
	campaign, err := c.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	switch campaign.Status {
	case to:
		return nil
	case from:
		ok, err := c.Campaigns.TransitionStatus(ctx, campaignID, from, to)
		if err != nil {
			return fmt.Errorf("update status of campaign %d: %w", campaignID, err)
		}
		if ok {
			return nil
		}
		// Lost a race; accept it only if the other writer reached the same state.
		current, err := c.Campaigns.GetByID(ctx, campaignID)
		if err != nil {
			return err
		}
		if current.Status == to {
			return nil
		}
		campaign = current
	}
	return &appErrors.InvalidTransitionError{
		CampaignID: campaignID,
		From:       string(campaign.Status),
		To:         string(to),
	}
}
