package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

func TestPauseResumeKeepsSchedule(t *testing.T) {
	ctx := context.Background()
	c := runningCampaign(1, model.ChannelChat, 2)
	campaigns := repository.NewMemoryCampaignRepository(c)
	q := queue.NewInMemoryQueue()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	enqueueAll(t, q, []*model.DispatchEntry{
		dueEntry("e1", c, 1, base),
		dueEntry("e2", c, 2, base.Add(4*time.Minute)),
	})
	cp := &service.ControlPlane{Campaigns: campaigns, Entries: q, Logger: nopLogger}

	require.NoError(t, cp.Pause(ctx, 1))
	assert.Equal(t, model.CampaignPaused, statusOf(campaigns, 1))
	claimed, err := q.ClaimDue(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "paused entries are never claimed")

	// Pausing twice is accepted.
	require.NoError(t, cp.Pause(ctx, 1))

	require.NoError(t, cp.Resume(ctx, 1))
	assert.Equal(t, model.CampaignRunning, statusOf(campaigns, 1))

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryPending, entries[0].Status)
	assert.Equal(t, base, entries[0].ScheduledFor)
	assert.Equal(t, base.Add(4*time.Minute), entries[1].ScheduledFor)
}

func TestPauseRejectsDraftAndResumeRejectsRunning(t *testing.T) {
	ctx := context.Background()
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail), runningCampaign(2, model.ChannelEmail, 1))
	cp := &service.ControlPlane{Campaigns: campaigns, Entries: queue.NewInMemoryQueue(), Logger: nopLogger}

	var invalid *appErrors.InvalidTransitionError
	require.ErrorAs(t, cp.Pause(ctx, 1), &invalid)
	assert.Equal(t, "draft", invalid.From)

	require.ErrorAs(t, cp.Resume(ctx, 1), &invalid)
	require.NoError(t, cp.Resume(ctx, 2), "resuming a running campaign is a no-op")

	var notFound *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, cp.Pause(ctx, 99), &notFound)
}

func TestDeleteRemovesCampaignAndEntries(t *testing.T) {
	ctx := context.Background()
	c := runningCampaign(1, model.ChannelEmail, 1)
	campaigns := repository.NewMemoryCampaignRepository(c)
	q := queue.NewInMemoryQueue()
	enqueueAll(t, q, []*model.DispatchEntry{dueEntry("e1", c, 1, time.Now())})
	cp := &service.ControlPlane{Campaigns: campaigns, Entries: q, Logger: nopLogger}

	require.NoError(t, cp.Delete(ctx, 1))

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)

	var notFound *appErrors.ErrCampaignNotFound
	_, err = campaigns.GetByID(ctx, 1)
	require.ErrorAs(t, err, &notFound)
	require.ErrorAs(t, cp.Delete(ctx, 1), &notFound)
}
