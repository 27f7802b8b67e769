package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/pacing"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

func acmeLeads() []*model.Lead {
	return []*model.Lead{
		{ID: 1, TenantID: 1, Name: "Acme", Email: "contato@acme.com", Phone: "+55 11 90000-0001"},
		{ID: 2, TenantID: 1, Name: "Beta", Email: "oi@beta.com", Phone: "+55 11 90000-0002", Insight: "abriu filial nova"},
		{ID: 3, TenantID: 1, Name: "Gamma", Email: "ola@gamma.com", Phone: "+55 11 90000-0003"},
		{ID: 9, TenantID: 2, Name: "Outro", Email: "x@outro.com"},
	}
}

func draftCampaign(id int, ch model.Channel) *model.Campaign {
	return &model.Campaign{
		ID:              id,
		TenantID:        1,
		Name:            "Lançamento",
		Channel:         ch,
		Status:          model.CampaignDraft,
		TemplateContent: "Olá ${name}",
		TemplateSubject: "Novidades para ${name}",
	}
}

func newPlanner(campaigns *repository.MemoryCampaignRepository, entries queue.Queue, now time.Time) *service.Planner {
	return &service.Planner{
		Campaigns: campaigns,
		Leads:     repository.NewMemoryLeadRepository(acmeLeads()...),
		Entries:   entries,
		Settings:  service.PlannerSettings{ChunkSize: 100, MaxRetries: 3, Location: time.UTC},
		Logger:    nopLogger,
		Now:       func() time.Time { return now },
		Delay:     func(model.Channel) time.Duration { return time.Minute },
	}
}

func TestSubmitSchedulesOneEntryPerLead(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail))
	q := queue.NewInMemoryQueue()
	p := newPlanner(campaigns, q, now)

	res, err := p.Submit(ctx, 1, []int{1, 2, 3}, service.SubmitOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, res.EstimatedDurationMinutes)

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	wantContent := []string{"Olá Acme", "Olá Beta", "Olá Gamma"}
	for i, e := range entries {
		assert.Equal(t, wantContent[i], e.Content)
		assert.Equal(t, model.EntryPending, e.Status)
		assert.Equal(t, model.ContentTemplate, e.ContentKind)
		assert.Equal(t, 0, e.RetryCount)
		assert.Equal(t, 3, e.MaxRetries)
		assert.Equal(t, model.ChannelEmail, e.Channel)
		assert.Equal(t, now.Add(time.Duration(i+1)*time.Minute), e.ScheduledFor)
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, "Novidades para Acme", entries[0].Subject)

	c, err := campaigns.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignRunning, c.Status)
	assert.Equal(t, 3, c.TotalLeads)
	assert.Equal(t, 0, c.ProcessedLeads)
}

func TestSubmitKeepsScheduleInsideWindowAndIncreasing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 19, 58, 0, 0, time.UTC)
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelChat))
	q := queue.NewInMemoryQueue()
	p := newPlanner(campaigns, q, now)

	_, err := p.Submit(ctx, 1, []int{1, 2, 3}, service.SubmitOptions{})
	require.NoError(t, err)

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].LeadID)
	assert.Equal(t, 19, entries[0].ScheduledFor.Hour())
	for i, e := range entries {
		assert.True(t, pacing.IsWithinSendingWindow(e.ScheduledFor.Hour()), "entry %d at %s", i, e.ScheduledFor)
		if i > 0 {
			assert.True(t, e.ScheduledFor.After(entries[i-1].ScheduledFor))
		}
	}
	assert.Equal(t, 11, entries[1].ScheduledFor.Day())
	assert.Equal(t, 8, entries[1].ScheduledFor.Hour())
}

func TestSubmitRejectsNonDraftCampaign(t *testing.T) {
	ctx := context.Background()
	c := draftCampaign(1, model.ChannelEmail)
	c.Status = model.CampaignRunning
	q := queue.NewInMemoryQueue()
	p := newPlanner(repository.NewMemoryCampaignRepository(c), q, time.Now())

	_, err := p.Submit(ctx, 1, []int{1}, service.SubmitOptions{})
	var invalid *appErrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "running", invalid.From)

	entries, _ := q.ListByCampaign(ctx, 1)
	assert.Empty(t, entries)
}

func TestSubmitValidatesInput(t *testing.T) {
	ctx := context.Background()
	p := newPlanner(repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail)), queue.NewInMemoryQueue(), time.Now())

	_, err := p.Submit(ctx, 1, nil, service.SubmitOptions{})
	var validation *appErrors.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = p.Submit(ctx, 1, []int{9, 404}, service.SubmitOptions{})
	require.ErrorAs(t, err, &validation)

	_, err = p.Submit(ctx, 77, []int{1}, service.SubmitOptions{})
	var notFound *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitSkipsForeignAndDuplicateLeads(t *testing.T) {
	ctx := context.Background()
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail))
	q := queue.NewInMemoryQueue()
	p := newPlanner(campaigns, q, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	res, err := p.Submit(ctx, 1, []int{1, 1, 9, 3, 404}, service.SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	c, _ := campaigns.GetByID(ctx, 1)
	assert.Equal(t, 2, c.TotalLeads)
}

func TestSubmitRevertsToDraftWhenAChunkFails(t *testing.T) {
	ctx := context.Background()
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail))
	q := &FailingEnqueueQueue{InMemoryQueue: queue.NewInMemoryQueue(), okChunks: 1}
	p := newPlanner(campaigns, q, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	p.Settings.ChunkSize = 2

	_, err := p.Submit(ctx, 1, []int{1, 2, 3}, service.SubmitOptions{})
	require.Error(t, err)
	assert.Equal(t, model.CampaignDraft, statusOf(campaigns, 1))

	var validation *appErrors.ValidationError
	assert.False(t, errors.As(err, &validation))
}

func TestResubmitAfterRevertCountsOnlyNewEntries(t *testing.T) {
	ctx := context.Background()
	campaigns := repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelEmail))
	q := &FailingEnqueueQueue{InMemoryQueue: queue.NewInMemoryQueue(), okChunks: 1}
	p := newPlanner(campaigns, q, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	p.Settings.ChunkSize = 2

	_, err := p.Submit(ctx, 1, []int{1, 2, 3}, service.SubmitOptions{})
	require.Error(t, err)

	q.okChunks = 10
	res, err := p.Submit(ctx, 1, []int{1, 2, 3}, service.SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count, "leads 1 and 2 kept the entries of the failed run")

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSubmitMarksAIEntriesOnlyForLeadsWithInsight(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue()
	p := newPlanner(repository.NewMemoryCampaignRepository(draftCampaign(1, model.ChannelChat)), q, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	_, err := p.Submit(ctx, 1, []int{1, 2}, service.SubmitOptions{UseAI: true})
	require.NoError(t, err)

	entries, err := q.ListByCampaign(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ContentTemplate, entries[0].ContentKind)
	assert.Equal(t, model.ContentAIGenerate, entries[1].ContentKind)
	assert.Equal(t, "Olá Beta", entries[1].Content, "rendered template is kept as fallback")
}

func TestSubmitAppliesVariantOverrideAndRecordsIt(t *testing.T) {
	ctx := context.Background()
	c := draftCampaign(1, model.ChannelEmail)
	c.ABVariants = []model.ABVariant{{ID: "B", AllocationPercent: 100, Content: "E aí ${name}?"}}
	q := queue.NewInMemoryQueue()
	p := newPlanner(repository.NewMemoryCampaignRepository(c), q, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	_, err := p.Submit(ctx, 1, []int{3}, service.SubmitOptions{})
	require.NoError(t, err)

	entries, _ := q.ListByCampaign(ctx, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, "E aí Gamma?", entries[0].Content)
	assert.Equal(t, "B", entries[0].Metadata.ABVariant)
	assert.Equal(t, "Novidades para Gamma", entries[0].Subject)
}
