package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/config"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver: "memory",
		Timezone:    "UTC",
		AWSRegion:   "us-east-1",
		AlertQueue:  "campaign_alerts",
		Worker: config.WorkerConfig{
			BatchSize:        5,
			ClaimTimeout:     10 * time.Minute,
			BanWindow:        time.Hour,
			ConfigRetryDelay: 15 * time.Minute,
		},
		Planner: config.PlannerConfig{ChunkSize: 100, MaxRetries: 3},
		Adapter: config.AdapterConfig{Timeout: 5 * time.Second, RatePerSec: 1},
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.Ping(ctx))
	assert.Nil(t, a.Worker.Generator)

	res, err := a.Worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Claimed)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "mongo"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewWiresGeneratorWhenConfigured(t *testing.T) {
	cfg := memoryConfig()
	cfg.AIEndpoint = "http://localhost:9/generate"
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.Worker.Generator)
}

func TestMemoryStoreOnlyClaimsRunningCampaigns(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(), zerolog.Nop())
	require.NoError(t, err)

	draft := &model.Campaign{TenantID: 1, Name: "draft", Channel: model.ChannelChat, TemplateContent: "oi"}
	require.NoError(t, a.Campaigns.Create(ctx, draft))
	_, err = a.Entries.Enqueue(ctx, []*model.DispatchEntry{{
		ID:           "left-behind",
		TenantID:     1,
		CampaignID:   draft.ID,
		LeadID:       1,
		Channel:      model.ChannelChat,
		Content:      "oi",
		Status:       model.EntryPending,
		ScheduledFor: time.Now().Add(-time.Minute),
		MaxRetries:   3,
	}})
	require.NoError(t, err)

	res, err := a.Worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Claimed)
}
