// Package app wires configuration into stores, adapters and services. The
// server and worker binaries share it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/unclebandit/leopard-outreach/internal/ai"
	"github.com/unclebandit/leopard-outreach/internal/alert"
	"github.com/unclebandit/leopard-outreach/internal/channel"
	"github.com/unclebandit/leopard-outreach/internal/config"
	"github.com/unclebandit/leopard-outreach/internal/db"
	"github.com/unclebandit/leopard-outreach/internal/model"
	"github.com/unclebandit/leopard-outreach/internal/queue"
	"github.com/unclebandit/leopard-outreach/internal/repository"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

type App struct {
	DB *sql.DB

	Campaigns repository.CampaignRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Providers repository.ProviderRepositoryInterface
	Entries   repository.DispatchEntryRepositoryInterface

	CampaignService *service.CampaignService
	Planner         *service.Planner
	Control         *service.ControlPlane
	Worker          *service.Worker

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{}
	if err := a.openStores(ctx, cfg, logger); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Adapter.Timeout}
	registry := channel.NewRegistry()
	registry.Register(model.ProviderChatAPI, channel.NewChatAdapter(client, cfg.Adapter.RatePerSec))
	registry.Register(model.ProviderEmailAPI, channel.NewEmailAdapter(client, cfg.Adapter.RatePerSec))
	if awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion)); err != nil {
		logger.Warn().Err(err).Msg("aws config unavailable, ses provider disabled")
	} else {
		registry.Register(model.ProviderSES, channel.NewSESAdapter(awsCfg))
	}

	alerts := alert.Multi{alert.LogPublisher{Logger: logger}}
	if cfg.AMQPURL != "" {
		pub, err := alert.NewAMQPPublisher(cfg.AMQPURL, cfg.AlertQueue)
		if err != nil {
			logger.Warn().Err(err).Msg("alert broker unavailable, alerts go to the log only")
		} else {
			alerts = append(alerts, pub)
			a.closers = append(a.closers, pub.Close)
		}
	}

	a.Control = &service.ControlPlane{
		Campaigns: a.Campaigns,
		Entries:   a.Entries,
		Logger:    logger.With().Str("component", "control").Logger(),
	}
	a.CampaignService = &service.CampaignService{
		CampaignRepo: a.Campaigns,
		LeadRepo:     a.Leads,
		EntryRepo:    a.Entries,
		Logger:       logger.With().Str("component", "campaigns").Logger(),
	}
	a.Planner = &service.Planner{
		Campaigns: a.Campaigns,
		Leads:     a.Leads,
		Entries:   a.Entries,
		Settings: service.PlannerSettings{
			ChunkSize:  cfg.Planner.ChunkSize,
			MaxRetries: cfg.Planner.MaxRetries,
			Location:   loc,
		},
		Logger: logger.With().Str("component", "planner").Logger(),
	}
	a.Worker = &service.Worker{
		Entries:   a.Entries,
		Campaigns: a.Campaigns,
		Leads:     a.Leads,
		Providers: a.Providers,
		Adapters:  registry,
		Control:   a.Control,
		Alerts:    alerts,
		Settings: service.WorkerSettings{
			BatchSize:        cfg.Worker.BatchSize,
			ClaimTimeout:     cfg.Worker.ClaimTimeout,
			BanWindow:        cfg.Worker.BanWindow,
			ConfigRetryDelay: cfg.Worker.ConfigRetryDelay,
			Location:         loc,
		},
		Logger: logger.With().Str("component", "worker").Logger(),
	}
	if cfg.AIEndpoint != "" {
		a.Worker.Generator = &ai.HTTPGenerator{Endpoint: cfg.AIEndpoint, Token: cfg.AIToken, Client: client}
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		campaigns := repository.NewMemoryCampaignRepository()
		a.Campaigns = campaigns
		a.Leads = repository.NewMemoryLeadRepository()
		a.Providers = repository.NewMemoryProviderRepository()
		a.Entries = queue.NewInMemoryQueue(queue.WithClaimFilter(campaigns.IsRunning))
		return nil
	case "postgres":
		conn, err := db.Open(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		a.DB = conn
		a.closers = append(a.closers, conn.Close)
		a.Campaigns = &repository.CampaignRepository{DB: conn}
		a.Leads = &repository.LeadRepository{DB: conn}
		a.Providers = &repository.ProviderRepository{DB: conn}
		a.Entries = &repository.DispatchEntryRepository{DB: conn}
		return nil
	}
	return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Ping checks the database, and always succeeds for the memory store.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
