// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unclebandit/leopard-outreach/internal/app"
	"github.com/unclebandit/leopard-outreach/internal/config"
	"github.com/unclebandit/leopard-outreach/internal/controller"
	"github.com/unclebandit/leopard-outreach/internal/handler"
	"github.com/unclebandit/leopard-outreach/internal/logx"
)

func main() {
	cfg, err := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build app")
	}
	defer a.Close()

	campaignController := &controller.CampaignController{
		CampaignService: a.CampaignService,
		Planner:         a.Planner,
		Control:         a.Control,
		Logger:          log.With().Str("component", "http").Logger(),
	}
	opsHandler := &handler.OpsHandler{
		Worker: a.Worker,
		Ping:   a.Ping,
		Logger: log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	// Campaign routes
	campaignController.Routes(r)

	r.Get("/healthz", opsHandler.HealthHandler)
	r.Post("/worker/tick", opsHandler.WorkerTickHandler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
