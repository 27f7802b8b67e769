package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/leopard-outreach/internal/app"
	"github.com/unclebandit/leopard-outreach/internal/config"
	"github.com/unclebandit/leopard-outreach/internal/logx"
	"github.com/unclebandit/leopard-outreach/internal/service"
)

type ticker interface {
	Tick(ctx context.Context) (*service.TickResult, error)
}

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

	c, err := newScheduler(ctx, cfg.Worker.TickSchedule, cfg.Worker.ClaimTimeout, a.Worker, log)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Worker.TickSchedule).Msg("invalid tick schedule")
	}
	c.Start()
	log.Info().Str("schedule", cfg.Worker.TickSchedule).Msg("worker running")

	<-ctx.Done()
	log.Info().Msg("shutting down, waiting for the current tick")
	<-c.Stop().Done()
}

// newScheduler runs a tick on every schedule firing. Ticks may overlap; the
// conditional claim keeps them from sharing entries.
func newScheduler(ctx context.Context, schedule string, timeout time.Duration, w ticker, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))
	if _, err := c.AddFunc(schedule, tickJob(ctx, w, timeout, log)); err != nil {
		return nil, err
	}
	return c, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func tickJob(ctx context.Context, w ticker, timeout time.Duration, log zerolog.Logger) func() {
	return func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := w.Tick(tickCtx); err != nil {
			log.Error().Err(err).Msg("tick failed")
		}
	}
}
