//cmd/seeder/main.go
package main

import (
	"context"
	"os"

	"github.com/unclebandit/leopard-outreach/internal/config"
	"github.com/unclebandit/leopard-outreach/internal/db"
	"github.com/unclebandit/leopard-outreach/internal/logx"
)

func main() {
	cfg, err := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	conn, err := db.Open(context.Background(), cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	seedFiles := []string{
		"seed/schema.sql",
		"seed/leads.sql",
		"seed/campaigns.sql",
		"seed/providers.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to execute seed file")
		}
		log.Info().Str("file", file).Msg("seeded")
	}

	log.Info().Msg("database seeding completed successfully")
}
