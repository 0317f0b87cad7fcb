package main

import (
	"context"
	"os"

	"taxidocs/config"
	"taxidocs/pkg/logger"
	"taxidocs/storage/postgres"
)

// reset_db wipes drivers, documents and onboarding sessions. Seeded role
// permissions are kept.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	ctx := context.Background()

	pg, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.Reset(ctx); err != nil {
		log.Error("failed to reset tables", logger.Error(err))
		os.Exit(1)
	}
	log.Info("driver onboarding tables truncated")
}
