package main

import (
	"context"
	"os"
	"time"

	"backend/config"
	"backend/services"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Bootstrap for the nutrition core: opens the database, migrates schemas,
// folds the legacy stores into the ledger and sweeps expired cache rows.
// The HTTP layer that serves Resolve/Append lives elsewhere and consumes
// this module as a library.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	settings, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// migration is idempotent and must not delay startup; it runs in the
	// background while the sweep proceeds
	migrationDone := make(chan struct{})
	go func() {
		defer close(migrationDone)
		migrated, err := services.NewMigrationService(db).MigrateOnce(ctx)
		if err != nil {
			log.Error().Err(err).Int("migrated", migrated).Msg("legacy migration failed, will retry on next start")
			return
		}
		log.Info().Int("migrated", migrated).Msg("legacy stores folded into ledger")
	}()

	cache := services.NewFoodCacheService(db, settings.CacheTTL(), settings.CacheSimilarityThreshold)
	swept, err := cache.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cache sweep failed")
	} else {
		log.Info().Int64("swept", swept).Msg("expired cache records removed")
	}

	<-migrationDone
}
