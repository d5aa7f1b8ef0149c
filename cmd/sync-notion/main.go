package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/app"
	"github.com/dvloznov/money-mirror/internal/config"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/notionsync"
)

func main() {
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load()
	log := logger.NewWithLevel("info")
	if cfg != nil {
		log = logger.NewWithLevel(cfg.LogLevel)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.RequireNotion(); err != nil {
		log.Fatal().Err(err).Msg("Notion sync is not configured")
	}

	if *startDateStr == "" || *endDateStr == "" {
		log.Fatal().Msg("Error: --start-date and --end-date are required")
	}
	startDate, err := civil.ParseDate(*startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	endDate, err := civil.ParseDate(*endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		log.Fatal().
			Str("start_date", *startDateStr).
			Str("end_date", *endDateStr).
			Msg("Error: end-date must be after start-date")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer repo.Close()

	client := notionsync.NewNotionClient(cfg.NotionToken)

	res, err := notionsync.SyncDashboard(ctx, repo, client, cfg.NotionDBID, startDate, endDate, notionsync.Options{DryRun: *dryRun})
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d unchanged, %d failed.\n",
		res.Created, res.Updated, res.Deleted, res.Unchanged, res.Failed)
}
