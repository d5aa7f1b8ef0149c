package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/app"
	"github.com/dvloznov/money-mirror/internal/config"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/pipeline"
	"github.com/dvloznov/money-mirror/internal/security"
	"github.com/dvloznov/money-mirror/internal/store"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	log := logger.NewWithLevel("info")
	if cfg != nil {
		log = logger.NewWithLevel(cfg.LogLevel)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	switch os.Args[1] {
	case "process":
		runProcess(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "init-categories":
		runInitCategories(cfg, log)
	case "delete-file":
		runDeleteFile(cfg, log)
	case "ensure-schema":
		runEnsureSchema(cfg, log)
	case "dashboard":
		runDashboard(cfg, log)
	case "token":
		runToken(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Money Mirror CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process          Ingest statement files and rebuild the dashboard")
	fmt.Println("  upload           Upload a statement file to GCS")
	fmt.Println("  init-categories  Seed the category taxonomy (no-op when present)")
	fmt.Println("  delete-file      Remove a file's rows by content hash and rebuild")
	fmt.Println("  ensure-schema    Create or migrate the store tables")
	fmt.Println("  dashboard        Print dashboard rows for a date range")
	fmt.Println("  token            Mint an API auth token from JWT_SECRET")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openRepo(ctx context.Context, cfg *config.Config, log zerolog.Logger) store.Repository {
	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}
	return repo
}

func runProcess(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	institution := fs.String("institution", "", "Statement source: amex or wealthsimple")
	force := fs.Bool("force", false, "Reload files and reclassify descriptions even if already processed")
	local := fs.Bool("local", false, "Read files from the local filesystem instead of GCS")
	fs.Parse(os.Args[2:])

	inst, err := domain.ParseInstitution(*institution)
	if err != nil || fs.NArg() == 0 {
		log.Fatal().Err(err).Msg("Usage: cli process -institution amex|wealthsimple [-force] [-local] FILE...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := openRepo(ctx, cfg, log)
	files, err := app.OpenFileStore(ctx, cfg, *local)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create file store")
	}
	svc, err := app.NewServices(ctx, cfg, repo, files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	result, err := svc.Orchestrator.Run(ctx, pipeline.Request{
		Institution:    inst,
		FilePaths:      fs.Args(),
		ForceReprocess: *force,
	})
	if result != nil {
		printJSON(result)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	objectName := fs.String("object", "", "GCS object name (defaults to the file name)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH [-object NAME]")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)
	files, err := app.OpenFileStore(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create file store")
	}
	defer files.Close()

	uri, err := files.UploadFile(ctx, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runInitCategories(cfg *config.Config, log zerolog.Logger) {
	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	seed, err := taxonomy.Seed(time.Now().UTC())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load taxonomy seed")
	}
	inserted, err := repo.InitializeCategories(ctx, seed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize categories")
	}
	if inserted == 0 {
		fmt.Println("Categories already initialized.")
		return
	}
	fmt.Printf("Initialized %d categories.\n", inserted)
}

func runDeleteFile(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("delete-file", flag.ExitOnError)
	fileHash := fs.String("file-hash", "", "SHA-256 of the file content to remove")
	fs.Parse(os.Args[2:])

	if *fileHash == "" {
		log.Fatal().Msg("Usage: cli delete-file -file-hash HASH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// Rebuilding the dashboard needs no model calls or file access.
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()
	orch := pipeline.NewOrchestrator(nil, repo, nil)

	n, err := orch.DeleteFile(ctx, *fileHash)
	if err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}
	fmt.Printf("Deleted %d rows for file %s.\n", n, *fileHash)
}

func runEnsureSchema(cfg *config.Config, log zerolog.Logger) {
	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()
	fmt.Printf("Schema ready on %s backend.\n", cfg.StoreBackend)
}

func runDashboard(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	startStr := fs.String("start-date", "", "Start date YYYY-MM-DD (default: one year ago)")
	endStr := fs.String("end-date", "", "End date YYYY-MM-DD (default: today)")
	fs.Parse(os.Args[2:])

	now := time.Now()
	start, end := civil.DateOf(now.AddDate(-1, 0, 0)), civil.DateOf(now)
	var err error
	if *startStr != "" {
		if start, err = civil.ParseDate(*startStr); err != nil {
			log.Fatal().Err(err).Msg("Invalid -start-date, expected YYYY-MM-DD")
		}
	}
	if *endStr != "" {
		if end, err = civil.ParseDate(*endStr); err != nil {
			log.Fatal().Err(err).Msg("Invalid -end-date, expected YYYY-MM-DD")
		}
	}

	ctx := logger.WithContext(context.Background(), log)
	repo := openRepo(ctx, cfg, log)
	defer repo.Close()

	records, err := repo.QueryDashboard(ctx, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query dashboard")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tINSTITUTION\tDESCRIPTION\tAMOUNT\tCATEGORY\tSUBCATEGORY")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TransactionDate, r.Institution, r.Description, r.Amount.StringFixed(2), r.GeneralCategory, r.DetailedCategory)
	}
	tw.Flush()
	fmt.Printf("\n%d rows\n", len(records))
}

func runToken(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "scheduler", "Token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	token, err := security.NewTokenValidator(cfg.JWTSecret).GenerateToken(*subject, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate token")
	}
	fmt.Println(token)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
