package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/blacklist"
	"github.com/whitemask/maskd/internal/dialog"
	"github.com/whitemask/maskd/internal/etl"
	"github.com/whitemask/maskd/internal/logger"
	"github.com/whitemask/maskd/internal/tenant"
)

var version = "1.0.0"

func main() {
	var (
		tenantsDir = flag.String("tenants", "tenants", "Tenant resource directory")
		tenantID   = flag.String("tenant", "", "Tenant whose tables drive the masking")
		inputDir   = flag.String("input", "", "Directory of transcript JSON files to mask")
		outputDir  = flag.String("output", "masked", "Output directory")
		minDialogs = flag.Int("min-dialogs", dialog.DefaultMinDialogs, "Minimum dialogs per file worth writing")
		startDate  = flag.String("start-date", "", "Synthetic start date for re-based timestamps (YYYY-MM-DD, default today)")
		dataset    = flag.String("dataset", "", "Flat dataset file to mask instead of a transcript directory (CSV, Parquet, or JSON lines)")
		datasetOut = flag.String("dataset-output", "", "Masked dataset output path (defaults to <output>/<dataset name>)")
		batchSize  = flag.Int("batch-size", 1000, "Dataset batch size")
		workers    = flag.Int("workers", 4, "Dataset masking workers")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "console", "Log format (console or json)")
	)
	flag.Parse()

	if *tenantID == "" || (*inputDir == "" && *dataset == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -tenant <id> [-input <dir> | -dataset <file>] [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -tenant acme -input dialogs/ -output masked/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -tenant acme -dataset utterances.parquet -dataset-output masked.parquet\n", os.Args[0])
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting maskfiles",
		zap.String("version", version),
		zap.String("tenant", *tenantID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling")
		cancel()
	}()

	store, err := tenant.NewStore(*tenantsDir, log.WithComponent("tenant").Logger)
	if err != nil {
		log.Fatal("Failed to open tenant store", zap.Error(err))
	}
	tables, err := store.Tables(*tenantID)
	if err != nil {
		log.Fatal("Failed to load tenant tables", zap.Error(err))
	}

	start := time.Time{}
	if *startDate != "" {
		start, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			log.Fatal("Invalid start date", zap.String("start_date", *startDate), zap.Error(err))
		}
	}

	recorder := blacklist.NewRecorder()

	if *dataset != "" {
		outPath := *datasetOut
		if outPath == "" {
			if err := os.MkdirAll(*outputDir, 0o755); err != nil {
				log.Fatal("Failed to create output directory", zap.Error(err))
			}
			outPath = filepath.Join(*outputDir, filepath.Base(*dataset))
		}
		cfg := etl.DefaultConfig()
		cfg.BatchSize = *batchSize
		cfg.WorkerCount = *workers
		pipeline := etl.NewPipeline(tables, recorder, cfg, log.WithComponent("etl").Logger)
		if _, err := pipeline.ProcessFile(ctx, *dataset, outPath); err != nil {
			log.Fatal("Dataset masking failed", zap.Error(err))
		}
	} else {
		proc := dialog.NewProcessor(tables, recorder, dialog.Options{
			StartDate:  start,
			MinDialogs: *minDialogs,
		}, log.WithComponent("dialog").Logger)
		if err := proc.ProcessDir(*inputDir, *outputDir); err != nil {
			log.Fatal("Transcript masking failed", zap.Error(err))
		}
	}

	if err := writeBlacklist(*outputDir, recorder); err != nil {
		log.Error("Failed to write blacklist", zap.Error(err))
	}
}

// writeBlacklist dumps masked-word frequencies next to the masked output so
// reviewers can promote recurring words into the whitelist.
func writeBlacklist(outputDir string, recorder *blacklist.Recorder) error {
	if recorder.Len() == 0 {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outputDir, "blacklist.txt")
	return os.WriteFile(path, []byte(recorder.Export()), 0o644)
}
