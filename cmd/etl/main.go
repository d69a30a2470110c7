package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/config"
	"github.com/raaihank/isolated-regex/internal/etl"
	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/logger"
	"github.com/raaihank/isolated-regex/internal/rule"
	"github.com/raaihank/isolated-regex/internal/settings"
	"github.com/raaihank/isolated-regex/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Rule file to import (CSV, Parquet, or JSON lines)")
		outputFile = flag.String("output", "", "Rule file to export every stored rule to")
		batchSize  = flag.Int("batch-size", 0, "Batch size for processing (default from config)")
		dryRun     = flag.Bool("dry-run", false, "Validate the input without writing to the store")
		showStats  = flag.Bool("stats", false, "Show stored rule statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && *outputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input rules.csv --batch-size 200\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input rules.parquet --dry-run\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --output backup.jsonl\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting isolated-regex ETL",
		zap.String("settings_backend", cfg.Settings.Backend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	etlConfig := etl.Config{
		BatchSize:      cfg.ETL.BatchSize,
		ProgressReport: cfg.ETL.ProgressReport,
		DryRun:         *dryRun,
		MaxErrors:      etl.DefaultConfig().MaxErrors,
	}
	if *batchSize > 0 {
		etlConfig.BatchSize = *batchSize
	}

	if err := run(ctx, cfg, etlConfig, *inputFile, *outputFile, *showStats, log); err != nil {
		log.Fatal("ETL failed", zap.Error(err))
	}

	log.Info("ETL completed successfully")
}

func run(ctx context.Context, cfg *config.Config, etlConfig etl.Config, inputFile, outputFile string, showStats bool, log *logger.Logger) error {
	backend, err := settings.OpenBackend(cfg.Settings, log.WithComponent("settings").Logger)
	if err != nil {
		return err
	}
	// saves are flushed explicitly below
	manager, err := settings.NewManager(ctx, backend, time.Hour, log.WithComponent("settings").Logger)
	if err != nil {
		backend.Close()
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if err := manager.Close(closeCtx); err != nil {
			log.Error("Failed to save settings", zap.Error(err))
		}
	}()

	// bulk operations address characters by avatar, so no roster is needed
	rules := store.New(emptyHost{}, manager, log.WithComponent("store").Logger)
	pipeline := etl.NewPipeline(rules, etlConfig, log.WithComponent("etl").Logger)

	if showStats {
		printStats(rules.Rules())
		return nil
	}

	if inputFile != "" {
		if _, err := os.Stat(inputFile); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputFile)
		}

		result, err := pipeline.ImportFile(ctx, inputFile)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		log.Info("Rule file processed",
			zap.String("file", inputFile),
			zap.Int64("total_records", result.TotalRecords),
			zap.Int64("processed_ok", result.ProcessedOK),
			zap.Int64("processed_failed", result.ProcessedFailed),
			zap.Duration("total_duration", result.Duration))

		for _, e := range result.Errors {
			log.Warn("Row rejected", zap.Int64("row", e.Row), zap.String("avatar", e.Avatar), zap.String("error", e.Message))
		}

		if err := manager.Flush(ctx); err != nil {
			return err
		}
	}

	if outputFile != "" {
		n, err := pipeline.ExportFile(ctx, outputFile)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		log.Info("Rules exported", zap.String("file", outputFile), zap.Int("rules", n))
	}

	return nil
}

// printStats displays a summary of the stored rules
func printStats(rules map[string]rule.Rule) {
	avatars := make([]string, 0, len(rules))
	enabled := 0
	for avatar, r := range rules {
		avatars = append(avatars, avatar)
		if r.Active() {
			enabled++
		}
	}
	sort.Strings(avatars)

	fmt.Printf("\n=== isolated-regex Rule Statistics ===\n")
	fmt.Printf("Stored Rules:   %d\n", len(rules))
	fmt.Printf("Active Rules:   %d\n", enabled)
	for _, avatar := range avatars {
		r := rules[avatar]
		fmt.Printf("  %-32s enabled=%-5t flags=%-4s scope=%s\n", avatar, r.Enabled, r.Flags, r.Scope)
	}
}

// emptyHost is a host with no characters
type emptyHost struct{}

func (emptyHost) ActiveCharacter() (host.Character, bool) { return host.Character{}, false }

func (emptyHost) Lookup(string) (host.Character, bool) { return host.Character{}, false }
