package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/config"
	"jobradar/pkg/export"
	"jobradar/pkg/models"
	"jobradar/pkg/proxy"
	"jobradar/pkg/registry"
	"jobradar/pkg/storage"
)

// aggregator runs one aggregation cycle and exits. Useful for cron-driven
// deployments and for trying out queries without the long-running server.
func main() {
	godotenv.Load()

	var (
		configFlag   = flag.String("config", "configs/config.json", "Path to configuration file")
		queryFlag    = flag.String("query", "", "One-off query keywords (overrides configured queries)")
		locationFlag = flag.String("location", "", "One-off query location")
		exportFlag   = flag.String("export", "", "Export results after the run (csv or json)")
		verboseFlag  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	logger := logrus.New()
	if *verboseFlag {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := storage.Open(cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}

	var proxies *proxy.Manager
	if cfg.Proxy != nil && cfg.Proxy.Enabled {
		proxies, err = proxy.NewManager(*cfg.Proxy)
		if err != nil {
			logger.Fatalf("Failed to initialize proxy manager: %v", err)
		}
	}

	reg := registry.New(logger)
	if err := registry.RegisterAll(reg, cfg.Sources, proxies); err != nil {
		logger.Fatalf("Failed to register job sources: %v", err)
	}

	queries := cfg.Queries
	if *queryFlag != "" {
		queries = []aggregate.Query{{Keywords: *queryFlag, Location: *locationFlag}}
	}
	if len(queries) == 0 {
		logger.Fatal("No queries configured. Set queries in the config file or pass -query")
	}

	staleAfter, err := cfg.StaleAfter()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	pipeline := aggregate.New(reg, store, queries, staleAfter, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Fatalf("Aggregation failed: %v", err)
	}

	printReport(report)

	if *exportFlag != "" {
		if err := exportResults(ctx, store, cfg.Export.OutputDir, *exportFlag, logger); err != nil {
			logger.Fatalf("Export failed: %v", err)
		}
	}
}

func printReport(report *aggregate.RunReport) {
	fmt.Printf("\nAggregation run %s\n", report.ID)
	fmt.Printf("Duration: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Printf("Fetched:  %d postings across %d queries\n", report.Fetched, report.Queries)
	fmt.Printf("Inserted: %d  Updated: %d  Expired: %d\n", report.Inserted, report.Updated, report.Expired)

	if len(report.Sources) > 0 {
		fmt.Println("\nPer source:")
		for name, src := range report.Sources {
			fmt.Printf("  %-12s fetched %d, dropped %d\n", name, src.Fetched, src.Dropped)
		}
	}
	if len(report.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(report.Errors))
		for _, msg := range report.Errors {
			fmt.Printf("  - %s\n", msg)
		}
	}
}

func exportResults(ctx context.Context, store *storage.Store, outputDir, format string, logger *logrus.Logger) error {
	format = strings.ToLower(format)
	if format != "csv" && format != "json" {
		return fmt.Errorf("unsupported export format: %s", format)
	}

	active := true
	jobs, err := store.List(ctx, models.JobFilter{IsActive: &active}, 1000)
	if err != nil {
		return err
	}

	exporter := export.New(outputDir)
	filename := fmt.Sprintf("jobs_%s.%s", time.Now().Format("2006-01-02_15-04-05"), format)
	path, err := exporter.ExportFile(jobs, filename)
	if err != nil {
		return err
	}

	logger.Infof("Exported %d postings to %s", len(jobs), path)
	return nil
}
