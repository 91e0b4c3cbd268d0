package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"jobradar/pkg/aggregate"
	"jobradar/pkg/config"
	"jobradar/pkg/export"
	"jobradar/pkg/proxy"
	"jobradar/pkg/registry"
	"jobradar/pkg/sched"
	"jobradar/pkg/server"
	"jobradar/pkg/storage"
)

func main() {
	godotenv.Load()

	var (
		configFlag  = flag.String("config", "configs/config.json", "Path to configuration file")
		verboseFlag = flag.Bool("verbose", false, "Verbose logging")
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
	logger.Infof("Registered %d job sources (%d configured)", len(cfg.Sources), len(reg.Configured()))

	staleAfter, err := cfg.StaleAfter()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	pipeline := aggregate.New(reg, store, cfg.Queries, staleAfter, logger)

	interval, err := cfg.AggregationInterval()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	scheduler := sched.New(pipeline, interval, cfg.Aggregation.OnStartup, logger)

	exporter := export.New(cfg.Export.OutputDir)
	srv := server.New(cfg.Server.Addr, cfg.Server.AllowedOrigins, store, reg, pipeline, exporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Errorf("Scheduler stopped: %v", err)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown failed: %v", err)
		os.Exit(1)
	}
}
