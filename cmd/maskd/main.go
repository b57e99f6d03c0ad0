package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/blacklist"
	"github.com/whitemask/maskd/internal/cache"
	"github.com/whitemask/maskd/internal/config"
	"github.com/whitemask/maskd/internal/logger"
	"github.com/whitemask/maskd/internal/server"
	"github.com/whitemask/maskd/internal/tenant"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("maskd %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting maskd",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenants, err := tenant.NewStore(cfg.Tenants.Dir, log.WithComponent("tenant").Logger)
	if err != nil {
		log.Fatal("Failed to open tenant store", zap.Error(err))
	}
	recorder := blacklist.NewRecorder()

	var maskCache *cache.MaskCache
	if cfg.Cache.Enabled {
		maskCache, err = cache.NewMaskCache(&cfg.Cache.Config, log.WithComponent("cache").Logger)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer maskCache.Close()

		// Cached lines were masked under the tables being replaced.
		tenants.OnChange(func(tenantID string) {
			clearCtx, clearCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer clearCancel()
			if err := maskCache.ClearTenant(clearCtx, tenantID); err != nil {
				log.Warn("Failed to clear tenant cache after reload",
					zap.String("tenant", tenantID), zap.Error(err))
			}
		})
	}

	// The watcher starts after the cache hook is attached so a reload can
	// never slip through uninvalidated.
	if cfg.Tenants.Watch {
		go func() {
			if err := tenants.Watch(ctx); err != nil {
				log.Error("Tenant watcher stopped", zap.Error(err))
			}
		}()
	}

	var blacklistStore *blacklist.Store
	if cfg.Database.Enabled {
		blacklistStore, err = blacklist.NewStore(&cfg.Database.StoreConfig, log.WithComponent("blacklist").Logger)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer blacklistStore.Close()
		flusher := blacklist.NewFlusher(recorder, blacklistStore, cfg.Database.FlushInterval, log.WithComponent("blacklist").Logger)
		go flusher.Run(ctx)
	}

	srv, err := server.New(cfg, log, tenants, recorder, maskCache, blacklistStore)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := srv.Stop(stopCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
