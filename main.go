package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"agency_listings/config"
	"agency_listings/httputil"
	"agency_listings/logging"
	"agency_listings/scheduler"
	"agency_listings/scraper"
	"agency_listings/storage"
)

var (
	daemon = flag.Bool("daemon", false, "Keep running and fetch on SCRAPE_CRON or SCRAPE_INTERVAL")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		slog.Warn("could not set up file logging", "error", err)
	} else if logFile != nil {
		defer logFile.Close()
	}

	if err := run(cfg); err != nil {
		slog.Error("fetch failed", "error", err)
		if logFile != nil {
			logFile.Close()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting agency listings fetch", "agent", cfg.Agent.Key, "feeds", len(cfg.Feeds), "mode", cfg.Output.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := httputil.NewFeedClient(cfg.HTTP)
	if err != nil {
		return err
	}
	if cfg.HTTP.ProxyURL != "" {
		slog.Info("using proxy", "proxy", redact(cfg.HTTP.ProxyURL))
	}

	fetcher := scraper.NewAgencyClient(cfg.Agent, cfg.HTTP, client)
	orchestrator := scraper.NewOrchestrator(cfg, fetcher, storage.NewJSONWriter(cfg.Output.Path))

	// The sinks are optional. A nil pointer must not reach an interface field.
	var (
		store    scraper.RunStore
		history  scheduler.LastRunSource
		uploader scraper.Uploader
		archive  scraper.Archiver
	)

	if cfg.DBPath != "" {
		sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			slog.Warn("run history disabled", "db", cfg.DBPath, "error", err)
		} else {
			defer sqliteStore.Close()
			store, history = sqliteStore, sqliteStore
			slog.Info("recording runs", "db", cfg.DBPath)
		}
	}

	if cfg.S3.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		uploader = s3Uploader
		slog.Info("publishing enabled", "url", s3Uploader.PublicURL(cfg.S3.Key))
	}

	if cfg.Archive.DBURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Archive.DBURL)
		if err != nil {
			slog.Warn("archive disabled", "db", redact(cfg.Archive.DBURL), "error", err)
		} else {
			defer pgStore.Close()
			archive = pgStore
			slog.Info("archiving listings", "db", redact(cfg.Archive.DBURL))
		}
	}

	orchestrator.SetSinks(store, uploader, archive)

	if !*daemon {
		result, err := orchestrator.Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("fetch complete", "found", result.Run.ListingsFound, "written", result.Written, "output", cfg.Output.Path)
		return nil
	}

	sched := scheduler.New(cfg.Scheduler, orchestrator, history)
	if err := sched.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrNoSchedule) {
			return fmt.Errorf("-daemon: %w", err)
		}
		return fmt.Errorf("start scheduler: %w", err)
	}

	slog.Info("daemon running, press Ctrl+C to stop")
	<-ctx.Done()

	slog.Info("shutting down")
	sched.Stop()
	return nil
}

// redact masks the password of a connection or proxy URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
