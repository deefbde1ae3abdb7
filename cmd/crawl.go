package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openpeptides/litcrawler/internal/api"
	"github.com/openpeptides/litcrawler/internal/checkpoint"
	"github.com/openpeptides/litcrawler/internal/config"
	"github.com/openpeptides/litcrawler/internal/litsource"
	"github.com/openpeptides/litcrawler/internal/logging"
	"github.com/openpeptides/litcrawler/internal/metrics"
	"github.com/openpeptides/litcrawler/internal/scrape"
	"github.com/openpeptides/litcrawler/internal/store"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. One invocation
// crawls every configured term once and exits; scheduling recurring runs is
// left to cron or the surrounding platform.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the literature interface for every configured term",
		Long: `Runs one crawl pass: for each configured drug term, resumes result-page
pagination from the term's checkpoint, collects candidate article links,
resolves them into structured records, and stores new documents linked to
the term's drug identity.`,

		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	defer docs.Close()

	tracker := checkpoint.NewTracker(checkpoint.NewFileStore(cfg.Checkpoint.Path))

	failLog := scrape.NewFailureLog(
		cfg.FailureLog.Path,
		cfg.FailureLog.MaxSizeMB,
		cfg.FailureLog.MaxBackups,
		cfg.FailureLog.MaxAgeDays,
	)
	defer func() {
		if cerr := failLog.Close(); cerr != nil {
			logger.Warn("failed to close failure log", zap.Error(cerr))
		}
	}()

	client, closeClient, err := buildSourceClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	minDelay, maxDelay := cfg.PacingWindow()
	controller := scrape.NewController(
		client,
		client,
		docs,
		tracker,
		failLog,
		scrape.NewJitterPacer(minDelay, maxDelay),
		scrape.ControllerConfig{BreakerThreshold: cfg.Scraper.BreakerThreshold},
		logger,
	)
	scheduler := scrape.NewScheduler(controller, cfg.Terms, cfg.Scraper.Workers, logger)

	stopServer := startStatusServer(cfg, tracker, logger)
	defer stopServer()

	logger.Info("crawl starting",
		zap.Int("terms", len(cfg.Terms)),
		zap.Int("workers", cfg.Scraper.Workers))
	scheduler.Run(ctx)
	logger.Info("crawl finished")
	return nil
}

// buildSourceClient assembles the probe-then-render fetch stack. The
// returned closer releases the headless browser, if one was started.
func buildSourceClient(cfg config.Config, logger *zap.Logger) (*litsource.Client, func(), error) {
	prober := litsource.NewProbeFetcher(litsource.ProbeConfig{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	detector := litsource.NewRenderDetector(cfg.Headless.MinHTMLBytes, nil)

	var renderer litsource.Renderer
	closer := func() {}
	if cfg.Headless.Enabled {
		r, err := litsource.NewChromedpRenderer(litsource.RendererConfig{
			MaxParallel: cfg.Headless.MaxParallel,
			UserAgent:   cfg.Source.UserAgent,
			NavTimeout:  cfg.NavTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init renderer: %w", err)
		}
		renderer = r
		closer = r.Close
	}

	client := litsource.NewClient(
		litsource.ClientConfig{BaseURL: cfg.Source.BaseURL},
		prober,
		renderer,
		detector,
		logger,
	)
	return client, closer, nil
}

// startStatusServer runs the read-only HTTP status interface when enabled.
// The returned stop function shuts it down gracefully.
func startStatusServer(cfg config.Config, tracker *checkpoint.Tracker, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(tracker, cfg.Terms, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
