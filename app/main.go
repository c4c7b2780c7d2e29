package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twincounty/digest/app/ai"
	"github.com/twincounty/digest/app/api"
	"github.com/twincounty/digest/app/cfg"
	"github.com/twincounty/digest/app/classify"
	"github.com/twincounty/digest/app/collect"
	"github.com/twincounty/digest/app/database"
	"github.com/twincounty/digest/app/delivery"
	digestpkg "github.com/twincounty/digest/app/digest"
	"github.com/twincounty/digest/app/ingest"
	"github.com/twincounty/digest/app/resilience"
	"github.com/twincounty/digest/app/scheduler"
	"github.com/twincounty/digest/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Twin County Digest", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	loader := sources.NewLoader(appCfg.SourcesDir)
	srcs, err := loader.LoadAll()
	if err != nil {
		slog.Error("Failed to load source definitions", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded source definitions", "count", len(srcs))

	contentRepo := database.NewContentRepo(db)
	digestRepo := database.NewDigestRepo(db)
	stateRepo := database.NewStateRepo(db)
	runRepo := database.NewRunRepo(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	collectors := buildCollectors(appCfg, srcs, httpClient)

	gate := ingest.NewGate(contentRepo)
	runner := ingest.NewRunner(collectors, gate, runRepo)

	resilienceBase := resilience.Config{
		MaxRetries:       appCfg.RetryAttempts,
		BaseDelay:        time.Duration(appCfg.RetryMinWaitSeconds) * time.Second,
		MaxDelay:         time.Duration(appCfg.RetryMaxWaitSeconds) * time.Second,
		BreakerThreshold: appCfg.BreakerFailureThreshold,
		BreakerCooldown:  time.Duration(appCfg.BreakerCooldownSeconds) * time.Second,
	}

	claudeClient := ai.NewClient(appCfg.AnthropicAPIKey, appCfg.ClaudeModel, appCfg.ClaudeMaxTokens, httpClient)
	classifier := ai.NewClassifier(claudeClient)
	generator := ai.NewGenerator(claudeClient)

	classifyCfg := resilienceBase
	classifyCfg.Name = "claude"
	classifyExecutor := resilience.NewExecutor[database.Classification](classifyCfg)
	pipeline := classify.NewPipeline(contentRepo, classifier, classifyExecutor,
		appCfg.ClassifyBatchLimit, appCfg.MaxConcurrency)

	renderer, err := digestpkg.NewRenderer()
	if err != nil {
		slog.Error("Failed to load digest templates", "error", err)
		os.Exit(1)
	}
	assembler := digestpkg.NewAssembler(contentRepo, digestRepo, generator, renderer,
		appCfg.LookbackDays, appCfg.EventHorizonDays)

	mailCfg := resilienceBase
	mailCfg.Name = "mailer"
	mailExecutor := resilience.NewExecutor[*http.Response](mailCfg)
	mailClient := delivery.NewClient(appCfg.MailServerPrefix, appCfg.MailAPIKey, appCfg.MailListID,
		appCfg.MailFromName, appCfg.MailReplyTo, httpClient, mailExecutor)
	machine := delivery.NewStateMachine(digestRepo, mailClient, appCfg.ApproverEmail)

	queue := scheduler.NewTimerQueue()
	orchestrator := scheduler.NewOrchestrator(queue, runner, pipeline, assembler, machine,
		digestRepo, stateRepo, scheduler.Config{
			DigestWeekday:        appCfg.Weekday(),
			DigestHour:           appCfg.DigestHour,
			DigestMinute:         appCfg.DigestMinute,
			Location:             time.Local,
			CollectInterval:      time.Duration(appCfg.CollectIntervalHours) * time.Hour,
			ClassifyOffset:       time.Duration(appCfg.ClassifyOffsetMinutes) * time.Minute,
			PreviewDelay:         time.Duration(appCfg.PreviewDelayHours) * time.Hour,
			AutoSendAfterPreview: appCfg.AutoSendAfterPreview,
			ClassifierEnabled:    appCfg.ClassifierConfigured(),
			MailerEnabled:        appCfg.MailerConfigured(),
		})

	if err := orchestrator.Start(context.Background()); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer orchestrator.Stop()

	handler := api.NewHandler(contentRepo, digestRepo, orchestrator, len(srcs),
		appCfg.ClassifierConfigured(), appCfg.MailerConfigured(), appCfg.Version)
	router := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// buildCollectors constructs a collector per active source, skipping kinds
// whose capability is disabled or unconfigured.
func buildCollectors(appCfg *cfg.Cfg, srcs []sources.Source, httpClient *http.Client) []ingest.SourceCollector {
	collectors := make([]ingest.SourceCollector, 0, len(srcs))

	for _, src := range srcs {
		if !src.Active() {
			slog.Debug("Skipping inactive source", "source", src.SourceName())
			continue
		}

		switch s := src.(type) {
		case sources.NewsSource:
			collectors = append(collectors, ingest.SourceCollector{
				Name:      s.SourceName(),
				Kind:      string(sources.KindNews),
				Collector: collect.NewNewsCollector(s, httpClient, appCfg.UserAgent, appCfg.MaxItemsPerSource),
			})
		case sources.CouncilSource:
			if !appCfg.EnableCouncilCollection {
				slog.Debug("Council collection disabled, skipping source", "source", s.SourceName())
				continue
			}
			collectors = append(collectors, ingest.SourceCollector{
				Name:      s.SourceName(),
				Kind:      string(sources.KindCouncil),
				Collector: collect.NewCouncilCollector(s, httpClient, appCfg.UserAgent, appCfg.MaxItemsPerSource),
			})
		case sources.SocialSource:
			if !appCfg.SocialConfigured() {
				slog.Debug("Social collection disabled, skipping source", "source", s.SourceName())
				continue
			}
			collectors = append(collectors, ingest.SourceCollector{
				Name:      s.SourceName(),
				Kind:      string(sources.KindSocial),
				Collector: collect.NewSocialCollector(s, httpClient, appCfg.SocialAPIKey, appCfg.MaxItemsPerSource),
			})
		default:
			slog.Warn("Unknown source kind", "source", src.SourceName())
		}
	}

	slog.Info("Collectors configured", "count", len(collectors))
	return collectors
}
