package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/config"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/db"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/handler"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/service"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("starting campaign API server", slog.String("queue_driver", cfg.Queue.Driver))

	database, err := db.New(cfg.Database.DSN(), db.DefaultPool)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	logger.Info("connected to database")

	if dir := cfg.Database.MigrationsDir; dir != "" {
		if err := db.Migrate(context.Background(), database.DB, dir, logger); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	queueClient, _, err := queue.New(queue.Options{
		Driver:    cfg.Queue.Driver,
		RedisURL:  cfg.Queue.RedisURL,
		QueueName: cfg.Queue.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to queue", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	logRepo := repository.NewCampaignLogRepository(database.DB)
	contactRepo := repository.NewContactRepository(database.DB)
	instanceRepo := repository.NewInstanceRepository(database.DB)

	// Initialize services
	resolver := service.NewRecipientResolver(contactRepo, logger)
	campaignSvc := service.NewCampaignService(campaignRepo, instanceRepo, logRepo, resolver, queueClient, logger)
	schedulerSvc := service.NewSchedulerService(campaignRepo, logRepo, campaignSvc, cfg.Scheduler.StaleAfter, logger)

	router := handler.NewRouter(
		handler.NewCampaignHandler(campaignSvc, logger),
		handler.NewSchedulerHandler(schedulerSvc, logger),
		handler.NewHealthHandler(database, queueClient, logger),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Jobs on the memory queue are only visible to this process, so it
	// dispatches them itself
	var background sync.WaitGroup
	if cfg.Queue.Driver == queue.DriverMemory {
		dispatcher := worker.NewDispatcher(
			gateway.NewClient(cfg.Worker.GatewayTimeout, logger),
			campaignRepo,
			logRepo,
			campaignSvc,
			worker.NewIntervalPacer(cfg.Worker.Pacing),
			logger,
		)
		processor := worker.NewCampaignProcessor(instanceRepo, gateway.DefaultProviders(), dispatcher, logger)

		background.Add(1)
		go func() {
			defer background.Done()
			if err := queueClient.Consume(ctx, processor.Process, cfg.Worker.Concurrency); err != nil && ctx.Err() == nil {
				logger.Error("in-process consumer stopped", slog.String("error", err.Error()))
			}
		}()

		logger.Info("dispatching in-process", slog.Int("concurrency", cfg.Worker.Concurrency))
	}

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", slog.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)

	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}

		// Interrupted runs stay sending until the reaper settles them
		cancel()
		background.Wait()

		logger.Info("server stopped gracefully")
	}
}
