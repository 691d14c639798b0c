package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/config"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/db"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/service"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/worker"
)

const sweepLockKey = "scheduler:sweep:lock"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("starting campaign dispatch worker",
		slog.String("queue_driver", cfg.Queue.Driver),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Duration("pacing", cfg.Worker.Pacing),
	)

	database, err := db.New(cfg.Database.DSN(), db.DefaultPool)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	queueClient, rdb, err := queue.New(queue.Options{
		Driver:    cfg.Queue.Driver,
		RedisURL:  cfg.Queue.RedisURL,
		QueueName: cfg.Queue.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to queue", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer queueClient.Close()

	var sweepLock queue.Lock
	if rdb != nil {
		sweepLock = queue.NewRedisLock(rdb, sweepLockKey, cfg.Scheduler.LockTTL)
	} else {
		logger.Warn("memory queue only carries jobs published by this process")
		sweepLock = queue.NewLocalLock()
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(database.DB)
	logRepo := repository.NewCampaignLogRepository(database.DB)
	contactRepo := repository.NewContactRepository(database.DB)
	instanceRepo := repository.NewInstanceRepository(database.DB)

	// Initialize services
	resolver := service.NewRecipientResolver(contactRepo, logger)
	campaignSvc := service.NewCampaignService(campaignRepo, instanceRepo, logRepo, resolver, queueClient, logger)
	schedulerSvc := service.NewSchedulerService(campaignRepo, logRepo, campaignSvc, cfg.Scheduler.StaleAfter, logger)

	dispatcher := worker.NewDispatcher(
		gateway.NewClient(cfg.Worker.GatewayTimeout, logger),
		campaignRepo,
		logRepo,
		campaignSvc,
		worker.NewIntervalPacer(cfg.Worker.Pacing),
		logger,
	)
	processor := worker.NewCampaignProcessor(instanceRepo, gateway.DefaultProviders(), dispatcher, logger)
	sweeps := worker.NewSweepRunner(schedulerSvc, sweepLock, cfg.Scheduler.Interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	consumerErrors := make(chan error, 1)

	wg.Add(2)
	go func() {
		defer wg.Done()
		consumerErrors <- queueClient.Consume(ctx, processor.Process, cfg.Worker.Concurrency)
	}()
	go func() {
		defer wg.Done()
		sweeps.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && ctx.Err() == nil {
			logger.Error("consumer error", slog.String("error", err.Error()))
			cancel()
			wg.Wait()
			os.Exit(1)
		}

	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// In-flight runs stop at the next recipient boundary
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped gracefully")
	case <-time.After(30 * time.Second):
		logger.Warn("worker stopped before in-flight dispatches finished")
	}
}
