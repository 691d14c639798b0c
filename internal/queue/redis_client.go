package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// redisClient implements Client on a Redis list (LPUSH / BRPOP)
type redisClient struct {
	client    *redis.Client
	queueName string
	logger    *slog.Logger
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL       string
	QueueName string
}

// NewRedisClient connects to Redis and returns a queue client together with
// the underlying connection, which the scheduler reuses for its sweep lock
func NewRedisClient(cfg RedisConfig, logger *slog.Logger) (Client, *redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		slog.String("addr", opts.Addr),
		slog.String("queue", cfg.QueueName),
	)

	return &redisClient{
		client:    client,
		queueName: cfg.QueueName,
		logger:    logger,
	}, client, nil
}

// Publish pushes a dispatch job onto the list
func (c *redisClient) Publish(ctx context.Context, job *models.DispatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := c.client.LPush(ctx, c.queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %w", err)
	}

	c.logger.Debug("dispatch job published",
		slog.String("campaign_id", job.CampaignID.String()),
		slog.Int("recipients", len(job.Recipients)),
	)

	return nil
}

// Consume pops jobs until ctx is cancelled, then waits for in-flight runs
func (c *redisClient) Consume(ctx context.Context, handler JobHandler, concurrency int) error {
	concurrency = clampConcurrency(concurrency)

	c.logger.Info("starting queue consumer",
		slog.String("queue", c.queueName),
		slog.Int("concurrency", concurrency),
	)

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped by context, waiting for in-flight jobs to complete")
			wg.Wait()
			return ctx.Err()
		}

		// Acquire a slot before popping so a job is never held without a runner
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			continue
		}

		result, err := c.client.BRPop(ctx, time.Second, c.queueName).Result()
		if err != nil {
			<-semaphore
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to pop from queue", slog.String("error", err.Error()))
			sleepCtx(ctx, time.Second)
			continue
		}

		// BRPOP returns [queueName, value]
		if len(result) < 2 {
			<-semaphore
			c.logger.Error("unexpected BRPOP result format")
			continue
		}

		var job models.DispatchJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			<-semaphore
			c.logger.Error("failed to unmarshal job",
				slog.String("error", err.Error()),
				slog.String("data", result[1]),
			)
			continue
		}

		c.logger.Debug("dispatch job received",
			slog.String("campaign_id", job.CampaignID.String()),
		)

		wg.Add(1)
		go func(job models.DispatchJob) {
			defer wg.Done()
			defer func() { <-semaphore }()
			run(ctx, c.logger, handler, &job)
		}(job)
	}
}

// Close closes the Redis connection
func (c *redisClient) Close() error {
	c.logger.Info("closing Redis connection")
	return c.client.Close()
}

// Health checks if Redis is healthy
func (c *redisClient) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Depth returns the length of the Redis list
func (c *redisClient) Depth(ctx context.Context) (int64, error) {
	length, err := c.client.LLen(ctx, c.queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// run invokes handler and contains panics so one bad job cannot stop the consumer.
// Jobs are never requeued: a retried run would resend to recipients already reached.
func run(ctx context.Context, logger *slog.Logger, handler JobHandler, job *models.DispatchJob) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch job panicked",
				slog.String("campaign_id", job.CampaignID.String()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := handler(ctx, job); err != nil {
		logger.Error("handler failed to process job",
			slog.String("campaign_id", job.CampaignID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
