package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// Client defines the interface for dispatch job queue operations
type Client interface {
	// Publish hands a campaign run to the background dispatcher
	Publish(ctx context.Context, job *models.DispatchJob) error

	// Consume receives jobs and runs them with the handler.
	// concurrency bounds how many campaigns are dispatched at the same time;
	// recipients within one campaign are always sent sequentially by the handler.
	Consume(ctx context.Context, handler JobHandler, concurrency int) error

	// Close releases the queue connection
	Close() error

	// Health checks if the queue is reachable
	Health(ctx context.Context) error

	// Depth returns the number of jobs waiting for a consumer
	Depth(ctx context.Context) (int64, error)
}

// JobHandler runs one dispatch job
type JobHandler func(ctx context.Context, job *models.DispatchJob) error

// Driver names accepted by New
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

const (
	maxConcurrency = 5

	defaultMemoryCapacity = 256
)

// Options selects and configures the queue backend
type Options struct {
	Driver         string
	RedisURL       string
	QueueName      string
	MemoryCapacity int
}

// New creates the queue client for opts.Driver. The Redis connection is
// returned as well so callers can share it; it is nil for the memory driver.
func New(opts Options, logger *slog.Logger) (Client, *redis.Client, error) {
	switch opts.Driver {
	case DriverRedis, "":
		return NewRedisClient(RedisConfig{URL: opts.RedisURL, QueueName: opts.QueueName}, logger)
	case DriverMemory:
		capacity := opts.MemoryCapacity
		if capacity <= 0 {
			capacity = defaultMemoryCapacity
		}
		return NewMemoryClient(capacity, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue driver %q", opts.Driver)
	}
}

func clampConcurrency(concurrency int) int {
	if concurrency < 1 {
		return 1
	}
	if concurrency > maxConcurrency {
		return maxConcurrency
	}
	return concurrency
}
